// Package migrations содержит SQL миграции схемы пользователей.
// Файлы встраиваются в бинарник, чтобы миграции применялись
// независимо от рабочей директории процесса.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
