// Package authctx прокидывает аутентифицированного пользователя через context.
package authctx

import "context"

type contextKey struct{}

// WithUsername кладёт username аутентифицированного пользователя в контекст
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKey{}, username)
}

// Username возвращает username из контекста; пустая строка — запрос не аутентифицирован
func Username(ctx context.Context) string {
	username, _ := ctx.Value(contextKey{}).(string)
	return username
}
