package service

import (
	"context"
	"time"

	"github.com/nirbenah/final-project-backend/platform/queues"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Publisher --dir=. --output=./mocks --outpkg=mocks

// Publisher определяет интерфейс публикации сообщений на шину
type Publisher interface {
	// Publish публикует типизированное сообщение в указанный топик
	Publish(ctx context.Context, topic string, msg queues.Message) error
}

// ProcessedEventsStore хранит информацию об обработанных сообщениях для обеспечения idempotency
//
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProcessedEventsStore --dir=. --output=./mocks --outpkg=mocks
type ProcessedEventsStore interface {
	// MarkProcessed сохраняет eventID как обработанный. Должен быть idempotent сам по себе.
	// ttl определяет время жизни записи (после истечения ttl сообщение может быть обработано повторно).
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error

	// IsProcessed возвращает true если eventID уже был обработан и ещё не истёк ttl.
	IsProcessed(ctx context.Context, eventID string) (bool, error)
}
