package service

import (
	"context"

	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/user/internal/client/orderapi"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderClient --dir=. --output=./mocks --outpkg=mocks

// OrderClient — авторитетный источник для пересчёта проекции next-event
type OrderClient interface {
	// GetNextEvent возвращает ближайшее будущее оплаченное событие пользователя;
	// пустой EventID — будущих оплаченных заказов нет
	GetNextEvent(ctx context.Context, username string) (*orderapi.NextEvent, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Publisher --dir=. --output=./mocks --outpkg=mocks

// Publisher публикует сообщения в шину
type Publisher interface {
	// Publish отправляет сообщение в топик
	Publish(ctx context.Context, topic string, msg queues.Message) error
}
