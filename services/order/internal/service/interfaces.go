package service

import (
	"context"

	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/eventapi"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/payment"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventClient --dir=. --output=./mocks --outpkg=mocks

// EventClient определяет интерфейс клиента Event Service.
// Резерв билетов синхронный: покупателю нужен ответ "хватило/не хватило" сразу,
// возврат билетов всегда идёт асинхронно через шину.
type EventClient interface {
	GetEvent(ctx context.Context, eventID string) (*eventapi.Event, error)
	ReserveTickets(ctx context.Context, eventID, ticketType string, quantity int64) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentGateway --dir=. --output=./mocks --outpkg=mocks

// PaymentGateway определяет интерфейс платёжного шлюза
type PaymentGateway interface {
	Pay(ctx context.Context, payload payment.Payload) error
	Refund(ctx context.Context, orderID string) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Publisher --dir=. --output=./mocks --outpkg=mocks

// Publisher определяет интерфейс публикации сообщений на шину
type Publisher interface {
	Publish(ctx context.Context, topic string, msg queues.Message) error
}
