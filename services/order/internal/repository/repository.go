package repository

import (
	"context"
	"errors"
	"time"
)

// Status — явное состояние жизненного цикла заказа.
// Комбинации вроде "оплачен и одновременно протух" непредставимы.
type Status string

const (
	// StatusCreated - заказ создан, билеты зарезервированы, ждём оплату
	StatusCreated Status = "created"
	// StatusAwaitingPayment - покупатель начал оплату, таймер больше не властен
	StatusAwaitingPayment Status = "awaiting_payment"
	// StatusPaid - терминальный успех
	StatusPaid Status = "paid"
	// StatusTimedOut - окно оплаты истекло, резерв возвращён; оплата ещё возможна
	// через повторное резервирование (second chance)
	StatusTimedOut Status = "timed_out"
)

// transitions — центральная таблица допустимых переходов.
// Всё, чего здесь нет, отклоняется с ErrInvalidTransition.
var transitions = map[Status][]Status{
	StatusCreated:         {StatusAwaitingPayment, StatusTimedOut},
	StatusTimedOut:        {StatusAwaitingPayment},
	StatusAwaitingPayment: {StatusPaid},
	StatusPaid:            {},
}

// CanTransition сообщает, разрешён ли переход from -> to
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid сообщает, известен ли статус таблице переходов
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Order - заказ билетов. eventTitle и eventStartDate — снапшоты данных события
// на момент заказа (обновляются только через order-startDate-queue, не live-join).
// CheckoutDeadline персистентен: незавершённый резерв переживает рестарт процесса.
type Order struct {
	ID               string    `json:"_id"`
	Username         string    `json:"username"`
	EventID          string    `json:"eventID"`
	EventTitle       string    `json:"eventTitle"`
	EventStartDate   time.Time `json:"eventStartDate"`
	TicketType       string    `json:"ticketType"`
	OrderDate        time.Time `json:"orderDate"`
	Quantity         int64     `json:"quantity"`
	PricePerTicket   float64   `json:"pricePerTicket"`
	Status           Status    `json:"status"`
	CheckoutDeadline time.Time `json:"-"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderRepository --dir=. --output=./mocks --outpkg=mocks

// OrderRepository определяет интерфейс хранилища заказов.
// Transition — единственный способ менять статус: одиночный условный UPDATE,
// число затронутых строк решает гонку purchase vs expiry.
type OrderRepository interface {
	// Create сохраняет новый заказ
	Create(ctx context.Context, order *Order) error

	// GetByID возвращает заказ по ID
	// Возвращает ErrNotFound, если заказ не найден
	GetByID(ctx context.Context, id string) (*Order, error)

	// Delete удаляет заказ; ErrNotFound если его уже нет
	Delete(ctx context.Context, id string) error

	// Transition атомарно переводит заказ из одного из статусов from в to.
	// Возвращает обновлённый заказ; ErrInvalidTransition, если текущий статус
	// не входит в from (проигравшая сторона гонки видит именно эту ошибку);
	// ErrNotFound, если заказа нет.
	Transition(ctx context.Context, id string, from []Status, to Status) (*Order, error)

	// ListPaidByUser возвращает оплаченные заказы пользователя,
	// отсортированные по дате начала события
	ListPaidByUser(ctx context.Context, username string, page, limit int64) ([]Order, int64, error)

	// ListPaidByEvent возвращает оплаченные заказы события
	ListPaidByEvent(ctx context.Context, eventID string, page, limit int64) ([]Order, int64, error)

	// UpdateEventStartDate обновляет снапшот eventStartDate во всех заказах
	// события и возвращает обновлённые заказы
	UpdateEventStartDate(ctx context.Context, eventID string, startDate time.Time) ([]Order, error)

	// ListDueForTimeout возвращает заказы в статусе created с истёкшим
	// checkout_deadline (подбирается сканером таймера, в том числе после рестарта)
	ListDueForTimeout(ctx context.Context, now time.Time, limit int64) ([]Order, error)

	// NextEvent возвращает оплаченный заказ пользователя с самой ранней будущей
	// датой события; ErrNotFound, если таких нет
	NextEvent(ctx context.Context, username string, now time.Time) (*Order, error)
}

var (
	// ErrNotFound возвращается, когда заказ не найден в хранилище
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition возвращается, когда условный переход не сработал:
	// текущий статус не входит в ожидаемые
	ErrInvalidTransition = errors.New("invalid order status transition")
)
