package repository

import (
	"context"
	"errors"
	"time"
)

// Ticket описывает один тип билета внутри события.
// quantity — неизменяемая вместимость, available — текущий остаток (0..quantity).
type Ticket struct {
	Name      string  `bson:"name" json:"name"`
	Quantity  int64   `bson:"quantity" json:"quantity"`
	Price     float64 `bson:"price" json:"price"`
	Available int64   `bson:"available" json:"available"`
}

// Event — документ события с вложенным массивом билетов и денормализованными
// полями: tickets_available = sum(available), min_price = min(price | available>0).
type Event struct {
	ID               string    `bson:"_id,omitempty" json:"_id"`
	Title            string    `bson:"title" json:"title"`
	Category         string    `bson:"category" json:"category"`
	Description      string    `bson:"description" json:"description"`
	Organizer        string    `bson:"organizer" json:"organizer"`
	StartDate        time.Time `bson:"start_date" json:"start_date"`
	EndDate          time.Time `bson:"end_date" json:"end_date"`
	Location         string    `bson:"location" json:"location"`
	Tickets          []Ticket  `bson:"tickets" json:"tickets"`
	TicketsAvailable int64     `bson:"tickets_available" json:"tickets_available"`
	MinPrice         float64   `bson:"min_price" json:"min_price"`
	Image            string    `bson:"image,omitempty" json:"image,omitempty"`
	CommentsNumber   int64     `bson:"commentsNumber" json:"commentsNumber"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventRepository --dir=. --output=./mocks --outpkg=mocks

// EventRepository определяет интерфейс хранилища событий.
// Service слой зависит от этого интерфейса, а не от конкретной реализации.
//
// Reserve и Release — единственный способ менять остатки билетов: каждая операция
// выполняется как один атомарный условный апдейт документа (элемент массива и
// агрегат tickets_available меняются вместе), никаких read-modify-write в два шага.
type EventRepository interface {
	// Create сохраняет новое событие и возвращает его ID
	Create(ctx context.Context, event *Event) (string, error)

	// GetByID возвращает событие по ID
	// Возвращает ErrNotFound, если событие не найдено
	GetByID(ctx context.Context, id string) (*Event, error)

	// List возвращает страницу событий и общее количество
	List(ctx context.Context, page, limit int64) ([]Event, int64, error)

	// ListAvailable возвращает страницу будущих событий с tickets_available > 0
	ListAvailable(ctx context.Context, page, limit int64) ([]Event, int64, error)

	// Reserve уменьшает available указанного билета и tickets_available на qty,
	// только если оба счётчика >= qty (декремент никогда не уводит счётчик в минус).
	// Возвращает обновлённый документ; ErrInsufficientTickets при нехватке.
	Reserve(ctx context.Context, eventID, ticketType string, qty int64) (*Event, error)

	// Release увеличивает available указанного билета и tickets_available на qty.
	// Возвращает ErrMaxReached, если available уже равен quantity (release без
	// парного успешного reserve) или инкремент превысил бы вместимость.
	Release(ctx context.Context, eventID, ticketType string, qty int64) (*Event, error)

	// SetMinPrice перезаписывает денормализованный min_price
	SetMinPrice(ctx context.Context, eventID string, minPrice float64) error

	// UpdateDates обновляет start_date/end_date события
	UpdateDates(ctx context.Context, eventID string, startDate, endDate time.Time) error

	// IncrementComments увеличивает счётчик комментариев на 1
	IncrementComments(ctx context.Context, eventID string) error
}

var (
	// ErrNotFound возвращается, когда событие не найдено в хранилище
	ErrNotFound = errors.New("event not found")
	// ErrTicketNotFound возвращается, когда в событии нет билета с таким именем
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInsufficientTickets возвращается при нехватке остатка для резервирования
	ErrInsufficientTickets = errors.New("insufficient tickets available")
	// ErrMaxReached возвращается при попытке release сверх вместимости билета
	ErrMaxReached = errors.New("ticket availability is already at maximum")
)

// FindTicket возвращает билет события по имени или nil
func (e *Event) FindTicket(name string) *Ticket {
	for i := range e.Tickets {
		if e.Tickets[i].Name == name {
			return &e.Tickets[i]
		}
	}
	return nil
}

// ComputeMinPrice возвращает минимальную цену среди билетов с available > 0,
// либо 0, если доступных билетов нет
func (e *Event) ComputeMinPrice() float64 {
	min := 0.0
	found := false
	for i := range e.Tickets {
		t := &e.Tickets[i]
		if t.Available > 0 && (!found || t.Price < min) {
			min = t.Price
			found = true
		}
	}
	return min
}
