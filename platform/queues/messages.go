package queues

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope — общая шапка каждого сообщения на шине.
// event_id уникален на сообщение и используется консьюмерами для дедупликации
// (at-least-once доставка), event_version — версия схемы payload-а.
type Envelope struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventVersion int       `json:"event_version"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEnvelope создаёт шапку для нового сообщения указанного типа
func NewEnvelope(eventType string) Envelope {
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
	}
}

// Типы сообщений (значения поля event_type)
const (
	TypeTicketsRelease  = "event.tickets.release"
	TypeCommentAdded    = "event.comment.added"
	TypeOrderDelete     = "order.delete.requested"
	TypeOrderRefund     = "order.refund.requested"
	TypeOrderStartDate  = "event.start_date.changed"
	TypeNextEventPost   = "user.next_event.paid"
	TypeNextEventPut    = "user.next_event.updated"
	TypeNextEventDelete = "user.next_event.deleted"
)

// Message — то, что умеет ехать по шине: знает свой тип и ключ партиционирования
type Message interface {
	// Type возвращает event_type сообщения
	Type() string
	// Key возвращает ключ Kafka-сообщения (все сообщения одной сущности
	// попадают в одну партицию и обрабатываются по порядку)
	Key() string
	// Validate проверяет обязательные поля после декодирования
	Validate() error
}

// TicketsRelease — вернуть qty билетов типа ticketType события eventID в наличие.
// Консьюмер: Inventory Ledger (Event service).
type TicketsRelease struct {
	Envelope
	EventRef   string `json:"eventID"`
	TicketType string `json:"ticketType"`
	Quantity   int64  `json:"quantity"`
}

func (m TicketsRelease) Type() string { return TypeTicketsRelease }
func (m TicketsRelease) Key() string  { return m.EventRef }

func (m TicketsRelease) Validate() error {
	if m.EventRef == "" || m.TicketType == "" {
		return fmt.Errorf("tickets release: eventID and ticketType are required")
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("tickets release: quantity must be positive, got %d", m.Quantity)
	}
	return nil
}

// CommentAdded — под событием появился комментарий, инкремент commentsNumber
type CommentAdded struct {
	Envelope
	EventRef string `json:"event_id_ref"`
}

func (m CommentAdded) Type() string { return TypeCommentAdded }
func (m CommentAdded) Key() string  { return m.EventRef }

func (m CommentAdded) Validate() error {
	if m.EventRef == "" {
		return fmt.Errorf("comment added: event reference is required")
	}
	return nil
}

// OrderDelete — удалить заказ и выполнить компенсации (возврат билетов,
// пересчёт проекции). Консьюмер: Order service.
type OrderDelete struct {
	Envelope
	OrderID string `json:"orderId"`
}

func (m OrderDelete) Type() string { return TypeOrderDelete }
func (m OrderDelete) Key() string  { return m.OrderID }

func (m OrderDelete) Validate() error {
	if m.OrderID == "" {
		return fmt.Errorf("order delete: orderId is required")
	}
	return nil
}

// OrderRefund — вернуть деньги по заказу. Attempt растёт при каждом
// переоткладывании, NotBefore отодвигает следующую попытку (неблокирующий retry).
type OrderRefund struct {
	Envelope
	OrderID   string    `json:"orderId"`
	Attempt   int       `json:"attempt"`
	NotBefore time.Time `json:"not_before,omitzero"`
}

func (m OrderRefund) Type() string { return TypeOrderRefund }
func (m OrderRefund) Key() string  { return m.OrderID }

func (m OrderRefund) Validate() error {
	if m.OrderID == "" {
		return fmt.Errorf("order refund: orderId is required")
	}
	if m.Attempt < 0 {
		return fmt.Errorf("order refund: attempt must not be negative")
	}
	return nil
}

// OrderStartDate — у события перенесли дату начала; Order service обновляет
// снапшот eventStartDate во всех заказах этого события.
type OrderStartDate struct {
	Envelope
	EventRef  string    `json:"eventId"`
	StartDate time.Time `json:"startDate"`
}

func (m OrderStartDate) Type() string { return TypeOrderStartDate }
func (m OrderStartDate) Key() string  { return m.EventRef }

func (m OrderStartDate) Validate() error {
	if m.EventRef == "" {
		return fmt.Errorf("order start date: eventId is required")
	}
	if m.StartDate.IsZero() {
		return fmt.Errorf("order start date: startDate is required")
	}
	return nil
}

// NextEventPost — пользователь оплатил заказ; проектор может перезаписать
// проекцию, если новое событие ближе текущего.
type NextEventPost struct {
	Envelope
	Username       string    `json:"username"`
	EventRef       string    `json:"eventId"`
	EventTitle     string    `json:"eventTitle"`
	EventStartDate time.Time `json:"eventStartDate"`
}

func (m NextEventPost) Type() string { return TypeNextEventPost }
func (m NextEventPost) Key() string  { return m.Username }

func (m NextEventPost) Validate() error {
	if m.Username == "" {
		return fmt.Errorf("next event post: username is required")
	}
	if m.EventRef == "" || m.EventStartDate.IsZero() {
		return fmt.Errorf("next event post: eventId and eventStartDate are required")
	}
	return nil
}

// NextEventPut — данные заказа изменились. Пустые поля события — явный сигнал
// "пересчитай с нуля из авторитетного источника".
type NextEventPut struct {
	Envelope
	Username       string    `json:"username"`
	EventRef       string    `json:"eventId,omitempty"`
	EventTitle     string    `json:"eventTitle,omitempty"`
	EventStartDate time.Time `json:"eventStartDate,omitzero"`
}

func (m NextEventPut) Type() string { return TypeNextEventPut }
func (m NextEventPut) Key() string  { return m.Username }

func (m NextEventPut) Validate() error {
	if m.Username == "" {
		return fmt.Errorf("next event put: username is required")
	}
	return nil
}

// IsRecompute сообщает, требует ли сообщение полного пересчёта проекции
func (m NextEventPut) IsRecompute() bool {
	return m.EventRef == "" || m.EventTitle == "" || m.EventStartDate.IsZero()
}

// NextEventDelete — заказ пользователя удалён; если он был спроецирован,
// проекция пересчитывается.
type NextEventDelete struct {
	Envelope
	Username string `json:"username"`
	EventRef string `json:"eventId"`
}

func (m NextEventDelete) Type() string { return TypeNextEventDelete }
func (m NextEventDelete) Key() string  { return m.Username }

func (m NextEventDelete) Validate() error {
	if m.Username == "" {
		return fmt.Errorf("next event delete: username is required")
	}
	return nil
}

// Decode разбирает тело Kafka-сообщения в типизированный record и валидирует его.
// Ошибка декодирования или валидации — постоянная (schema mismatch), такие
// сообщения консьюмер отправляет в DLQ, а не перечитывает.
func Decode[M Message](value []byte) (M, error) {
	var msg M
	if err := json.Unmarshal(value, &msg); err != nil {
		return msg, fmt.Errorf("decode %T: %w", msg, err)
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}
