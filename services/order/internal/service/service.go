// Package service содержит бизнес-логику жизненного цикла заказа:
// создание с резервом билетов, оплату с гонкой против таймера,
// истечение окна оплаты и компенсации при удалении.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/payment"
	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
)

var (
	// ErrValidation - входные данные не прошли проверку
	ErrValidation = errors.New("validation error")
	// ErrConflict - заказ находится в статусе, из которого операция невозможна
	ErrConflict = errors.New("order state conflict")
)

// OrderService содержит бизнес-логику работы с заказами.
// Зависит от интерфейсов, а не от конкретных клиентов и репозиториев.
type OrderService struct {
	logger         *zap.Logger
	repo           repository.OrderRepository
	events         EventClient
	payments       PaymentGateway
	publisher      Publisher
	checkoutWindow time.Duration
}

// NewOrderService создаёт новый экземпляр OrderService.
// checkoutWindow - окно, за которое покупатель должен начать оплату,
// после него резерв возвращается в пул.
func NewOrderService(
	logger *zap.Logger,
	repo repository.OrderRepository,
	events EventClient,
	payments PaymentGateway,
	publisher Publisher,
	checkoutWindow time.Duration,
) *OrderService {
	return &OrderService{
		logger:         logger,
		repo:           repo,
		events:         events,
		payments:       payments,
		publisher:      publisher,
		checkoutWindow: checkoutWindow,
	}
}

// CreateOrderInput содержит входные данные для создания заказа
type CreateOrderInput struct {
	Username   string
	EventID    string
	TicketType string
	Quantity   int64
}

func (in CreateOrderInput) validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if strings.TrimSpace(in.EventID) == "" {
		return fmt.Errorf("%w: eventID is required", ErrValidation)
	}
	if strings.TrimSpace(in.TicketType) == "" {
		return fmt.Errorf("%w: ticketType is required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, in.Quantity)
	}
	return nil
}

// CreateOrder создаёт заказ и синхронно резервирует билеты в Event Service.
// Заказ сохраняется до резерва: при отказе резерва строка убирается через
// обычный delete-поток (сообщение на шину), а запрос завершается ошибкой.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*repository.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !event.StartDate.After(now) {
		return nil, fmt.Errorf("%w: event already started", ErrValidation)
	}

	var price float64
	found := false
	for _, t := range event.Tickets {
		if t.Name == input.TicketType {
			price = t.Price
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: unknown ticket type %q", ErrValidation, input.TicketType)
	}

	order := &repository.Order{
		ID:               uuid.NewString(),
		Username:         input.Username,
		EventID:          input.EventID,
		EventTitle:       event.Title,
		EventStartDate:   event.StartDate,
		TicketType:       input.TicketType,
		OrderDate:        now,
		Quantity:         input.Quantity,
		PricePerTicket:   price,
		Status:           repository.StatusCreated,
		CheckoutDeadline: now.Add(s.checkoutWindow),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.events.ReserveTickets(ctx, input.EventID, input.TicketType, input.Quantity); err != nil {
		s.logger.Warn("ticket reservation failed, scheduling order cleanup",
			zap.String("order_id", order.ID),
			zap.String("event_id", input.EventID),
			zap.Error(err),
		)
		s.publishOrderDelete(ctx, order.ID)
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("username", order.Username),
		zap.String("event_id", order.EventID),
		zap.Int64("quantity", order.Quantity),
		zap.Time("checkout_deadline", order.CheckoutDeadline),
	)
	return order, nil
}

// Purchase проводит оплату заказа. Гонка с таймером решается условным
// переходом статуса: выигрывает ровно одна сторона. Если таймер успел
// первым, резерв возобновляется (second chance) перед оплатой.
func (s *OrderService) Purchase(ctx context.Context, orderID string, payload payment.Payload) (*repository.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Сумма списания считается на сервере из снапшота цены,
	// клиентскому charge доверять нельзя
	payload.Charge = order.PricePerTicket * float64(order.Quantity)
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	order, err = s.claimForPayment(ctx, order)
	if err != nil {
		return nil, err
	}

	if err := s.payments.Pay(ctx, payload); err != nil {
		s.logger.Warn("payment failed, scheduling order cleanup",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		// Компенсация через delete-поток: удаление заказа, возврат билетов
		// и пересчёт проекции выполнит консюмер order-delete-queue
		s.publishOrderDelete(ctx, orderID)
		return nil, err
	}

	paid, err := s.repo.Transition(ctx, orderID, []repository.Status{repository.StatusAwaitingPayment}, repository.StatusPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	s.publish(ctx, queues.TopicNextEventPost, &queues.NextEventPost{
		Envelope:       queues.NewEnvelope(queues.TypeNextEventPost),
		Username:       paid.Username,
		EventRef:       paid.EventID,
		EventTitle:     paid.EventTitle,
		EventStartDate: paid.EventStartDate,
	})

	s.logger.Info("order paid",
		zap.String("order_id", paid.ID),
		zap.String("username", paid.Username),
		zap.Float64("charge", payload.Charge),
	)
	return paid, nil
}

// claimForPayment переводит заказ в awaiting_payment, после чего таймер
// бессилен. Для протухшего заказа сначала возобновляется резерв билетов.
func (s *OrderService) claimForPayment(ctx context.Context, order *repository.Order) (*repository.Order, error) {
	switch order.Status {
	case repository.StatusPaid:
		return nil, fmt.Errorf("%w: order already paid", ErrConflict)
	case repository.StatusAwaitingPayment:
		return nil, fmt.Errorf("%w: payment already in progress", ErrConflict)
	}

	if order.Status == repository.StatusCreated {
		claimed, err := s.repo.Transition(ctx, order.ID, []repository.Status{repository.StatusCreated}, repository.StatusAwaitingPayment)
		if err == nil {
			return claimed, nil
		}
		if !errors.Is(err, repository.ErrInvalidTransition) {
			return nil, err
		}
		// Таймер успел первым; перечитываем и идём по пути second chance
		order, err = s.repo.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
	}

	if order.Status != repository.StatusTimedOut {
		return nil, fmt.Errorf("%w: order status is %s", ErrConflict, order.Status)
	}

	// Second chance: резерв уже возвращён таймером, пробуем зарезервировать заново
	if err := s.events.ReserveTickets(ctx, order.EventID, order.TicketType, order.Quantity); err != nil {
		s.logger.Warn("second chance reservation failed, scheduling order cleanup",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		s.publishOrderDelete(ctx, order.ID)
		return nil, err
	}

	claimed, err := s.repo.Transition(ctx, order.ID, []repository.Status{repository.StatusTimedOut}, repository.StatusAwaitingPayment)
	if err != nil {
		// Конкурирующая оплата выиграла переход, лишний резерв возвращаем
		s.publish(ctx, queues.TopicEventTickets, &queues.TicketsRelease{
			Envelope:   queues.NewEnvelope(queues.TypeTicketsRelease),
			EventRef:   order.EventID,
			TicketType: order.TicketType,
			Quantity:   order.Quantity,
		})
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: concurrent purchase in progress", ErrConflict)
		}
		return nil, err
	}
	return claimed, nil
}

// Expire помечает заказ протухшим, если оплата ещё не началась, и возвращает
// резерв на шину. Проигрыш гонки оплате или уже удалённый заказ - no-op.
func (s *OrderService) Expire(ctx context.Context, orderID string) error {
	order, err := s.repo.Transition(ctx, orderID, []repository.Status{repository.StatusCreated}, repository.StatusTimedOut)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	s.publish(ctx, queues.TopicEventTickets, &queues.TicketsRelease{
		Envelope:   queues.NewEnvelope(queues.TypeTicketsRelease),
		EventRef:   order.EventID,
		TicketType: order.TicketType,
		Quantity:   order.Quantity,
	})

	s.logger.Info("order checkout window expired",
		zap.String("order_id", order.ID),
		zap.String("event_id", order.EventID),
		zap.Int64("quantity", order.Quantity),
	)
	return nil
}

// Delete удаляет заказ, возвращает билеты (если заказ ещё держал резерв)
// и просит проектор пересчитать ближайшее событие пользователя.
// withRefund=true - путь клиентской отмены: оплаченному заказу возвращаются
// деньги, сначала напрямую, при неудаче через order-refund-queue.
func (s *OrderService) Delete(ctx context.Context, orderID string, withRefund bool) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, orderID); err != nil {
		return err
	}

	// Протухший заказ резерв уже вернул, повторный release словил бы MaxReached
	if order.Status != repository.StatusTimedOut {
		s.publish(ctx, queues.TopicEventTickets, &queues.TicketsRelease{
			Envelope:   queues.NewEnvelope(queues.TypeTicketsRelease),
			EventRef:   order.EventID,
			TicketType: order.TicketType,
			Quantity:   order.Quantity,
		})
	}

	s.publish(ctx, queues.TopicNextEventDelete, &queues.NextEventDelete{
		Envelope: queues.NewEnvelope(queues.TypeNextEventDelete),
		Username: order.Username,
		EventRef: order.EventID,
	})

	if withRefund && order.Status == repository.StatusPaid {
		if err := s.payments.Refund(ctx, orderID); err != nil {
			s.logger.Warn("inline refund failed, scheduling retry",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			s.publish(ctx, queues.TopicOrderRefund, &queues.OrderRefund{
				Envelope: queues.NewEnvelope(queues.TypeOrderRefund),
				OrderID:  orderID,
				Attempt:  1,
			})
		}
	}

	s.logger.Info("order deleted",
		zap.String("order_id", orderID),
		zap.String("username", order.Username),
		zap.Bool("with_refund", withRefund),
	)
	return nil
}

// Refund возвращает деньги по заказу через платёжный шлюз
func (s *OrderService) Refund(ctx context.Context, orderID string) error {
	return s.payments.Refund(ctx, orderID)
}

// GetOrder возвращает заказ по ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*repository.Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// ListByUser возвращает оплаченные заказы пользователя
func (s *OrderService) ListByUser(ctx context.Context, username string, page, limit int64) ([]repository.Order, int64, error) {
	return s.repo.ListPaidByUser(ctx, username, page, limit)
}

// ListByEvent возвращает оплаченные заказы события
func (s *OrderService) ListByEvent(ctx context.Context, eventID string, page, limit int64) ([]repository.Order, int64, error) {
	return s.repo.ListPaidByEvent(ctx, eventID, page, limit)
}

// NextEvent возвращает оплаченный заказ пользователя с самой ранней будущей
// датой события; repository.ErrNotFound, если будущих оплаченных заказов нет
func (s *OrderService) NextEvent(ctx context.Context, username string) (*repository.Order, error) {
	return s.repo.NextEvent(ctx, username, time.Now().UTC())
}

// UpdateDatesForEvent обновляет снапшот даты начала события во всех заказах
// и уведомляет проектор по каждому задетому заказу
func (s *OrderService) UpdateDatesForEvent(ctx context.Context, eventID string, startDate time.Time) error {
	if eventID == "" {
		return fmt.Errorf("%w: eventID is required", ErrValidation)
	}
	if startDate.IsZero() {
		return fmt.Errorf("%w: startDate is required", ErrValidation)
	}

	updated, err := s.repo.UpdateEventStartDate(ctx, eventID, startDate)
	if err != nil {
		return fmt.Errorf("failed to update event start date: %w", err)
	}

	for _, order := range updated {
		s.publish(ctx, queues.TopicNextEventPut, &queues.NextEventPut{
			Envelope:       queues.NewEnvelope(queues.TypeNextEventPut),
			Username:       order.Username,
			EventRef:       order.EventID,
			EventTitle:     order.EventTitle,
			EventStartDate: order.EventStartDate,
		})
	}

	s.logger.Info("event start date propagated to orders",
		zap.String("event_id", eventID),
		zap.Time("start_date", startDate),
		zap.Int("orders_updated", len(updated)),
	)
	return nil
}

func (s *OrderService) publishOrderDelete(ctx context.Context, orderID string) {
	s.publish(ctx, queues.TopicOrderDelete, &queues.OrderDelete{
		Envelope: queues.NewEnvelope(queues.TypeOrderDelete),
		OrderID:  orderID,
	})
}

// publish отправляет сообщение на шину. Ошибка публикации логируется и не
// валит основную операцию: шина с at-least-once доставкой догонит.
func (s *OrderService) publish(ctx context.Context, topic string, msg queues.Message) {
	if err := s.publisher.Publish(ctx, topic, msg); err != nil {
		s.logger.Error("failed to publish message",
			zap.String("topic", topic),
			zap.String("event_type", msg.Type()),
			zap.Error(err),
		)
	}
}
