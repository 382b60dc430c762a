package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/event/internal/repository"
)

// Категории событий, допустимые при создании
var Categories = []string{
	"Charity Event", "Concert", "Conference", "Convention",
	"Exhibition", "Festival", "Product Launch", "Sports Event",
}

// ErrValidation возвращается при невалидных входных данных (клиентская ошибка, 400)
var ErrValidation = errors.New("validation failed")

// EventService содержит бизнес-логику работы с событиями и остатками билетов.
// Зависит от интерфейса EventRepository, а не от конкретной реализации.
type EventService struct {
	logger    *zap.Logger
	repo      repository.EventRepository
	publisher Publisher
}

// NewEventService создаёт новый экземпляр EventService
func NewEventService(logger *zap.Logger, repo repository.EventRepository, publisher Publisher) *EventService {
	return &EventService{
		logger:    logger,
		repo:      repo,
		publisher: publisher,
	}
}

// CreateEventInput представляет запрос на создание события
type CreateEventInput struct {
	Title       string
	Category    string
	Description string
	Organizer   string
	StartDate   time.Time
	EndDate     time.Time
	Location    string
	Tickets     []TicketInput
	Image       string
}

// TicketInput представляет один тип билета в запросе на создание
type TicketInput struct {
	Name     string
	Quantity int64
	Price    float64
}

// CreateEvent валидирует и сохраняет новое событие.
// available каждого билета инициализируется полной вместимостью,
// денормализованные tickets_available и min_price вычисляются здесь.
func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (string, error) {
	if err := validateCreateEvent(input); err != nil {
		return "", err
	}

	event := &repository.Event{
		Title:       input.Title,
		Category:    input.Category,
		Description: input.Description,
		Organizer:   input.Organizer,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Location:    input.Location,
		Image:       input.Image,
		Tickets:     make([]repository.Ticket, 0, len(input.Tickets)),
	}

	for _, t := range input.Tickets {
		event.Tickets = append(event.Tickets, repository.Ticket{
			Name:      t.Name,
			Quantity:  t.Quantity,
			Price:     t.Price,
			Available: t.Quantity,
		})
		event.TicketsAvailable += t.Quantity
	}
	// min_price считается только по билетам с available > 0
	event.MinPrice = event.ComputeMinPrice()
	event.CommentsNumber = 0

	id, err := s.repo.Create(ctx, event)
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}

	s.logger.Info("Event created",
		zap.String("event_id", id),
		zap.String("title", event.Title),
		zap.Int64("tickets_available", event.TicketsAvailable))

	return id, nil
}

func validateCreateEvent(input CreateEventInput) error {
	if input.Title == "" || input.Description == "" || input.Organizer == "" || input.Location == "" {
		return fmt.Errorf("%w: title, description, organizer and location are required", ErrValidation)
	}
	validCategory := false
	for _, c := range Categories {
		if input.Category == c {
			validCategory = true
			break
		}
	}
	if !validCategory {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return fmt.Errorf("%w: start_date and end_date are required", ErrValidation)
	}
	if !input.StartDate.Before(input.EndDate) {
		return fmt.Errorf("%w: end date must be greater than start date", ErrValidation)
	}
	if len(input.Tickets) == 0 {
		return fmt.Errorf("%w: tickets must be an array of at least one ticket", ErrValidation)
	}
	seen := make(map[string]struct{}, len(input.Tickets))
	for _, t := range input.Tickets {
		if t.Name == "" {
			return fmt.Errorf("%w: ticket name is required", ErrValidation)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: duplicate ticket name %q", ErrValidation, t.Name)
		}
		seen[t.Name] = struct{}{}
		if t.Quantity < 0 {
			return fmt.Errorf("%w: ticket quantity must be >= 0", ErrValidation)
		}
		if t.Price < 0 {
			return fmt.Errorf("%w: ticket price must be >= 0", ErrValidation)
		}
	}
	return nil
}

// GetEvent возвращает событие по ID
func (s *EventService) GetEvent(ctx context.Context, id string) (*repository.Event, error) {
	return s.repo.GetByID(ctx, id)
}

// ListEvents возвращает страницу событий и общее количество
func (s *EventService) ListEvents(ctx context.Context, page, limit int64) ([]repository.Event, int64, error) {
	return s.repo.List(ctx, page, limit)
}

// ListAvailableEvents возвращает страницу будущих событий с доступными билетами
func (s *EventService) ListAvailableEvents(ctx context.Context, page, limit int64) ([]repository.Event, int64, error) {
	return s.repo.ListAvailable(ctx, page, limit)
}

// ReserveTickets уменьшает остаток билета указанного типа на qty.
// Если распродан самый дешёвый из доступных билетов, min_price пересчитывается
// best-effort: ошибка пересчёта логируется и НЕ откатывает резервирование.
func (s *EventService) ReserveTickets(ctx context.Context, eventID, ticketType string, qty int64) error {
	if ticketType == "" || qty <= 0 {
		return fmt.Errorf("%w: ticket name and positive quantity are required", ErrValidation)
	}

	updated, err := s.repo.Reserve(ctx, eventID, ticketType, qty)
	if err != nil {
		return err
	}

	s.logger.Info("Tickets reserved",
		zap.String("event_id", eventID),
		zap.String("ticket_type", ticketType),
		zap.Int64("quantity", qty))

	// Самый дешёвый доступный билет распродан — min_price устарел
	ticket := updated.FindTicket(ticketType)
	if ticket != nil && ticket.Available == 0 && ticket.Price == updated.MinPrice {
		s.recomputeMinPrice(ctx, updated)
	}
	return nil
}

// ReleaseTickets увеличивает остаток билета указанного типа на qty.
// Возвращает ErrMaxReached, если release пришёл без парного резервирования.
func (s *EventService) ReleaseTickets(ctx context.Context, eventID, ticketType string, qty int64) error {
	if ticketType == "" || qty <= 0 {
		return fmt.Errorf("%w: ticket name and positive quantity are required", ErrValidation)
	}

	updated, err := s.repo.Release(ctx, eventID, ticketType, qty)
	if err != nil {
		return err
	}

	s.logger.Info("Tickets released",
		zap.String("event_id", eventID),
		zap.String("ticket_type", ticketType),
		zap.Int64("quantity", qty))

	// Ранее распроданный билет снова доступен — min_price мог уменьшиться
	ticket := updated.FindTicket(ticketType)
	if ticket != nil && ticket.Available == qty {
		s.recomputeMinPrice(ctx, updated)
	}
	return nil
}

// recomputeMinPrice пересчитывает min_price по свежей копии документа.
// Best-effort: сбой логируется, резервирование не откатывается.
func (s *EventService) recomputeMinPrice(ctx context.Context, event *repository.Event) {
	minPrice := event.ComputeMinPrice()
	if err := s.repo.SetMinPrice(ctx, event.ID, minPrice); err != nil {
		s.logger.Error("Failed to recompute min_price",
			zap.String("event_id", event.ID),
			zap.Float64("min_price", minPrice),
			zap.Error(err))
		return
	}
	s.logger.Debug("min_price recomputed",
		zap.String("event_id", event.ID),
		zap.Float64("min_price", minPrice))
}

// UpdateEventDates переносит событие на новые даты и рассылает изменение
// start_date в order-startDate-queue, чтобы заказы обновили свои снапшоты.
func (s *EventService) UpdateEventDates(ctx context.Context, eventID string, startDate, endDate time.Time) error {
	if startDate.IsZero() || endDate.IsZero() || !startDate.Before(endDate) {
		return fmt.Errorf("%w: invalid dates", ErrValidation)
	}

	existing, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if existing.StartDate.After(startDate) {
		return fmt.Errorf("%w: new start date must be greater than the current start date", ErrValidation)
	}

	if err := s.repo.UpdateDates(ctx, eventID, startDate, endDate); err != nil {
		return err
	}

	msg := queues.OrderStartDate{
		Envelope:  queues.NewEnvelope(queues.TypeOrderStartDate),
		EventRef:  eventID,
		StartDate: startDate,
	}
	if err := s.publisher.Publish(ctx, queues.TopicOrderStartDate, &msg); err != nil {
		// Даты уже сохранены; доставка обновления заказам не произошла
		s.logger.Error("Failed to publish start date change",
			zap.String("event_id", eventID),
			zap.Error(err))
		return fmt.Errorf("publish start date change: %w", err)
	}

	s.logger.Info("Event dates updated",
		zap.String("event_id", eventID),
		zap.Time("start_date", startDate))
	return nil
}

// IncrementComments увеличивает счётчик комментариев события на 1
func (s *EventService) IncrementComments(ctx context.Context, eventID string) error {
	return s.repo.IncrementComments(ctx, eventID)
}
