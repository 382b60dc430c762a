package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nirbenah/final-project-backend/services/event/internal/repository"
)

// MemoryRepository реализует EventRepository используя in-memory хранилище
// Используется для разработки и тестирования
// Проверки и инкременты остатков выполняются под одним мьютексом —
// та же атомарность "условие + апдейт одним шагом", что у MongoDB реализации
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*repository.Event
	nextID int
}

// NewMemoryRepository создаёт новый in-memory репозиторий
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events: make(map[string]*repository.Event),
		nextID: 1,
	}
}

// Create сохраняет новое событие и возвращает сгенерированный ID
func (r *MemoryRepository) Create(ctx context.Context, event *repository.Event) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("event-%d", r.nextID)
	r.nextID++

	stored := cloneEvent(event)
	stored.ID = id
	r.events[id] = stored

	return id, nil
}

// GetByID возвращает копию события по ID
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*repository.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneEvent(event), nil
}

// List возвращает страницу событий и общее количество
func (r *MemoryRepository) List(ctx context.Context, page, limit int64) ([]repository.Event, int64, error) {
	return r.list(func(*repository.Event) bool { return true }, page, limit)
}

// ListAvailable возвращает страницу будущих событий с доступными билетами
func (r *MemoryRepository) ListAvailable(ctx context.Context, page, limit int64) ([]repository.Event, int64, error) {
	now := time.Now()
	return r.list(func(e *repository.Event) bool {
		return e.StartDate.After(now) && e.TicketsAvailable > 0
	}, page, limit)
}

func (r *MemoryRepository) list(match func(*repository.Event) bool, page, limit int64) ([]repository.Event, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	all := make([]repository.Event, 0, len(r.events))
	for _, e := range r.events {
		if match(e) {
			all = append(all, *cloneEvent(e))
		}
	}

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= total {
		return []repository.Event{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// Reserve уменьшает остаток билета, если хватает и элемента, и агрегата
func (r *MemoryRepository) Reserve(ctx context.Context, eventID, ticketType string, qty int64) (*repository.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ticket := event.FindTicket(ticketType)
	if ticket == nil {
		return nil, repository.ErrTicketNotFound
	}
	if ticket.Available < qty || event.TicketsAvailable < qty {
		return nil, repository.ErrInsufficientTickets
	}

	ticket.Available -= qty
	event.TicketsAvailable -= qty
	return cloneEvent(event), nil
}

// Release увеличивает остаток билета, не превышая вместимость
func (r *MemoryRepository) Release(ctx context.Context, eventID, ticketType string, qty int64) (*repository.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ticket := event.FindTicket(ticketType)
	if ticket == nil {
		return nil, repository.ErrTicketNotFound
	}
	if ticket.Available+qty > ticket.Quantity {
		return nil, repository.ErrMaxReached
	}

	ticket.Available += qty
	event.TicketsAvailable += qty
	return cloneEvent(event), nil
}

// SetMinPrice перезаписывает денормализованный min_price
func (r *MemoryRepository) SetMinPrice(ctx context.Context, eventID string, minPrice float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	event.MinPrice = minPrice
	return nil
}

// UpdateDates обновляет даты события
func (r *MemoryRepository) UpdateDates(ctx context.Context, eventID string, startDate, endDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	event.StartDate = startDate
	event.EndDate = endDate
	return nil
}

// IncrementComments увеличивает счётчик комментариев на 1
func (r *MemoryRepository) IncrementComments(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	event.CommentsNumber++
	return nil
}

func cloneEvent(e *repository.Event) *repository.Event {
	out := *e
	out.Tickets = make([]repository.Ticket, len(e.Tickets))
	copy(out.Tickets, e.Tickets)
	return &out
}
