// Package memory предоставляет потокобезопасную in-memory реализацию
// OrderRepository для тестов и локальной разработки.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
)

// Repository реализует OrderRepository в памяти
type Repository struct {
	mu     sync.Mutex
	orders map[string]*repository.Order
}

// NewRepository создаёт новый in-memory репозиторий
func NewRepository() *Repository {
	return &Repository{
		orders: make(map[string]*repository.Order),
	}
}

func cloneOrder(o *repository.Order) *repository.Order {
	c := *o
	return &c
}

// Create сохраняет новый заказ
func (r *Repository) Create(_ context.Context, order *repository.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// GetByID возвращает заказ по ID
func (r *Repository) GetByID(_ context.Context, id string) (*repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(order), nil
}

// Delete удаляет заказ
func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

// Transition атомарно переводит заказ из одного из статусов from в to
func (r *Repository) Transition(_ context.Context, id string, from []repository.Status, to repository.Status) (*repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, s := range from {
		if order.Status == s {
			order.Status = to
			return cloneOrder(order), nil
		}
	}
	return nil, repository.ErrInvalidTransition
}

func (r *Repository) listPaid(match func(*repository.Order) bool, page, limit int64) ([]repository.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	r.mu.Lock()
	all := make([]repository.Order, 0)
	for _, order := range r.orders {
		if order.Status == repository.StatusPaid && match(order) {
			all = append(all, *order)
		}
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].EventStartDate.Equal(all[j].EventStartDate) {
			return all[i].EventStartDate.Before(all[j].EventStartDate)
		}
		return all[i].ID < all[j].ID
	})

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= total {
		return []repository.Order{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// ListPaidByUser возвращает оплаченные заказы пользователя
func (r *Repository) ListPaidByUser(_ context.Context, username string, page, limit int64) ([]repository.Order, int64, error) {
	return r.listPaid(func(o *repository.Order) bool { return o.Username == username }, page, limit)
}

// ListPaidByEvent возвращает оплаченные заказы события
func (r *Repository) ListPaidByEvent(_ context.Context, eventID string, page, limit int64) ([]repository.Order, int64, error) {
	return r.listPaid(func(o *repository.Order) bool { return o.EventID == eventID }, page, limit)
}

// UpdateEventStartDate обновляет снапшот даты начала события во всех заказах
func (r *Repository) UpdateEventStartDate(_ context.Context, eventID string, startDate time.Time) ([]repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := make([]repository.Order, 0)
	for _, order := range r.orders {
		if order.EventID == eventID {
			order.EventStartDate = startDate
			updated = append(updated, *order)
		}
	}
	return updated, nil
}

// ListDueForTimeout возвращает заказы в статусе created с истёкшим дедлайном
func (r *Repository) ListDueForTimeout(_ context.Context, now time.Time, limit int64) ([]repository.Order, error) {
	if limit < 1 {
		limit = 100
	}

	r.mu.Lock()
	due := make([]repository.Order, 0)
	for _, order := range r.orders {
		if order.Status == repository.StatusCreated && !order.CheckoutDeadline.After(now) {
			due = append(due, *order)
		}
	}
	r.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		return due[i].CheckoutDeadline.Before(due[j].CheckoutDeadline)
	})
	if int64(len(due)) > limit {
		due = due[:limit]
	}
	return due, nil
}

// NextEvent возвращает оплаченный заказ пользователя с самой ранней
// будущей датой события
func (r *Repository) NextEvent(_ context.Context, username string, now time.Time) (*repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next *repository.Order
	for _, order := range r.orders {
		if order.Username != username || order.Status != repository.StatusPaid {
			continue
		}
		if !order.EventStartDate.After(now) {
			continue
		}
		if next == nil || order.EventStartDate.Before(next.EventStartDate) ||
			(order.EventStartDate.Equal(next.EventStartDate) && order.ID < next.ID) {
			next = order
		}
	}
	if next == nil {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(next), nil
}
