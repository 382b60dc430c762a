package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
)

const orderColumns = `id, username, event_id, event_title, event_start_date, ticket_type,
	 order_date, quantity, price_per_ticket, status, checkout_deadline`

// Repository реализует OrderRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

func scanOrder(row pgx.Row) (*repository.Order, error) {
	var order repository.Order
	err := row.Scan(
		&order.ID,
		&order.Username,
		&order.EventID,
		&order.EventTitle,
		&order.EventStartDate,
		&order.TicketType,
		&order.OrderDate,
		&order.Quantity,
		&order.PricePerTicket,
		&order.Status,
		&order.CheckoutDeadline,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create сохраняет новый заказ в PostgreSQL
func (r *Repository) Create(ctx context.Context, order *repository.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID,
		order.Username,
		order.EventID,
		order.EventTitle,
		order.EventStartDate,
		order.TicketType,
		order.OrderDate,
		order.Quantity,
		order.PricePerTicket,
		order.Status,
		order.CheckoutDeadline,
	)
	return err
}

// GetByID получает заказ по ID из PostgreSQL
func (r *Repository) GetByID(ctx context.Context, id string) (*repository.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// Delete удаляет заказ
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Transition атомарно переводит заказ из одного из статусов from в to.
// Одиночный условный UPDATE: выиграть гонку purchase vs expiry может ровно
// одна сторона, проигравшая получает ErrInvalidTransition.
func (r *Repository) Transition(ctx context.Context, id string, from []repository.Status, to repository.Status) (*repository.Order, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("transition: empty source status set")
	}
	fromStr := make([]string, 0, len(from))
	for _, s := range from {
		fromStr = append(fromStr, string(s))
	}

	order, err := scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders
		 SET status = $2
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING `+orderColumns,
		id, string(to), fromStr))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Условие не сработало: различаем "заказа нет" и "статус не тот"
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrInvalidTransition
}

func (r *Repository) listPaid(ctx context.Context, field, value string, page, limit int64) ([]repository.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	offset := (page - 1) * limit

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE `+field+` = $1 AND status = $2`,
		value, string(repository.StatusPaid)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE `+field+` = $1 AND status = $2
		 ORDER BY event_start_date ASC, id ASC
		 LIMIT $3 OFFSET $4`,
		value, string(repository.StatusPaid), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]repository.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *order)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListPaidByUser возвращает оплаченные заказы пользователя,
// отсортированные по дате начала события
func (r *Repository) ListPaidByUser(ctx context.Context, username string, page, limit int64) ([]repository.Order, int64, error) {
	return r.listPaid(ctx, "username", username, page, limit)
}

// ListPaidByEvent возвращает оплаченные заказы события
func (r *Repository) ListPaidByEvent(ctx context.Context, eventID string, page, limit int64) ([]repository.Order, int64, error) {
	return r.listPaid(ctx, "event_id", eventID, page, limit)
}

// UpdateEventStartDate обновляет снапшот event_start_date во всех заказах
// события и возвращает обновлённые заказы
func (r *Repository) UpdateEventStartDate(ctx context.Context, eventID string, startDate time.Time) ([]repository.Order, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE orders
		 SET event_start_date = $2
		 WHERE event_id = $1
		 RETURNING `+orderColumns,
		eventID, startDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]repository.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListDueForTimeout возвращает заказы в статусе created с истёкшим дедлайном.
// Используется сканером таймера, в том числе для подхвата после рестарта.
func (r *Repository) ListDueForTimeout(ctx context.Context, now time.Time, limit int64) ([]repository.Order, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = $1 AND checkout_deadline <= $2
		 ORDER BY checkout_deadline ASC
		 LIMIT $3`,
		string(repository.StatusCreated), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]repository.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// NextEvent возвращает оплаченный заказ пользователя с самой ранней
// будущей датой события
func (r *Repository) NextEvent(ctx context.Context, username string, now time.Time) (*repository.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE username = $1 AND status = $2 AND event_start_date > $3
		 ORDER BY event_start_date ASC, id ASC
		 LIMIT 1`,
		username, string(repository.StatusPaid), now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}
