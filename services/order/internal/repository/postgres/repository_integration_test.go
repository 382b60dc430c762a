//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
	"github.com/nirbenah/final-project-backend/services/order/migrations"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	// Поднимаем PostgreSQL контейнер через testcontainers
	postgresContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("order_user"),
		tcpostgres.WithPassword("order_password"),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, postgresContainer.Terminate(ctx))
	}()

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Открываем *sql.DB через pgx stdlib для goose миграций
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	// Ждём готовности БД через ping с retry
	var pingErr error
	for i := 0; i < 10; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, pingErr, "Failed to ping database after retries")

	// Миграции встроены в бинарник, путь к файлам не нужен
	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.Up(db, "."))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewRepository(pool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	newOrder := func(id, username string, status repository.Status, start time.Time) *repository.Order {
		return &repository.Order{
			ID:               id,
			Username:         username,
			EventID:          "ev-1",
			EventTitle:       "Go Conference",
			EventStartDate:   start,
			TicketType:       "standard",
			OrderDate:        now,
			Quantity:         2,
			PricePerTicket:   50,
			Status:           status,
			CheckoutDeadline: now.Add(140 * time.Second),
		}
	}

	t.Run("create and get", func(t *testing.T) {
		order := newOrder("o-create", "gopher", repository.StatusCreated, now.Add(24*time.Hour))
		require.NoError(t, repo.Create(ctx, order))

		got, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		require.Equal(t, order.Username, got.Username)
		require.Equal(t, repository.StatusCreated, got.Status)
		require.True(t, got.CheckoutDeadline.Equal(order.CheckoutDeadline))

		_, err = repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("conditional transition", func(t *testing.T) {
		order := newOrder("o-transition", "gopher", repository.StatusCreated, now.Add(24*time.Hour))
		require.NoError(t, repo.Create(ctx, order))

		claimed, err := repo.Transition(ctx, order.ID,
			[]repository.Status{repository.StatusCreated}, repository.StatusAwaitingPayment)
		require.NoError(t, err)
		require.Equal(t, repository.StatusAwaitingPayment, claimed.Status)

		// Таймер опоздал: из awaiting_payment перехода в timed_out нет
		_, err = repo.Transition(ctx, order.ID,
			[]repository.Status{repository.StatusCreated}, repository.StatusTimedOut)
		require.ErrorIs(t, err, repository.ErrInvalidTransition)

		_, err = repo.Transition(ctx, "missing",
			[]repository.Status{repository.StatusCreated}, repository.StatusTimedOut)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("transition race has single winner", func(t *testing.T) {
		order := newOrder("o-race", "gopher", repository.StatusCreated, now.Add(24*time.Hour))
		require.NoError(t, repo.Create(ctx, order))

		const contenders = 20
		var wins int
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			to := repository.StatusAwaitingPayment
			if i%2 == 0 {
				to = repository.StatusTimedOut
			}
			go func(to repository.Status) {
				defer wg.Done()
				if _, err := repo.Transition(ctx, order.ID,
					[]repository.Status{repository.StatusCreated}, to); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(to)
		}
		wg.Wait()
		require.Equal(t, 1, wins)
	})

	t.Run("list paid by user sorted by event start date", func(t *testing.T) {
		for i, start := range []time.Time{now.Add(72 * time.Hour), now.Add(24 * time.Hour), now.Add(48 * time.Hour)} {
			order := newOrder("o-list-"+string(rune('a'+i)), "lister", repository.StatusPaid, start)
			require.NoError(t, repo.Create(ctx, order))
		}
		require.NoError(t, repo.Create(ctx,
			newOrder("o-list-unpaid", "lister", repository.StatusCreated, now.Add(time.Hour))))

		orders, total, err := repo.ListPaidByUser(ctx, "lister", 1, 10)
		require.NoError(t, err)
		require.EqualValues(t, 3, total)
		require.Len(t, orders, 3)
		for i := 1; i < len(orders); i++ {
			require.False(t, orders[i].EventStartDate.Before(orders[i-1].EventStartDate))
		}

		page, total, err := repo.ListPaidByUser(ctx, "lister", 2, 2)
		require.NoError(t, err)
		require.EqualValues(t, 3, total)
		require.Len(t, page, 1)
	})

	t.Run("update event start date returns touched orders", func(t *testing.T) {
		order := newOrder("o-dates", "traveler", repository.StatusPaid, now.Add(24*time.Hour))
		order.EventID = "ev-dates"
		require.NoError(t, repo.Create(ctx, order))

		newStart := now.Add(200 * time.Hour)
		updated, err := repo.UpdateEventStartDate(ctx, "ev-dates", newStart)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		require.True(t, updated[0].EventStartDate.Equal(newStart))
	})

	t.Run("list due for timeout", func(t *testing.T) {
		overdue := newOrder("o-overdue", "sleeper", repository.StatusCreated, now.Add(24*time.Hour))
		overdue.CheckoutDeadline = now.Add(-time.Minute)
		require.NoError(t, repo.Create(ctx, overdue))

		fresh := newOrder("o-fresh", "sleeper", repository.StatusCreated, now.Add(24*time.Hour))
		fresh.CheckoutDeadline = now.Add(time.Hour)
		require.NoError(t, repo.Create(ctx, fresh))

		due, err := repo.ListDueForTimeout(ctx, now, 100)
		require.NoError(t, err)
		ids := make([]string, 0, len(due))
		for _, o := range due {
			ids = append(ids, o.ID)
		}
		require.Contains(t, ids, "o-overdue")
		require.NotContains(t, ids, "o-fresh")
	})

	t.Run("next event picks earliest future paid", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx,
			newOrder("o-next-past", "next", repository.StatusPaid, now.Add(-time.Hour))))
		require.NoError(t, repo.Create(ctx,
			newOrder("o-next-later", "next", repository.StatusPaid, now.Add(72*time.Hour))))
		require.NoError(t, repo.Create(ctx,
			newOrder("o-next-soon", "next", repository.StatusPaid, now.Add(12*time.Hour))))

		next, err := repo.NextEvent(ctx, "next", now)
		require.NoError(t, err)
		require.Equal(t, "o-next-soon", next.ID)

		_, err = repo.NextEvent(ctx, "nobody", now)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		order := newOrder("o-delete", "gopher", repository.StatusPaid, now.Add(24*time.Hour))
		require.NoError(t, repo.Create(ctx, order))
		require.NoError(t, repo.Delete(ctx, order.ID))
		require.ErrorIs(t, repo.Delete(ctx, order.ID), repository.ErrNotFound)
	})
}
