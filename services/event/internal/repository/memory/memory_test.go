package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nirbenah/final-project-backend/services/event/internal/repository"
)

func seedEvent(t *testing.T, repo *MemoryRepository, quantity int64) string {
	t.Helper()
	id, err := repo.Create(context.Background(), &repository.Event{
		Title:     "Концерт",
		Category:  "Concert",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(30 * time.Hour),
		Tickets: []repository.Ticket{
			{Name: "standard", Quantity: quantity, Price: 30, Available: quantity},
		},
		TicketsAvailable: quantity,
		MinPrice:         30,
	})
	require.NoError(t, err)
	return id
}

// Конкурентные резервы не могут увести остаток в минус и не могут
// потратить один и тот же билет дважды
func TestReserve_ConcurrentNeverNegative(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	const capacity = 50
	const workers = 200
	id := seedEvent(t, repo, capacity)

	var wg sync.WaitGroup
	var succeeded sync.Map
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, id, "standard", 1); err == nil {
				succeeded.Store(n, struct{}{})
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	succeeded.Range(func(any, any) bool { wins++; return true })
	require.Equal(t, capacity, wins)

	event, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), event.FindTicket("standard").Available)
	require.Equal(t, int64(0), event.TicketsAvailable)
}

// Release сверх вместимости отклоняется даже под конкуренцией
func TestRelease_ConcurrentNeverExceedsQuantity(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	const capacity = 10
	id := seedEvent(t, repo, capacity)

	// Снимаем половину, затем конкурентно возвращаем больше, чем сняли
	_, err := repo.Reserve(ctx, id, "standard", 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Release(ctx, id, "standard", 1)
		}()
	}
	wg.Wait()

	event, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(capacity), event.FindTicket("standard").Available)
	require.Equal(t, int64(capacity), event.TicketsAvailable)
}

func TestReserve_TicketAndAggregateMoveTogether(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	id := seedEvent(t, repo, 10)

	updated, err := repo.Reserve(ctx, id, "standard", 4)
	require.NoError(t, err)
	require.Equal(t, int64(6), updated.FindTicket("standard").Available)
	require.Equal(t, int64(6), updated.TicketsAvailable)
}

func TestReserve_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	id := seedEvent(t, repo, 2)

	_, err := repo.Reserve(ctx, "missing", "standard", 1)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Reserve(ctx, id, "missing", 1)
	require.ErrorIs(t, err, repository.ErrTicketNotFound)

	_, err = repo.Reserve(ctx, id, "standard", 3)
	require.ErrorIs(t, err, repository.ErrInsufficientTickets)
}

func TestListAvailable_FiltersPastAndSoldOut(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	future := seedEvent(t, repo, 5)

	// Распроданное будущее событие
	soldOut := seedEvent(t, repo, 1)
	_, err := repo.Reserve(ctx, soldOut, "standard", 1)
	require.NoError(t, err)

	// Прошедшее событие
	_, err = repo.Create(ctx, &repository.Event{
		Title:            "Вчерашний фестиваль",
		StartDate:        time.Now().Add(-24 * time.Hour),
		EndDate:          time.Now().Add(-20 * time.Hour),
		Tickets:          []repository.Ticket{{Name: "standard", Quantity: 5, Price: 10, Available: 5}},
		TicketsAvailable: 5,
	})
	require.NoError(t, err)

	events, total, err := repo.ListAvailable(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	require.Equal(t, future, events[0].ID)
}
