//go:build integration

package mongo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/nirbenah/final-project-backend/services/event/internal/repository"
)

func setupMongo(t *testing.T, ctx context.Context) *mongodriver.Client {
	t.Helper()

	mongoC, err := mongodb.RunContainer(ctx, tc.WithImage("mongo:6"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, mongoC.Terminate(context.Background())) })

	mongoURI, err := mongoC.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(mongoURI))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	// Ждём готовности MongoDB (ping с retry)
	var pingErr error
	for i := 0; i < 20; i++ {
		pingErr = client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
		if pingErr == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, pingErr, "MongoDB did not become ready in time")

	return client
}

func seedEvent(t *testing.T, ctx context.Context, repo *Repository, quantity int64) string {
	t.Helper()
	id, err := repo.Create(ctx, &repository.Event{
		Title:     "Integration Fest",
		Category:  "Festival",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(48 * time.Hour),
		Tickets: []repository.Ticket{
			{Name: "standard", Quantity: quantity, Price: 40, Available: quantity},
			{Name: "vip", Quantity: 5, Price: 150, Available: 5},
		},
		TicketsAvailable: quantity + 5,
		MinPrice:         40,
	})
	require.NoError(t, err)
	return id
}

func TestRepository_Integration_ReserveRelease(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := setupMongo(t, ctx)
	repo := NewRepository(client, "events_test")

	id := seedEvent(t, ctx, repo, 10)

	// Успешный reserve двигает элемент и агрегат вместе
	updated, err := repo.Reserve(ctx, id, "standard", 4)
	require.NoError(t, err)
	require.Equal(t, int64(6), updated.FindTicket("standard").Available)
	require.Equal(t, int64(11), updated.TicketsAvailable)

	// Release возвращает ровно столько же
	updated, err = repo.Release(ctx, id, "standard", 4)
	require.NoError(t, err)
	require.Equal(t, int64(10), updated.FindTicket("standard").Available)
	require.Equal(t, int64(15), updated.TicketsAvailable)

	// Release на полном остатке отклоняется
	_, err = repo.Release(ctx, id, "standard", 1)
	require.ErrorIs(t, err, repository.ErrMaxReached)

	// Reserve сверх остатка отклоняется
	_, err = repo.Reserve(ctx, id, "vip", 6)
	require.ErrorIs(t, err, repository.ErrInsufficientTickets)

	// Отсутствующий билет и событие
	_, err = repo.Reserve(ctx, id, "backstage", 1)
	require.ErrorIs(t, err, repository.ErrTicketNotFound)
	_, err = repo.Reserve(ctx, "64b0c0ffee0ddba11ca7e000", "standard", 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

// Конкурентные резервы против одного типа билета: остаток никогда не уходит
// в минус, побеждает ровно столько запросов, сколько было билетов
func TestRepository_Integration_ConcurrentReserve(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := setupMongo(t, ctx)
	repo := NewRepository(client, "events_test_concurrent")

	const capacity = 20
	const workers = 60
	id := seedEvent(t, ctx, repo, capacity)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Reserve(ctx, id, "standard", 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, repository.ErrInsufficientTickets)
		}
	}
	require.Equal(t, capacity, wins)

	event, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), event.FindTicket("standard").Available)
	require.Equal(t, int64(5), event.TicketsAvailable)
}

func TestRepository_Integration_ListAvailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := setupMongo(t, ctx)
	repo := NewRepository(client, "events_test_list")

	future := seedEvent(t, ctx, repo, 3)

	// Прошедшее событие не попадает в выдачу
	_, err := repo.Create(ctx, &repository.Event{
		Title:            "Yesterday",
		Category:         "Concert",
		StartDate:        time.Now().Add(-24 * time.Hour),
		EndDate:          time.Now().Add(-20 * time.Hour),
		Tickets:          []repository.Ticket{{Name: "standard", Quantity: 3, Price: 10, Available: 3}},
		TicketsAvailable: 3,
	})
	require.NoError(t, err)

	events, total, err := repo.ListAvailable(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	require.Equal(t, future, events[0].ID)
}
