package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
)

func TestCheckoutTimer_ExpiresOverdueOrders(t *testing.T) {
	ctx := context.Background()
	// Нулевое окно: дедлайн истекает сразу после создания
	env := newTestEnv(t, -time.Second)

	first, err := env.svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)
	second, err := env.svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)

	timer := NewCheckoutTimer(zap.NewNop(), env.repo, env.svc, time.Minute, 100)
	require.NoError(t, timer.processBatch(ctx))

	for _, id := range []string{first.ID, second.ID} {
		stored, err := env.repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, repository.StatusTimedOut, stored.Status)
	}
	require.Len(t, env.pub.byTopic(queues.TopicEventTickets), 2)
}

func TestCheckoutTimer_SkipsFreshAndStartedOrders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	fresh, err := env.svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)

	paid, err := env.svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)
	_, err = env.svc.Purchase(ctx, paid.ID, validPayload())
	require.NoError(t, err)

	timer := NewCheckoutTimer(zap.NewNop(), env.repo, env.svc, time.Minute, 100)
	require.NoError(t, timer.processBatch(ctx))

	stored, err := env.repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusCreated, stored.Status)

	stored, err = env.repo.GetByID(ctx, paid.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusPaid, stored.Status)
}

func TestCheckoutTimer_StartStopsOnContextCancel(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	timer := NewCheckoutTimer(zap.NewNop(), env.repo, env.svc, 10*time.Millisecond, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = timer.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checkout timer did not stop after context cancel")
	}
}
