package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	platformkafka "github.com/nirbenah/final-project-backend/platform/kafka"
	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/user/internal/client/orderapi"
	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
	"github.com/nirbenah/final-project-backend/services/user/internal/repository/memory"
	"github.com/nirbenah/final-project-backend/services/user/internal/service"
)

type stubOrderClient struct {
	mu   sync.Mutex
	next map[string]orderapi.NextEvent
}

func (c *stubOrderClient) GetNextEvent(_ context.Context, username string) (*orderapi.NextEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.next[username]
	return &next, nil
}

type capturingPublisher struct {
	mu        sync.Mutex
	published []queues.Message
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, msg queues.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return nil
}

func newTestConsumers(t *testing.T) (*Consumers, *memory.ProjectionRepository, *stubOrderClient) {
	t.Helper()
	projections := memory.NewProjectionRepository()
	orders := &stubOrderClient{next: make(map[string]orderapi.NextEvent)}
	projector := service.NewProjector(zap.NewNop(), projections, orders, &capturingPublisher{})

	c := &Consumers{
		logger:    zap.NewNop(),
		projector: projector,
	}
	return c, projections, orders
}

func encode(t *testing.T, msg queues.Message) segmentio.Message {
	t.Helper()
	value, err := json.Marshal(msg)
	require.NoError(t, err)
	return segmentio.Message{Key: []byte(msg.Key()), Value: value}
}

func TestHandlePaid_UpdatesProjection(t *testing.T) {
	ctx := context.Background()
	c, projections, _ := newTestConsumers(t)
	start := time.Now().UTC().Add(24 * time.Hour)

	msg := &queues.NextEventPost{
		Envelope:       queues.NewEnvelope(queues.TypeNextEventPost),
		Username:       "gopher",
		EventRef:       "ev-1",
		EventTitle:     "Go Conference",
		EventStartDate: start,
	}
	require.NoError(t, c.handlePaid(ctx, encode(t, msg)))

	projection, err := projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", projection.EventID)
}

func TestHandlePaid_MalformedIsPermanent(t *testing.T) {
	c, _, _ := newTestConsumers(t)

	err := c.handlePaid(context.Background(), segmentio.Message{Value: []byte(`{"username":""}`)})
	require.Error(t, err)
	require.True(t, platformkafka.IsPermanent(err))
}

func TestHandleUpdated_RecomputeSignal(t *testing.T) {
	ctx := context.Background()
	c, projections, orders := newTestConsumers(t)
	start := time.Now().UTC().Add(24 * time.Hour)
	orders.next["gopher"] = orderapi.NextEvent{
		EventID: "ev-source", EventTitle: "From source", EventStartDate: start,
	}

	msg := &queues.NextEventPut{
		Envelope: queues.NewEnvelope(queues.TypeNextEventPut),
		Username: "gopher",
	}
	require.NoError(t, c.handleUpdated(ctx, encode(t, msg)))

	projection, err := projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-source", projection.EventID)
}

func TestHandleDeleted_ClearsWhenNoOrdersRemain(t *testing.T) {
	ctx := context.Background()
	c, projections, _ := newTestConsumers(t)

	require.NoError(t, projections.Set(ctx, repository.NextEvent{
		Username:       "gopher",
		EventID:        "ev-1",
		EventTitle:     "Go Conference",
		EventStartDate: time.Now().UTC().Add(24 * time.Hour),
	}))

	msg := &queues.NextEventDelete{
		Envelope: queues.NewEnvelope(queues.TypeNextEventDelete),
		Username: "gopher",
		EventRef: "ev-1",
	}
	require.NoError(t, c.handleDeleted(ctx, encode(t, msg)))

	_, err := projections.Get(ctx, "gopher")
	require.ErrorIs(t, err, repository.ErrProjectionNotFound)
}

func TestHandleDeleted_Redelivery(t *testing.T) {
	ctx := context.Background()
	c, projections, _ := newTestConsumers(t)

	msg := &queues.NextEventDelete{
		Envelope: queues.NewEnvelope(queues.TypeNextEventDelete),
		Username: "gopher",
		EventRef: "ev-1",
	}
	// Первая доставка очистила проекцию, вторая — no-op
	require.NoError(t, c.handleDeleted(ctx, encode(t, msg)))
	require.NoError(t, c.handleDeleted(ctx, encode(t, msg)))

	_, err := projections.Get(ctx, "gopher")
	require.ErrorIs(t, err, repository.ErrProjectionNotFound)
}
