package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	platformkafka "github.com/nirbenah/final-project-backend/platform/kafka"
	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/eventapi"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/payment"
	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
	"github.com/nirbenah/final-project-backend/services/order/internal/repository/memory"
	"github.com/nirbenah/final-project-backend/services/order/internal/service"
)

type capturingPublisher struct {
	mu        sync.Mutex
	published []queues.Message
	topics    []string
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, msg queues.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	p.topics = append(p.topics, topic)
	return nil
}

type stubEventClient struct{}

func (stubEventClient) GetEvent(context.Context, string) (*eventapi.Event, error) {
	return nil, eventapi.ErrEventNotFound
}
func (stubEventClient) ReserveTickets(context.Context, string, string, int64) error { return nil }

type stubGateway struct {
	mu        sync.Mutex
	refundErr error
	refunds   int
}

func (g *stubGateway) Pay(context.Context, payment.Payload) error { return nil }

func (g *stubGateway) Refund(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return g.refundErr
}

func newTestConsumers(t *testing.T) (*Consumers, *memory.Repository, *stubGateway, *capturingPublisher) {
	t.Helper()
	repo := memory.NewRepository()
	gateway := &stubGateway{}
	pub := &capturingPublisher{}
	svc := service.NewOrderService(zap.NewNop(), repo, stubEventClient{}, gateway, pub, time.Minute)

	c := &Consumers{
		logger:            zap.NewNop(),
		publisher:         pub,
		svc:               svc,
		refundMaxAttempts: 3,
		refundRetryDelay:  5 * time.Second,
	}
	return c, repo, gateway, pub
}

func encode(t *testing.T, msg queues.Message) segmentio.Message {
	t.Helper()
	value, err := json.Marshal(msg)
	require.NoError(t, err)
	return segmentio.Message{Key: []byte(msg.Key()), Value: value}
}

func seedOrder(t *testing.T, repo *memory.Repository, status repository.Status) *repository.Order {
	t.Helper()
	order := &repository.Order{
		ID:             "o-1",
		Username:       "gopher",
		EventID:        "ev-1",
		EventTitle:     "Go Conference",
		EventStartDate: time.Now().Add(24 * time.Hour).UTC(),
		TicketType:     "standard",
		OrderDate:      time.Now().UTC(),
		Quantity:       2,
		PricePerTicket: 50,
		Status:         status,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestHandleOrderDelete_DeletesWithCompensations(t *testing.T) {
	ctx := context.Background()
	c, repo, gateway, pub := newTestConsumers(t)
	order := seedOrder(t, repo, repository.StatusCreated)

	msg := &queues.OrderDelete{Envelope: queues.NewEnvelope(queues.TypeOrderDelete), OrderID: order.ID}
	require.NoError(t, c.handleOrderDelete(ctx, encode(t, msg)))

	_, err := repo.GetByID(ctx, order.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Contains(t, pub.topics, queues.TopicEventTickets)
	require.Contains(t, pub.topics, queues.TopicNextEventDelete)
	// Этот путь компенсационный, деньги не возвращает
	require.Zero(t, gateway.refunds)
}

func TestHandleOrderDelete_AlreadyGoneIsAcked(t *testing.T) {
	c, _, _, _ := newTestConsumers(t)

	msg := &queues.OrderDelete{Envelope: queues.NewEnvelope(queues.TypeOrderDelete), OrderID: "missing"}
	require.NoError(t, c.handleOrderDelete(context.Background(), encode(t, msg)))
}

func TestHandleOrderDelete_MalformedIsPermanent(t *testing.T) {
	c, _, _, _ := newTestConsumers(t)

	err := c.handleOrderDelete(context.Background(), segmentio.Message{Value: []byte(`{"orderId":""}`)})
	require.True(t, platformkafka.IsPermanent(err))
}

func TestHandleStartDateChanged_UpdatesSnapshots(t *testing.T) {
	ctx := context.Background()
	c, repo, _, pub := newTestConsumers(t)
	order := seedOrder(t, repo, repository.StatusPaid)

	newStart := time.Now().Add(96 * time.Hour).UTC().Truncate(time.Second)
	msg := &queues.OrderStartDate{
		Envelope:  queues.NewEnvelope(queues.TypeOrderStartDate),
		EventRef:  order.EventID,
		StartDate: newStart,
	}
	require.NoError(t, c.handleStartDateChanged(ctx, encode(t, msg)))

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, stored.EventStartDate.Equal(newStart))
	require.Contains(t, pub.topics, queues.TopicNextEventPut)
}

func TestHandleRefund_Success(t *testing.T) {
	c, _, gateway, pub := newTestConsumers(t)

	msg := &queues.OrderRefund{Envelope: queues.NewEnvelope(queues.TypeOrderRefund), OrderID: "o-1", Attempt: 1}
	require.NoError(t, c.handleRefund(context.Background(), encode(t, msg)))
	require.Equal(t, 1, gateway.refunds)
	require.Empty(t, pub.published)
}

func TestHandleRefund_FailureReschedulesWithBackoff(t *testing.T) {
	c, _, gateway, pub := newTestConsumers(t)
	gateway.refundErr = errors.New("gateway down")

	msg := &queues.OrderRefund{Envelope: queues.NewEnvelope(queues.TypeOrderRefund), OrderID: "o-1", Attempt: 1}
	require.NoError(t, c.handleRefund(context.Background(), encode(t, msg)))

	require.Len(t, pub.published, 1)
	retry := pub.published[0].(*queues.OrderRefund)
	require.Equal(t, 2, retry.Attempt)
	require.True(t, retry.NotBefore.After(time.Now().Add(4*time.Second)))
}

func TestHandleRefund_ExhaustedAttemptsArePermanent(t *testing.T) {
	c, _, gateway, pub := newTestConsumers(t)
	gateway.refundErr = errors.New("gateway down")

	msg := &queues.OrderRefund{Envelope: queues.NewEnvelope(queues.TypeOrderRefund), OrderID: "o-1", Attempt: 3}
	err := c.handleRefund(context.Background(), encode(t, msg))
	require.True(t, platformkafka.IsPermanent(err))
	require.Empty(t, pub.published)
}

func TestHandleRefund_DeferredMessageIsRequeued(t *testing.T) {
	c, _, gateway, pub := newTestConsumers(t)

	msg := &queues.OrderRefund{
		Envelope:  queues.NewEnvelope(queues.TypeOrderRefund),
		OrderID:   "o-1",
		Attempt:   1,
		NotBefore: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, c.handleRefund(context.Background(), encode(t, msg)))

	// Срок далеко в будущем: попытки не было, сообщение переотложено как есть
	require.Zero(t, gateway.refunds)
	require.Len(t, pub.published, 1)
	requeued := pub.published[0].(*queues.OrderRefund)
	require.Equal(t, 1, requeued.Attempt)
}
