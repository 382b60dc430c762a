package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/user/internal/client/orderapi"
	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
	"github.com/nirbenah/final-project-backend/services/user/internal/repository/memory"
)

type fakeOrderClient struct {
	mu    sync.Mutex
	next  map[string]orderapi.NextEvent
	err   error
	calls int
}

func (c *fakeOrderClient) GetNextEvent(_ context.Context, username string) (*orderapi.NextEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	next := c.next[username]
	return &next, nil
}

type capturingPublisher struct {
	mu       sync.Mutex
	messages []queues.Message
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, msg queues.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

type projectorEnv struct {
	projector   *Projector
	projections *memory.ProjectionRepository
	orders      *fakeOrderClient
	publisher   *capturingPublisher
}

func newProjectorEnv(t *testing.T) *projectorEnv {
	t.Helper()
	env := &projectorEnv{
		projections: memory.NewProjectionRepository(),
		orders:      &fakeOrderClient{next: make(map[string]orderapi.NextEvent)},
		publisher:   &capturingPublisher{},
	}
	env.projector = NewProjector(zap.NewNop(), env.projections, env.orders, env.publisher)
	return env
}

func paidMsg(username, eventID string, start time.Time) queues.NextEventPost {
	return queues.NextEventPost{
		Envelope:       queues.NewEnvelope(queues.TypeNextEventPost),
		Username:       username,
		EventRef:       eventID,
		EventTitle:     "Event " + eventID,
		EventStartDate: start,
	}
}

func TestApplyPaid_FirstProjection(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	start := time.Now().UTC().Add(48 * time.Hour)

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", start)))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", projection.EventID)
	require.True(t, projection.EventStartDate.Equal(start))
}

func TestApplyPaid_EarlierEventWins(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-late", now.Add(72*time.Hour))))
	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-early", now.Add(24*time.Hour))))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-early", projection.EventID)
}

func TestApplyPaid_LaterEventIgnored(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-early", now.Add(24*time.Hour))))
	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-late", now.Add(72*time.Hour))))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-early", projection.EventID)
}

func TestApplyPaid_PastEventIgnored(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-future", now.Add(24*time.Hour))))
	// Более ранняя дата, но уже в прошлом — проекция не перезаписывается
	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-past", now.Add(-time.Hour))))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-future", projection.EventID)
}

func TestApplyPaid_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	msg := paidMsg("gopher", "ev-1", time.Now().UTC().Add(24*time.Hour))

	// At-least-once: повторная доставка того же сообщения ничего не меняет
	require.NoError(t, env.projector.ApplyPaid(ctx, msg))
	require.NoError(t, env.projector.ApplyPaid(ctx, msg))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", projection.EventID)
}

func TestApplyUpdated_RecomputeSignal(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	start := time.Now().UTC().Add(24 * time.Hour)
	env.orders.next["gopher"] = orderapi.NextEvent{
		EventID: "ev-from-source", EventTitle: "Source", EventStartDate: start,
	}

	msg := queues.NextEventPut{
		Envelope: queues.NewEnvelope(queues.TypeNextEventPut),
		Username: "gopher",
	}
	require.NoError(t, env.projector.ApplyUpdated(ctx, msg))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-from-source", projection.EventID)
	require.Equal(t, 1, env.orders.calls)
}

func TestApplyUpdated_ProjectedEventChanged(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", now.Add(24*time.Hour))))

	// Дату спроецированного события перенесли позже: ближайшим может стать
	// другое событие, нужен пересчёт из источника
	env.orders.next["gopher"] = orderapi.NextEvent{
		EventID: "ev-2", EventTitle: "Other", EventStartDate: now.Add(48 * time.Hour),
	}
	msg := queues.NextEventPut{
		Envelope:       queues.NewEnvelope(queues.TypeNextEventPut),
		Username:       "gopher",
		EventRef:       "ev-1",
		EventTitle:     "Event ev-1",
		EventStartDate: now.Add(200 * time.Hour),
	}
	require.NoError(t, env.projector.ApplyUpdated(ctx, msg))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-2", projection.EventID)
}

func TestApplyUpdated_EarlierUnrelatedEventOverwrites(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", now.Add(72*time.Hour))))

	msg := queues.NextEventPut{
		Envelope:       queues.NewEnvelope(queues.TypeNextEventPut),
		Username:       "gopher",
		EventRef:       "ev-2",
		EventTitle:     "Event ev-2",
		EventStartDate: now.Add(24 * time.Hour),
	}
	require.NoError(t, env.projector.ApplyUpdated(ctx, msg))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-2", projection.EventID)
	require.Zero(t, env.orders.calls)
}

func TestApplyUpdated_UnrelatedLaterEventIgnored(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", now.Add(24*time.Hour))))

	msg := queues.NextEventPut{
		Envelope:       queues.NewEnvelope(queues.TypeNextEventPut),
		Username:       "gopher",
		EventRef:       "ev-other",
		EventTitle:     "Event ev-other",
		EventStartDate: now.Add(72 * time.Hour),
	}
	require.NoError(t, env.projector.ApplyUpdated(ctx, msg))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", projection.EventID)
	require.Zero(t, env.orders.calls)
}

func TestApplyDeleted_ProjectedEventRecomputes(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", now.Add(24*time.Hour))))
	env.orders.next["gopher"] = orderapi.NextEvent{
		EventID: "ev-2", EventTitle: "Remaining", EventStartDate: now.Add(48 * time.Hour),
	}

	msg := queues.NextEventDelete{
		Envelope: queues.NewEnvelope(queues.TypeNextEventDelete),
		Username: "gopher",
		EventRef: "ev-1",
	}
	require.NoError(t, env.projector.ApplyDeleted(ctx, msg))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-2", projection.EventID)
}

func TestApplyDeleted_OtherEventIgnored(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", now.Add(24*time.Hour))))

	msg := queues.NextEventDelete{
		Envelope: queues.NewEnvelope(queues.TypeNextEventDelete),
		Username: "gopher",
		EventRef: "ev-other",
	}
	require.NoError(t, env.projector.ApplyDeleted(ctx, msg))

	projection, err := env.projections.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", projection.EventID)
	require.Zero(t, env.orders.calls)
}

func TestApplyDeleted_NoProjectionIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)

	msg := queues.NextEventDelete{
		Envelope: queues.NewEnvelope(queues.TypeNextEventDelete),
		Username: "gopher",
		EventRef: "ev-1",
	}
	require.NoError(t, env.projector.ApplyDeleted(ctx, msg))
	require.Zero(t, env.orders.calls)
}

func TestRecompute_NoOrdersClearsProjection(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	now := time.Now().UTC()

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", now.Add(24*time.Hour))))

	// Источник отвечает пустыми полями: будущих оплаченных заказов нет
	require.NoError(t, env.projector.Recompute(ctx, "gopher"))

	_, err := env.projections.Get(ctx, "gopher")
	require.ErrorIs(t, err, repository.ErrProjectionNotFound)
}

func TestRecompute_SourceUnavailable(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	env.orders.err = errors.New("connection refused")

	err := env.projector.Recompute(ctx, "gopher")
	require.Error(t, err)
}

func TestNextEvent_Read(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)
	start := time.Now().UTC().Add(24 * time.Hour)

	require.NoError(t, env.projector.ApplyPaid(ctx, paidMsg("gopher", "ev-1", start)))

	projection, err := env.projector.NextEvent(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", projection.EventID)
	require.Empty(t, env.publisher.messages)
}

func TestNextEvent_EmptyProjection(t *testing.T) {
	env := newProjectorEnv(t)

	projection, err := env.projector.NextEvent(context.Background(), "gopher")
	require.NoError(t, err)
	require.Empty(t, projection.EventID)
	require.Empty(t, env.publisher.messages)
}

func TestNextEvent_StaleTriggersRecomputeSignal(t *testing.T) {
	ctx := context.Background()
	env := newProjectorEnv(t)

	stale := repository.NextEvent{
		Username:       "gopher",
		EventID:        "ev-past",
		EventTitle:     "Already happened",
		EventStartDate: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, env.projections.Set(ctx, stale))

	projection, err := env.projector.NextEvent(ctx, "gopher")
	require.NoError(t, err)
	// Читатель получает текущее значение, пересчёт уходит в очередь
	require.Equal(t, "ev-past", projection.EventID)
	require.Len(t, env.publisher.messages, 1)

	put, ok := env.publisher.messages[0].(*queues.NextEventPut)
	require.True(t, ok)
	require.Equal(t, "gopher", put.Username)
	require.True(t, put.IsRecompute())
}
