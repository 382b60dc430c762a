package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
)

// Projector поддерживает проекцию "ближайшее событие пользователя":
// самое раннее будущее событие среди оплаченных заказов. Проекция — кэш,
// авторитетный источник — Order Service; в любой момент её можно
// пересчитать с нуля, поэтому все операции идемпотентны и повторная
// доставка сообщений безопасна.
type Projector struct {
	logger      *zap.Logger
	projections repository.ProjectionRepository
	orders      OrderClient
	publisher   Publisher
}

// NewProjector создаёт новый Projector
func NewProjector(logger *zap.Logger, projections repository.ProjectionRepository, orders OrderClient, publisher Publisher) *Projector {
	return &Projector{
		logger:      logger,
		projections: projections,
		orders:      orders,
		publisher:   publisher,
	}
}

// ApplyPaid обрабатывает оплату заказа: проекция перезаписывается, если её
// ещё нет, либо если новое событие начинается раньше текущего и ещё в будущем
func (p *Projector) ApplyPaid(ctx context.Context, msg queues.NextEventPost) error {
	current, err := p.projections.Get(ctx, msg.Username)
	if err != nil && !errors.Is(err, repository.ErrProjectionNotFound) {
		return fmt.Errorf("get projection: %w", err)
	}

	hasProjection := err == nil
	now := time.Now().UTC()

	if hasProjection && (!msg.EventStartDate.Before(current.EventStartDate) || !now.Before(msg.EventStartDate)) {
		return nil
	}

	return p.overwrite(ctx, repository.NextEvent{
		Username:       msg.Username,
		EventID:        msg.EventRef,
		EventTitle:     msg.EventTitle,
		EventStartDate: msg.EventStartDate,
	})
}

// ApplyUpdated обрабатывает изменение заказа. Пустые поля события — явный
// сигнал пересчёта; иначе более раннее будущее событие перезаписывает
// проекцию, а изменение спроецированного события вызывает пересчёт
// (дату могли перенести позже, и ближайшим может стать другое событие).
func (p *Projector) ApplyUpdated(ctx context.Context, msg queues.NextEventPut) error {
	if msg.IsRecompute() {
		return p.Recompute(ctx, msg.Username)
	}

	current, err := p.projections.Get(ctx, msg.Username)
	if err != nil {
		if errors.Is(err, repository.ErrProjectionNotFound) {
			return p.Recompute(ctx, msg.Username)
		}
		return fmt.Errorf("get projection: %w", err)
	}

	now := time.Now().UTC()

	if msg.EventStartDate.Before(current.EventStartDate) && now.Before(msg.EventStartDate) {
		return p.overwrite(ctx, repository.NextEvent{
			Username:       msg.Username,
			EventID:        msg.EventRef,
			EventTitle:     msg.EventTitle,
			EventStartDate: msg.EventStartDate,
		})
	}

	if msg.EventRef == current.EventID {
		return p.Recompute(ctx, msg.Username)
	}

	return nil
}

// ApplyDeleted обрабатывает удаление заказа: пересчёт нужен, только если
// удалённое событие было спроецировано
func (p *Projector) ApplyDeleted(ctx context.Context, msg queues.NextEventDelete) error {
	current, err := p.projections.Get(ctx, msg.Username)
	if err != nil {
		if errors.Is(err, repository.ErrProjectionNotFound) {
			return nil
		}
		return fmt.Errorf("get projection: %w", err)
	}

	if current.EventID != msg.EventRef {
		return nil
	}

	return p.Recompute(ctx, msg.Username)
}

// Recompute пересчитывает проекцию с нуля из авторитетного источника.
// Если будущих оплаченных заказов не осталось, проекция очищается.
func (p *Projector) Recompute(ctx context.Context, username string) error {
	next, err := p.orders.GetNextEvent(ctx, username)
	if err != nil {
		return fmt.Errorf("query next event from order service: %w", err)
	}

	if next.EventID == "" {
		if err := p.projections.Clear(ctx, username); err != nil {
			return fmt.Errorf("clear projection: %w", err)
		}
		p.logger.Info("next event projection cleared",
			zap.String("username", username),
		)
		return nil
	}

	return p.overwrite(ctx, repository.NextEvent{
		Username:       username,
		EventID:        next.EventID,
		EventTitle:     next.EventTitle,
		EventStartDate: next.EventStartDate,
	})
}

// NextEvent возвращает текущую проекцию пользователя для читающего пути.
// Протухшая проекция (дата уже прошла) отдаётся как есть, но в очередь
// уходит сигнал пересчёта: читатель не ждёт похода в Order Service.
func (p *Projector) NextEvent(ctx context.Context, username string) (repository.NextEvent, error) {
	current, err := p.projections.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrProjectionNotFound) {
			return repository.NextEvent{Username: username}, nil
		}
		return repository.NextEvent{}, fmt.Errorf("get projection: %w", err)
	}

	if current.EventStartDate.Before(time.Now().UTC()) {
		recompute := queues.NextEventPut{
			Envelope: queues.NewEnvelope(queues.TypeNextEventPut),
			Username: username,
		}
		if err := p.publisher.Publish(ctx, queues.TopicNextEventPut, &recompute); err != nil {
			p.logger.Error("failed to publish projection recompute signal",
				zap.Error(err),
				zap.String("username", username),
			)
		}
	}

	return current, nil
}

func (p *Projector) overwrite(ctx context.Context, projection repository.NextEvent) error {
	if err := p.projections.Set(ctx, projection); err != nil {
		return fmt.Errorf("set projection: %w", err)
	}

	p.logger.Info("next event projection updated",
		zap.String("username", projection.Username),
		zap.String("event_id", projection.EventID),
		zap.Time("event_start_date", projection.EventStartDate),
	)
	return nil
}
