package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	platformkafka "github.com/nirbenah/final-project-backend/platform/kafka"
	"github.com/nirbenah/final-project-backend/platform/queues"
	"github.com/nirbenah/final-project-backend/services/event/internal/repository"
	"github.com/nirbenah/final-project-backend/services/event/internal/service"
)

// processedTTL — сколько помним обработанные event_id для дедупликации redelivery
const processedTTL = 24 * time.Hour

// Consumers объединяет консьюмеры очередей Event Service:
// event-tickets-queue (возврат билетов) и event-comments-queue (счётчик комментариев)
type Consumers struct {
	logger    *zap.Logger
	tickets   *platformkafka.Consumer
	comments  *platformkafka.Consumer
	processed service.ProcessedEventsStore
	svc       *service.EventService
}

// NewConsumers создаёт консьюмеры Event Service поверх общего Kafka consumer loop
func NewConsumers(
	logger *zap.Logger,
	brokers []string,
	groupID string,
	dlq *platformkafka.DLQPublisher,
	svc *service.EventService,
	processed service.ProcessedEventsStore,
	maxAttempts int,
	backoffBase time.Duration,
) *Consumers {
	c := &Consumers{
		logger:    logger,
		processed: processed,
		svc:       svc,
	}

	c.tickets = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicEventTickets,
		c.handleTicketsRelease, dlq, maxAttempts, backoffBase)
	c.comments = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicEventComments,
		c.handleCommentAdded, dlq, maxAttempts, backoffBase)

	return c
}

// Start запускает оба консьюмера; каждый блокируется до отмены контекста
func (c *Consumers) Start(ctx context.Context) {
	go func() {
		if err := c.tickets.Start(ctx); err != nil {
			c.logger.Error("tickets consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		if err := c.comments.Start(ctx); err != nil {
			c.logger.Error("comments consumer stopped with error", zap.Error(err))
		}
	}()
}

// Close закрывает оба Kafka reader
func (c *Consumers) Close() error {
	return errors.Join(c.tickets.Close(), c.comments.Close())
}

// handleTicketsRelease обрабатывает сообщение event-tickets-queue: возврат билетов.
// Release не конвергентен, поэтому повторная доставка отсекается по event_id.
// Ошибки классифицируются: бизнес-отказы постоянны (DLQ), инфраструктурные временны.
func (c *Consumers) handleTicketsRelease(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.TicketsRelease](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode tickets release: %w", err))
	}

	seen, err := c.processed.IsProcessed(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if seen {
		c.logger.Info("duplicate tickets release skipped",
			zap.String("event_id", msg.EventID),
			zap.String("event_ref", msg.EventRef))
		return nil
	}

	err = c.svc.ReleaseTickets(ctx, msg.EventRef, msg.TicketType, msg.Quantity)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrTicketNotFound),
		errors.Is(err, repository.ErrMaxReached),
		errors.Is(err, service.ErrValidation):
		// Повтор не поможет: событие/билет не существует или release без пары
		return platformkafka.Permanent(err)
	default:
		return err
	}

	if err := c.processed.MarkProcessed(ctx, msg.EventID, processedTTL); err != nil {
		// Release уже применён; без отметки redelivery применит его второй раз
		c.logger.Error("failed to mark tickets release processed",
			zap.String("event_id", msg.EventID),
			zap.Error(err))
	}
	return nil
}

// handleCommentAdded обрабатывает сообщение event-comments-queue:
// инкремент commentsNumber (тоже не конвергентен, дедуплицируем)
func (c *Consumers) handleCommentAdded(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.CommentAdded](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode comment added: %w", err))
	}

	seen, err := c.processed.IsProcessed(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if seen {
		return nil
	}

	if err := c.svc.IncrementComments(ctx, msg.EventRef); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return platformkafka.Permanent(err)
		}
		return err
	}

	if err := c.processed.MarkProcessed(ctx, msg.EventID, processedTTL); err != nil {
		c.logger.Error("failed to mark comment processed",
			zap.String("event_id", msg.EventID),
			zap.Error(err))
	}
	return nil
}
