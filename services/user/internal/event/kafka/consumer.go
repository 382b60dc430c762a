// Package kafka содержит консьюмеры очередей User Service.
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
	"github.com/nirbenah/final-project-backend/services/user/internal/service"
)

// Consumers объединяет консьюмеры проектора next-event:
// user-nextEvent-post-queue (оплата), user-nextEvent-put-queue
// (изменение/пересчёт) и user-nextEvent-delete-queue (удаление заказа).
type Consumers struct {
	logger    *zap.Logger
	posts     *platformkafka.Consumer
	puts      *platformkafka.Consumer
	deletes   *platformkafka.Consumer
	projector *service.Projector
}

// NewConsumers создаёт консьюмеры User Service поверх общего Kafka consumer loop
func NewConsumers(
	logger *zap.Logger,
	brokers []string,
	groupID string,
	dlq *platformkafka.DLQPublisher,
	projector *service.Projector,
	maxAttempts int,
	backoffBase time.Duration,
) *Consumers {
	c := &Consumers{
		logger:    logger,
		projector: projector,
	}

	c.posts = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicNextEventPost,
		c.handlePaid, dlq, maxAttempts, backoffBase)
	c.puts = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicNextEventPut,
		c.handleUpdated, dlq, maxAttempts, backoffBase)
	c.deletes = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicNextEventDelete,
		c.handleDeleted, dlq, maxAttempts, backoffBase)

	return c
}

// Start запускает все консьюмеры; каждый блокируется до отмены контекста
func (c *Consumers) Start(ctx context.Context) {
	go func() {
		if err := c.posts.Start(ctx); err != nil {
			c.logger.Error("next event post consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		if err := c.puts.Start(ctx); err != nil {
			c.logger.Error("next event put consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		if err := c.deletes.Start(ctx); err != nil {
			c.logger.Error("next event delete consumer stopped with error", zap.Error(err))
		}
	}()
}

// Close закрывает все Kafka reader
func (c *Consumers) Close() error {
	return errors.Join(c.posts.Close(), c.puts.Close(), c.deletes.Close())
}

// handlePaid обрабатывает сообщение user-nextEvent-post-queue.
// Перезапись проекции идемпотентна, повторная доставка безопасна.
func (c *Consumers) handlePaid(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.NextEventPost](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode next event post: %w", err))
	}
	return c.projector.ApplyPaid(ctx, msg)
}

// handleUpdated обрабатывает сообщение user-nextEvent-put-queue.
// Ошибка похода в Order Service при пересчёте транзиентна: сообщение
// не коммитится и доедет заново.
func (c *Consumers) handleUpdated(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.NextEventPut](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode next event put: %w", err))
	}
	return c.projector.ApplyUpdated(ctx, msg)
}

// handleDeleted обрабатывает сообщение user-nextEvent-delete-queue
func (c *Consumers) handleDeleted(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.NextEventDelete](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode next event delete: %w", err))
	}
	return c.projector.ApplyDeleted(ctx, msg)
}
