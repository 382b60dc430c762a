// Package kafka содержит консьюмеры очередей Order Service.
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
	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
	"github.com/nirbenah/final-project-backend/services/order/internal/service"
)

// maxInlineDelay — максимум, сколько хэндлер refund готов подождать на месте,
// прежде чем переотложить сообщение. Больше ждать нельзя: встанет вся партиция.
const maxInlineDelay = time.Second

// Consumers объединяет консьюмеры очередей Order Service:
// order-delete-queue (удаление с компенсациями), order-startDate-queue
// (перенос даты события) и order-refund-queue (возврат денег с повторами).
type Consumers struct {
	logger    *zap.Logger
	deletes   *platformkafka.Consumer
	dates     *platformkafka.Consumer
	refunds   *platformkafka.Consumer
	publisher service.Publisher
	svc       *service.OrderService

	refundMaxAttempts int
	refundRetryDelay  time.Duration
}

// NewConsumers создаёт консьюмеры Order Service поверх общего Kafka consumer loop
func NewConsumers(
	logger *zap.Logger,
	brokers []string,
	groupID string,
	dlq *platformkafka.DLQPublisher,
	svc *service.OrderService,
	publisher service.Publisher,
	maxAttempts int,
	backoffBase time.Duration,
	refundMaxAttempts int,
	refundRetryDelay time.Duration,
) *Consumers {
	c := &Consumers{
		logger:            logger,
		publisher:         publisher,
		svc:               svc,
		refundMaxAttempts: refundMaxAttempts,
		refundRetryDelay:  refundRetryDelay,
	}

	c.deletes = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicOrderDelete,
		c.handleOrderDelete, dlq, maxAttempts, backoffBase)
	c.dates = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicOrderStartDate,
		c.handleStartDateChanged, dlq, maxAttempts, backoffBase)
	c.refunds = platformkafka.NewConsumer(
		logger, brokers, groupID, queues.TopicOrderRefund,
		c.handleRefund, dlq, maxAttempts, backoffBase)

	return c
}

// Start запускает все консьюмеры; каждый блокируется до отмены контекста
func (c *Consumers) Start(ctx context.Context) {
	go func() {
		if err := c.deletes.Start(ctx); err != nil {
			c.logger.Error("order delete consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		if err := c.dates.Start(ctx); err != nil {
			c.logger.Error("start date consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		if err := c.refunds.Start(ctx); err != nil {
			c.logger.Error("refund consumer stopped with error", zap.Error(err))
		}
	}()
}

// Close закрывает все Kafka reader
func (c *Consumers) Close() error {
	return errors.Join(c.deletes.Close(), c.dates.Close(), c.refunds.Close())
}

// handleOrderDelete обрабатывает сообщение order-delete-queue: удаление заказа
// с возвратом билетов и пересчётом проекции. Возврат денег этот путь не делает:
// сюда попадают компенсации несостоявшихся оплат, возвращать нечего.
// Повторная доставка после успешного удаления упирается в ErrNotFound и гасится.
func (c *Consumers) handleOrderDelete(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.OrderDelete](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode order delete: %w", err))
	}

	if err := c.svc.Delete(ctx, msg.OrderID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.logger.Info("order already deleted, skipping",
				zap.String("order_id", msg.OrderID))
			return nil
		}
		return err
	}
	return nil
}

// handleStartDateChanged обрабатывает сообщение order-startDate-queue.
// Операция конвергентна: повторное применение той же даты ничего не меняет,
// дедупликация не нужна.
func (c *Consumers) handleStartDateChanged(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.OrderStartDate](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode start date change: %w", err))
	}

	if err := c.svc.UpdateDatesForEvent(ctx, msg.EventRef, msg.StartDate); err != nil {
		if errors.Is(err, service.ErrValidation) {
			return platformkafka.Permanent(err)
		}
		return err
	}
	return nil
}

// handleRefund обрабатывает сообщение order-refund-queue. Повторы не блокируют
// партицию: неудачная попытка переоткладывается обратно в очередь с Attempt+1
// и NotBefore в будущем, текущее сообщение коммитится.
func (c *Consumers) handleRefund(ctx context.Context, m segmentio.Message) error {
	msg, err := queues.Decode[queues.OrderRefund](m.Value)
	if err != nil {
		return platformkafka.Permanent(fmt.Errorf("decode order refund: %w", err))
	}

	// Сообщение пришло раньше срока: ждём чуть-чуть на месте, дальше переоткладываем
	if wait := time.Until(msg.NotBefore); wait > 0 {
		if wait > maxInlineDelay {
			if err := c.publisher.Publish(ctx, queues.TopicOrderRefund, &msg); err != nil {
				return fmt.Errorf("requeue deferred refund: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	err = c.svc.Refund(ctx, msg.OrderID)
	if err == nil {
		c.logger.Info("refund succeeded",
			zap.String("order_id", msg.OrderID),
			zap.Int("attempt", msg.Attempt))
		return nil
	}

	if msg.Attempt >= c.refundMaxAttempts {
		return platformkafka.Permanent(
			fmt.Errorf("refund failed after %d attempts: %w", msg.Attempt, err))
	}

	c.logger.Warn("refund attempt failed, rescheduling",
		zap.String("order_id", msg.OrderID),
		zap.Int("attempt", msg.Attempt),
		zap.Error(err))

	retry := msg
	retry.Attempt++
	retry.NotBefore = time.Now().UTC().Add(c.refundRetryDelay)
	if err := c.publisher.Publish(ctx, queues.TopicOrderRefund, &retry); err != nil {
		// Не смогли переотложить — не коммитим, пусть брокер доставит заново
		return fmt.Errorf("requeue refund retry: %w", err)
	}
	return nil
}
