package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler обрабатывает одно сообщение очереди. Постоянные ошибки (schema
// mismatch, сущность отсутствует, бизнес-отказ) оборачиваются в Permanent —
// такие сообщения уезжают в DLQ и коммитятся. Любая другая ошибка считается
// временной и приводит к повторной доставке.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer читает одну очередь с at-least-once семантикой:
// FetchMessage + CommitMessages после успешной обработки, ручной контроль offset-а.
// Временные ошибки ретраятся с экспоненциальным backoff; после исчерпания
// попыток offset не коммитится и Kafka доставит сообщение снова.
type Consumer struct {
	logger      *zap.Logger
	reader      *kafka.Reader
	handler     Handler
	dlq         *DLQPublisher
	maxAttempts int
	backoffBase time.Duration
}

// NewConsumer создаёт consumer для указанной очереди
func NewConsumer(
	logger *zap.Logger,
	brokers []string,
	groupID, topic string,
	handler Handler,
	dlq *DLQPublisher,
	maxAttempts int,
	backoffBase time.Duration,
) *Consumer {

	// Safety defaults на случай кривого env/config
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 1 * time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{
		logger:      logger,
		reader:      reader,
		handler:     handler,
		dlq:         dlq,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Start запускает цикл обработки и блокируется до отмены контекста
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group_id", c.reader.Config().GroupID),
		zap.Int("max_retry_attempts", c.maxAttempts),
		zap.Duration("retry_backoff_base", c.backoffBase),
	)

	for {
		// FetchMessage вместо ReadMessage для ручного контроля commit
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// Если контекст отменён, выходим
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka",
				zap.Error(err),
			)
			// Продолжаем обработку, не паникуем
			continue
		}

		shouldCommit := c.processMessage(ctx, m)

		// Коммитим offset только после успешной обработки (или ухода в DLQ)
		if shouldCommit {
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.Error("failed to commit message offset",
					zap.Error(err),
					zap.String("topic", m.Topic),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset),
				)
				continue
			}

			c.logger.Debug("message offset committed",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

// processMessage обрабатывает одно сообщение с retry
// Возвращает true, если нужно закоммитить offset
func (c *Consumer) processMessage(ctx context.Context, m kafka.Message) bool {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		// Backoff: base, base*2, base*4 (экспоненциально)
		if attempt > 1 {
			backoff := c.backoffBase * time.Duration(1<<uint(attempt-2))
			c.logger.Info("retrying message",
				zap.String("topic", m.Topic),
				zap.Int64("offset", m.Offset),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return false
			case <-time.After(backoff):
			}
		}

		err := c.handler(ctx, m)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("message processed successfully after retry",
					zap.String("topic", m.Topic),
					zap.Int64("offset", m.Offset),
					zap.Int("attempt", attempt),
				)
			}
			return true
		}

		// Постоянную ошибку ретраить бессмысленно: сразу в DLQ и коммит,
		// чтобы не зациклиться на poison message
		if IsPermanent(err) {
			c.logger.Error("permanent error, sending message to DLQ",
				zap.Error(err),
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
			if dlqErr := c.dlq.Publish(context.WithoutCancel(ctx), m, err); dlqErr != nil {
				c.logger.Error("failed to publish to DLQ, not committing",
					zap.Error(dlqErr),
				)
				return false
			}
			return true
		}

		lastErr = err
		c.logger.Warn("failed to handle message",
			zap.Error(err),
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
		)
	}

	// Временная ошибка после всех попыток: offset не коммитим, Kafka повторит
	c.logger.Error("exhausted all retry attempts, message will be redelivered",
		zap.Error(lastErr),
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.Int("max_attempts", c.maxAttempts),
	)

	return false
}

// Close закрывает Kafka reader
func (c *Consumer) Close() error {
	c.logger.Info("closing kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
	)
	return c.reader.Close()
}
