package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/queues"
)

// Publisher — явно принадлежащее сервису подключение к шине для отправки
// сообщений. Writer создаётся один раз и переиспользуется; topic задаётся
// per-message, поэтому один Publisher обслуживает все очереди сервиса.
// Никакого глобального состояния: каждый сервис держит свой экземпляр и
// закрывает его на shutdown.
type Publisher struct {
	logger *zap.Logger
	writer *kafka.Writer
}

// NewPublisher создаёт publisher для указанных брокеров
func NewPublisher(logger *zap.Logger, brokers []string) *Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		// Очереди создаются при первой публикации, т.к. у компенсационных
		// топиков нет выделенного владельца, который бы их заводил заранее.
		AllowAutoTopicCreation: true,
	}

	return &Publisher{
		logger: logger,
		writer: writer,
	}
}

// Publish сериализует типизированное сообщение и отправляет его в очередь.
// Ключом служит msg.Key(), так что сообщения одной сущности сохраняют порядок
// в пределах партиции.
func (p *Publisher) Publish(ctx context.Context, topic string, msg queues.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type(), err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(msg.Key()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("failed to publish message",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("event_type", msg.Type()),
			zap.String("key", msg.Key()),
		)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("message published",
		zap.String("topic", topic),
		zap.String("event_type", msg.Type()),
		zap.String("key", msg.Key()),
	)

	return nil
}

// Close закрывает writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
