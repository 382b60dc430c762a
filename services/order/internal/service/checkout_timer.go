package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
)

// CheckoutTimer периодически сканирует заказы с истёкшим окном оплаты
// и гасит их через Expire. Дедлайн хранится в самом заказе, поэтому после
// рестарта процесса незакрытые резервы подбираются первым же проходом.
type CheckoutTimer struct {
	logger    *zap.Logger
	repo      repository.OrderRepository
	svc       *OrderService
	interval  time.Duration
	batchSize int64
}

// NewCheckoutTimer создаёт новый сканер таймера оплаты
func NewCheckoutTimer(
	logger *zap.Logger,
	repo repository.OrderRepository,
	svc *OrderService,
	interval time.Duration,
	batchSize int64,
) *CheckoutTimer {
	return &CheckoutTimer{
		logger:    logger,
		repo:      repo,
		svc:       svc,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start запускает сканер и блокируется до отмены контекста
func (t *CheckoutTimer) Start(ctx context.Context) error {
	t.logger.Info("starting checkout timer",
		zap.Duration("interval", t.interval),
		zap.Int64("batch_size", t.batchSize),
	)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Первый проход сразу при старте: подбираем заказы, чьё окно
	// истекло, пока процесс не работал
	if err := t.processBatch(ctx); err != nil {
		t.logger.Error("failed to process initial checkout batch", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("checkout timer context cancelled, stopping")
			return nil
		case <-ticker.C:
			if err := t.processBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				t.logger.Error("failed to process checkout batch", zap.Error(err))
			}
		}
	}
}

// processBatch гасит батч просроченных заказов
func (t *CheckoutTimer) processBatch(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	due, err := t.repo.ListDueForTimeout(ctx, time.Now().UTC(), t.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to list due orders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	t.logger.Debug("processing expired checkouts", zap.Int("count", len(due)))

	for _, order := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Expire условный: если оплата успела стартовать между ListDueForTimeout
		// и этим вызовом, переход не сработает и заказ останется жить
		if err := t.svc.Expire(ctx, order.ID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Error("failed to expire order",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			// Продолжаем с остальными, этот заказ подберёт следующий проход
		}
	}
	return nil
}
