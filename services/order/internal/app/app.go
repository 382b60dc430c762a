package app

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	platformkafka "github.com/nirbenah/final-project-backend/platform/kafka"
	platformlogging "github.com/nirbenah/final-project-backend/platform/logging"
	platformobservability "github.com/nirbenah/final-project-backend/platform/observability"
	platformshutdown "github.com/nirbenah/final-project-backend/platform/shutdown"
	httpapi "github.com/nirbenah/final-project-backend/services/order/internal/api/http"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/eventapi"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/payment"
	"github.com/nirbenah/final-project-backend/services/order/internal/config"
	orderkafka "github.com/nirbenah/final-project-backend/services/order/internal/event/kafka"
	"github.com/nirbenah/final-project-backend/services/order/internal/repository/postgres"
	"github.com/nirbenah/final-project-backend/services/order/internal/service"
	"github.com/nirbenah/final-project-backend/services/order/migrations"
)

// App содержит все зависимости для запуска и корректного shutdown Order Service
type App struct {
	logger        *zap.Logger
	httpServer    *http.Server
	shutdownMgr   *platformshutdown.Manager
	consumers     *orderkafka.Consumers
	checkoutTimer *service.CheckoutTimer
	workerCtx     context.Context
	workerStop    context.CancelFunc
	wg            sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Order Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "order",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Order service", zap.String("http_addr", cfg.HTTPAddr))

	// OpenTelemetry (noop если OTEL_ENABLED=false)
	otelShutdown, err := platformobservability.Init(context.Background(), platformobservability.Config{
		Enabled:               cfg.OtelEnabled,
		OTLPEndpoint:          cfg.OtelEndpoint,
		SamplingRatio:         cfg.OtelSamplingRatio,
		ServiceName:           "order",
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, err
	}

	// Подключаемся к PostgreSQL
	logger.Info("Connecting to PostgreSQL")
	pgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(pgCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(pgCtx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("PostgreSQL connection established")

	// Применяем миграции (встроены в бинарник)
	logger.Info("Applying database migrations")
	db, err := goose.OpenDBWithDriver("pgx", cfg.PostgresDSN)
	if err != nil {
		pool.Close()
		return nil, err
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.Up(db, "."); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}
	if err := db.Close(); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Database migrations applied successfully")

	// Функция readiness для health check
	readiness := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx) == nil
	}

	// Репозиторий, клиенты коллабораторов, publisher и service слой
	orderRepo := postgres.NewRepository(pool)
	eventClient := eventapi.NewClient(logger, cfg.EventServiceURL)
	paymentClient := payment.NewClient(logger, cfg.PaymentGatewayURL)
	publisher := platformkafka.NewPublisher(logger, cfg.KafkaBrokers)
	orderService := service.NewOrderService(logger, orderRepo, eventClient, paymentClient, publisher, cfg.CheckoutWindow)

	// Сканер таймера оплаты
	checkoutTimer := service.NewCheckoutTimer(logger, orderRepo, orderService,
		cfg.CheckoutScanInterval, int64(cfg.CheckoutBatchSize))

	// Консьюмеры очередей с DLQ
	dlq := platformkafka.NewDLQPublisher(logger, cfg.KafkaBrokers, cfg.KafkaDLQTopic)
	consumers := orderkafka.NewConsumers(logger, cfg.KafkaBrokers, cfg.KafkaGroupID, dlq, orderService, publisher,
		cfg.KafkaRetryMaxAttempts, cfg.KafkaRetryBackoffBase,
		cfg.RefundMaxAttempts, cfg.RefundRetryDelay)

	// HTTP слой
	handler := httpapi.NewHandler(logger, orderService)
	router := httpapi.NewRouter(handler, readiness, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, workerStop := context.WithCancel(context.Background())

	// Shutdown функции выполняются в обратном порядке регистрации
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	shutdownMgr.Add("otel", otelShutdown)
	shutdownMgr.Add("postgres", platformshutdown.ClosePool(pool))
	shutdownMgr.Add("kafka_publisher", platformshutdown.CloseCloser(publisher))
	shutdownMgr.Add("kafka_dlq", platformshutdown.CloseCloser(dlq))
	shutdownMgr.Add("workers", func(ctx context.Context) error {
		workerStop()
		return consumers.Close()
	})
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:        logger,
		httpServer:    httpServer,
		shutdownMgr:   shutdownMgr,
		consumers:     consumers,
		checkoutTimer: checkoutTimer,
		workerCtx:     workerCtx,
		workerStop:    workerStop,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Order service", zap.String("addr", a.httpServer.Addr))
	a.logger.Info("Health check available", zap.String("url", "http://"+a.httpServer.Addr+"/health"))

	a.consumers.Start(a.workerCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.checkoutTimer.Start(a.workerCtx); err != nil {
			a.logger.Error("Checkout timer stopped with error", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	a.shutdownMgr.Wait()

	a.wg.Wait()
	a.logger.Info("Order service stopped")
	return nil
}
