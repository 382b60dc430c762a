package app

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	platformkafka "github.com/nirbenah/final-project-backend/platform/kafka"
	platformlogging "github.com/nirbenah/final-project-backend/platform/logging"
	platformobservability "github.com/nirbenah/final-project-backend/platform/observability"
	platformshutdown "github.com/nirbenah/final-project-backend/platform/shutdown"
	httpapi "github.com/nirbenah/final-project-backend/services/event/internal/api/http"
	"github.com/nirbenah/final-project-backend/services/event/internal/config"
	eventkafka "github.com/nirbenah/final-project-backend/services/event/internal/event/kafka"
	mongorepo "github.com/nirbenah/final-project-backend/services/event/internal/repository/mongo"
	"github.com/nirbenah/final-project-backend/services/event/internal/service"
)

// App содержит все зависимости для запуска и корректного shutdown Event Service
type App struct {
	logger       *zap.Logger
	httpServer   *http.Server
	shutdownMgr  *platformshutdown.Manager
	consumers    *eventkafka.Consumers
	consumerCtx  context.Context
	consumerStop context.CancelFunc
	wg           sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Event Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "event",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Event service", zap.String("http_addr", cfg.HTTPAddr))

	// OpenTelemetry (noop если OTEL_ENABLED=false)
	otelShutdown, err := platformobservability.Init(context.Background(), platformobservability.Config{
		Enabled:               cfg.OtelEnabled,
		OTLPEndpoint:          cfg.OtelEndpoint,
		SamplingRatio:         cfg.OtelSamplingRatio,
		ServiceName:           "event",
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, err
	}

	// Подключаемся к MongoDB
	logger.Info("Connecting to MongoDB")
	mongoCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("MongoDB connection established")

	// Функция readiness для health check
	readiness := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return mongoClient.Ping(ctx, nil) == nil
	}

	// Репозиторий, publisher и service слой
	eventRepo := mongorepo.NewRepository(mongoClient, cfg.MongoDBName)
	publisher := platformkafka.NewPublisher(logger, cfg.KafkaBrokers)
	eventService := service.NewEventService(logger, eventRepo, publisher)

	// Консьюмеры очередей с DLQ
	dlq := platformkafka.NewDLQPublisher(logger, cfg.KafkaBrokers, cfg.KafkaDLQTopic)
	processed := service.NewMemoryProcessedEventsStore()
	consumers := eventkafka.NewConsumers(logger, cfg.KafkaBrokers, cfg.KafkaGroupID, dlq, eventService, processed,
		cfg.KafkaRetryMaxAttempts, cfg.KafkaRetryBackoffBase)

	// HTTP слой
	handler := httpapi.NewHandler(logger, eventService)
	router := httpapi.NewRouter(handler, readiness, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	consumerCtx, consumerStop := context.WithCancel(context.Background())

	// Shutdown функции выполняются в обратном порядке регистрации
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	shutdownMgr.Add("otel", otelShutdown)
	shutdownMgr.Add("mongo", platformshutdown.DisconnectMongo(mongoClient))
	shutdownMgr.Add("kafka_publisher", platformshutdown.CloseCloser(publisher))
	shutdownMgr.Add("kafka_dlq", platformshutdown.CloseCloser(dlq))
	shutdownMgr.Add("kafka_consumers", func(ctx context.Context) error {
		consumerStop()
		return consumers.Close()
	})
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:       logger,
		httpServer:   httpServer,
		shutdownMgr:  shutdownMgr,
		consumers:    consumers,
		consumerCtx:  consumerCtx,
		consumerStop: consumerStop,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Event service", zap.String("addr", a.httpServer.Addr))
	a.logger.Info("Health check available", zap.String("url", "http://"+a.httpServer.Addr+"/health"))

	a.consumers.Start(a.consumerCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	a.shutdownMgr.Wait()

	a.wg.Wait()
	a.logger.Info("Event service stopped")
	return nil
}
