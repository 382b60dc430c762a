package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	platformkafka "github.com/nirbenah/final-project-backend/platform/kafka"
)

// Env представляет окружение приложения
type Env string

const (
	// EnvLocal - локальное окружение (для разработки на хосте)
	EnvLocal Env = "local"
	// EnvDocker - Docker окружение (для запуска в контейнерах)
	EnvDocker Env = "docker"
)

// Config содержит конфигурацию Event Service
type Config struct {
	AppEnv          Env
	HTTPAddr        string
	MongoURI        string
	MongoDBName     string
	ShutdownTimeout time.Duration

	// Kafka
	KafkaBrokers          []string
	KafkaGroupID          string
	KafkaRetryMaxAttempts int
	KafkaRetryBackoffBase time.Duration
	KafkaDLQTopic         string

	// Observability
	OtelEnabled       bool
	OtelEndpoint      string
	OtelSamplingRatio float64
}

// Load загружает конфигурацию из переменных окружения
// Читает APP_ENV и устанавливает дефолты в зависимости от окружения
func Load() (Config, error) {
	cfg := Config{}

	// Читаем APP_ENV
	appEnvStr := getString("APP_ENV", string(EnvLocal))
	appEnv := Env(appEnvStr)
	if appEnv != EnvLocal && appEnv != EnvDocker {
		return Config{}, fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", appEnvStr)
	}
	cfg.AppEnv = appEnv

	// HTTP_ADDR
	if cfg.AppEnv == EnvLocal {
		cfg.HTTPAddr = getString("HTTP_ADDR", "127.0.0.1:8081")
	} else {
		cfg.HTTPAddr = getString("HTTP_ADDR", "0.0.0.0:8081")
	}

	// EVENT_MONGO_URI
	if cfg.AppEnv == EnvLocal {
		cfg.MongoURI = getString("EVENT_MONGO_URI", "mongodb://127.0.0.1:27017")
	} else {
		cfg.MongoURI = getString("EVENT_MONGO_URI", "mongodb://mongo:27017")
	}
	cfg.MongoDBName = getString("EVENT_MONGO_DB", "events")

	// SHUTDOWN_TIMEOUT
	shutdownTimeoutStr := getString("SHUTDOWN_TIMEOUT", "10s")
	shutdownTimeout, err := time.ParseDuration(shutdownTimeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout = shutdownTimeout

	// Kafka: KAFKA_BROKERS и KAFKA_GROUP_ID парсятся платформенным конфигом
	kafkaCfg := platformkafka.DefaultConfig("event-service")
	if cfg.AppEnv == EnvDocker {
		kafkaCfg.Brokers = []string{"kafka:9092"}
	}
	if err := platformkafka.LoadEnv(&kafkaCfg); err != nil {
		return Config{}, fmt.Errorf("invalid kafka config: %w", err)
	}
	cfg.KafkaBrokers = kafkaCfg.Brokers

	// KAFKA_EVENT_GROUP_ID имеет приоритет над общим KAFKA_GROUP_ID
	cfg.KafkaGroupID = getString("KAFKA_EVENT_GROUP_ID", kafkaCfg.GroupID)

	retryMaxAttemptsStr := getString("EVENT_KAFKA_RETRY_MAX_ATTEMPTS", "3")
	retryMaxAttempts, err := strconv.Atoi(retryMaxAttemptsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid EVENT_KAFKA_RETRY_MAX_ATTEMPTS: %w", err)
	}
	cfg.KafkaRetryMaxAttempts = retryMaxAttempts

	retryBackoffBaseStr := getString("EVENT_KAFKA_RETRY_BACKOFF_BASE", "1s")
	retryBackoffBase, err := time.ParseDuration(retryBackoffBaseStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid EVENT_KAFKA_RETRY_BACKOFF_BASE: %w", err)
	}
	cfg.KafkaRetryBackoffBase = retryBackoffBase

	cfg.KafkaDLQTopic = getString("KAFKA_EVENT_DLQ_TOPIC", "event-dlq")

	// Observability
	otelEnabledStr := getString("OTEL_ENABLED", "false")
	cfg.OtelEnabled = otelEnabledStr == "true" || otelEnabledStr == "1"
	if cfg.AppEnv == EnvLocal {
		cfg.OtelEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4317")
	} else {
		cfg.OtelEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
	}
	samplingRatioStr := getString("OTEL_SAMPLING_RATIO", "1.0")
	samplingRatio, err := strconv.ParseFloat(samplingRatioStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid OTEL_SAMPLING_RATIO: %w", err)
	}
	cfg.OtelSamplingRatio = samplingRatio

	// Валидация
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("EVENT_MONGO_URI is required")
	}
	if c.MongoDBName == "" {
		return fmt.Errorf("EVENT_MONGO_DB is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.KafkaGroupID == "" {
		return fmt.Errorf("KAFKA_EVENT_GROUP_ID is required")
	}
	if c.KafkaRetryMaxAttempts <= 0 {
		return fmt.Errorf("EVENT_KAFKA_RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.KafkaRetryBackoffBase <= 0 {
		return fmt.Errorf("EVENT_KAFKA_RETRY_BACKOFF_BASE must be positive")
	}
	if c.KafkaDLQTopic == "" {
		return fmt.Errorf("KAFKA_EVENT_DLQ_TOPIC is required")
	}
	if c.OtelSamplingRatio < 0 || c.OtelSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be in [0..1]")
	}
	return nil
}

// Log выводит конфигурацию в лог (с маскировкой креденшалов)
func (c Config) Log() {
	log.Printf("Config loaded:")
	log.Printf("  APP_ENV: %s", c.AppEnv)
	log.Printf("  HTTP_ADDR: %s", c.HTTPAddr)
	log.Printf("  EVENT_MONGO_URI: %s", maskDSN(c.MongoURI))
	log.Printf("  EVENT_MONGO_DB: %s", c.MongoDBName)
	log.Printf("  SHUTDOWN_TIMEOUT: %s", c.ShutdownTimeout)
	log.Printf("  KAFKA_BROKERS: %v", c.KafkaBrokers)
	log.Printf("  KAFKA_EVENT_GROUP_ID: %s", c.KafkaGroupID)
	log.Printf("  EVENT_KAFKA_RETRY_MAX_ATTEMPTS: %d", c.KafkaRetryMaxAttempts)
	log.Printf("  EVENT_KAFKA_RETRY_BACKOFF_BASE: %s", c.KafkaRetryBackoffBase)
	log.Printf("  KAFKA_EVENT_DLQ_TOPIC: %s", c.KafkaDLQTopic)
	log.Printf("  OTEL_ENABLED: %v", c.OtelEnabled)
	if c.OtelEnabled {
		log.Printf("  OTEL_EXPORTER_OTLP_ENDPOINT: %s", c.OtelEndpoint)
		log.Printf("  OTEL_SAMPLING_RATIO: %v", c.OtelSamplingRatio)
	}
}

// getString читает переменную окружения или возвращает дефолт
func getString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// maskDSN маскирует пароль в URI для безопасного логирования
func maskDSN(dsn string) string {
	masked := dsn
	for i := 0; i < len(dsn)-1; i++ {
		if dsn[i] == ':' && i+1 < len(dsn) && dsn[i+1] != '/' {
			for j := i + 1; j < len(dsn); j++ {
				if dsn[j] == '@' {
					masked = dsn[:i+1] + "***" + dsn[j:]
					break
				}
			}
			break
		}
	}
	return masked
}
