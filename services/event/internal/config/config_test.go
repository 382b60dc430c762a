package config

import (
	"os"
	"testing"
)

func TestLoad_LocalDefaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != EnvLocal {
		t.Errorf("Expected AppEnv=local, got %s", cfg.AppEnv)
	}
	if cfg.HTTPAddr != "127.0.0.1:8081" {
		t.Errorf("Expected HTTPAddr=127.0.0.1:8081, got %s", cfg.HTTPAddr)
	}
	if cfg.MongoURI != "mongodb://127.0.0.1:27017" {
		t.Errorf("Expected local mongo URI, got %s", cfg.MongoURI)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:19092" {
		t.Errorf("Expected default local brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaGroupID != "event-service" {
		t.Errorf("Expected KafkaGroupID=event-service, got %s", cfg.KafkaGroupID)
	}
}

func TestLoad_DockerDefaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "docker")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HTTPAddr != "0.0.0.0:8081" {
		t.Errorf("Expected HTTPAddr=0.0.0.0:8081, got %s", cfg.HTTPAddr)
	}
	if cfg.MongoURI != "mongodb://mongo:27017" {
		t.Errorf("Expected docker mongo URI, got %s", cfg.MongoURI)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "kafka:9092" {
		t.Errorf("Expected default docker brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestLoad_InvalidAppEnv(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "staging")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for invalid APP_ENV")
	}
}

func TestLoad_KafkaBrokersOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "local")
	os.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("Expected 2 brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaBrokers[0] != "broker1:9092" || cfg.KafkaBrokers[1] != "broker2:9092" {
		t.Errorf("Brokers not split correctly: %v", cfg.KafkaBrokers)
	}
}

func TestLoad_KafkaGroupIDFromEnv(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "local")
	os.Setenv("KAFKA_GROUP_ID", "shared-group")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.KafkaGroupID != "shared-group" {
		t.Errorf("Expected KafkaGroupID=shared-group, got %s", cfg.KafkaGroupID)
	}

	// Сервисная переменная важнее общей
	os.Setenv("KAFKA_EVENT_GROUP_ID", "event-custom")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.KafkaGroupID != "event-custom" {
		t.Errorf("Expected KafkaGroupID=event-custom, got %s", cfg.KafkaGroupID)
	}
}

func TestLoad_InvalidRetryBackoff(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "local")
	os.Setenv("EVENT_KAFKA_RETRY_BACKOFF_BASE", "fast")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for invalid EVENT_KAFKA_RETRY_BACKOFF_BASE")
	}
}
