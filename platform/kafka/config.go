package kafka

// Config содержит конфигурацию подключения к Kafka
type Config struct {
	// Brokers — список брокеров, через которые подключаются сервисы.
	// Значение зависит от среды выполнения:
	//   - локальная разработка (go run): localhost:19092
	//   - запуск в Docker: kafka:9092
	// Несколько брокеров указываются через запятую.
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	// GroupID — consumer group сервиса. Каждый сервис платформы читает свои
	// очереди своей группой, чтобы offset-ы не пересекались.
	GroupID string `env:"KAFKA_GROUP_ID"`
}

// DefaultConfig возвращает конфигурацию для локальной разработки.
// Сервисы получают актуальные значения через переменные окружения.
func DefaultConfig(groupID string) Config {
	return Config{
		Brokers: []string{"localhost:19092"},
		GroupID: groupID,
	}
}
