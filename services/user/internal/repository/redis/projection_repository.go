package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
)

const (
	hashFieldEventID        = "event_id"
	hashFieldEventTitle     = "event_title"
	hashFieldEventStartDate = "event_start_date"
)

// ProjectionRepository хранит проекцию next-event в Redis hash
// с ключом nextevent:<username>. TTL не ставится: проекция живёт,
// пока её не перезапишет или не очистит проектор.
type ProjectionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewProjectionRepository создаёт новый Redis projection repository
func NewProjectionRepository(client *redis.Client, logger *zap.Logger) *ProjectionRepository {
	return &ProjectionRepository{
		client: client,
		logger: logger,
	}
}

func projectionKey(username string) string {
	return fmt.Sprintf("nextevent:%s", username)
}

// Get возвращает текущую проекцию пользователя из Redis hash
func (r *ProjectionRepository) Get(ctx context.Context, username string) (repository.NextEvent, error) {
	key := projectionKey(username)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		r.logger.Error("failed to get projection hash from redis",
			zap.Error(err),
			zap.String("username", username),
		)
		return repository.NextEvent{}, fmt.Errorf("failed to get projection: %w", err)
	}

	// HGETALL на несуществующем ключе возвращает пустую map, не redis.Nil
	if len(fields) == 0 || fields[hashFieldEventID] == "" {
		return repository.NextEvent{}, repository.ErrProjectionNotFound
	}

	startDate, err := time.Parse(time.RFC3339Nano, fields[hashFieldEventStartDate])
	if err != nil {
		return repository.NextEvent{}, fmt.Errorf("failed to parse projection start date: %w", err)
	}

	return repository.NextEvent{
		Username:       username,
		EventID:        fields[hashFieldEventID],
		EventTitle:     fields[hashFieldEventTitle],
		EventStartDate: startDate,
	}, nil
}

// Set перезаписывает проекцию пользователя в Redis hash
func (r *ProjectionRepository) Set(ctx context.Context, projection repository.NextEvent) error {
	key := projectionKey(projection.Username)

	err := r.client.HSet(ctx, key,
		hashFieldEventID, projection.EventID,
		hashFieldEventTitle, projection.EventTitle,
		hashFieldEventStartDate, projection.EventStartDate.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		r.logger.Error("failed to set projection hash in redis",
			zap.Error(err),
			zap.String("username", projection.Username),
		)
		return fmt.Errorf("failed to set projection: %w", err)
	}

	return nil
}

// Clear удаляет проекцию пользователя из Redis
func (r *ProjectionRepository) Clear(ctx context.Context, username string) error {
	err := r.client.Del(ctx, projectionKey(username)).Err()
	if err != nil {
		r.logger.Error("failed to delete projection hash from redis",
			zap.Error(err),
			zap.String("username", username),
		)
		return fmt.Errorf("failed to clear projection: %w", err)
	}

	return nil
}
