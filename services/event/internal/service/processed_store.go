package service

import (
	"context"
	"sync"
	"time"
)

// MemoryProcessedEventsStore реализует ProcessedEventsStore используя in-memory map.
// Защищает консьюмер event-tickets-queue от повторной доставки (at-least-once):
// release не конвергентен, двойное применение удвоило бы возврат билетов.
type MemoryProcessedEventsStore struct {
	mu     sync.Mutex
	events map[string]time.Time // eventID -> expiresAt
}

// NewMemoryProcessedEventsStore создаёт новый in-memory store
func NewMemoryProcessedEventsStore() *MemoryProcessedEventsStore {
	return &MemoryProcessedEventsStore{
		events: make(map[string]time.Time),
	}
}

// MarkProcessed сохраняет eventID как обработанный с указанным ttl
func (s *MemoryProcessedEventsStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()
	s.events[eventID] = time.Now().Add(ttl)
	return nil
}

// IsProcessed проверяет, был ли eventID уже обработан
func (s *MemoryProcessedEventsStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()

	expiresAt, exists := s.events[eventID]
	if !exists {
		return false, nil
	}
	return time.Now().Before(expiresAt), nil
}

// cleanupExpiredLocked удаляет протухшие записи (вызывается с уже захваченным lock)
func (s *MemoryProcessedEventsStore) cleanupExpiredLocked() {
	now := time.Now()
	for eventID, expiresAt := range s.events {
		if now.After(expiresAt) {
			delete(s.events, eventID)
		}
	}
}
