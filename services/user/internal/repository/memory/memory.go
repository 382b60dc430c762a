// Package memory содержит in-memory реализации репозиториев User Service
// для тестов и локальной разработки.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
)

// UserRepository реализует repository.UserRepository в памяти
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]repository.User // username -> user
}

// NewUserRepository создаёт пустой in-memory репозиторий пользователей
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]repository.User),
	}
}

// CreateUser создаёт нового пользователя
func (r *UserRepository) CreateUser(_ context.Context, user repository.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Username]; ok {
		return repository.ErrAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.users[user.Username] = user
	return nil
}

// GetByUsername получает пользователя по username
func (r *UserRepository) GetByUsername(_ context.Context, username string) (repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return user, nil
}

type session struct {
	username  string
	expiresAt time.Time
}

// SessionRepository реализует repository.SessionRepository в памяти
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]session
}

// NewSessionRepository создаёт пустой in-memory репозиторий сессий
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]session),
	}
}

// CreateSession создаёт сессию и возвращает session_id
func (r *SessionRepository) CreateSession(_ context.Context, username string, ttl time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID := uuid.NewString()
	r.sessions[sessionID] = session{
		username:  username,
		expiresAt: time.Now().Add(ttl),
	}
	return sessionID, nil
}

// GetUsernameBySession возвращает username по session_id
func (r *SessionRepository) GetUsernameBySession(_ context.Context, sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || time.Now().After(s.expiresAt) {
		delete(r.sessions, sessionID)
		return "", repository.ErrSessionNotFound
	}
	return s.username, nil
}

// RefreshSession продлевает TTL сессии
func (r *SessionRepository) RefreshSession(_ context.Context, sessionID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || time.Now().After(s.expiresAt) {
		delete(r.sessions, sessionID)
		return repository.ErrSessionNotFound
	}
	s.expiresAt = time.Now().Add(ttl)
	r.sessions[sessionID] = s
	return nil
}

// DeleteSession удаляет сессию
func (r *SessionRepository) DeleteSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// ProjectionRepository реализует repository.ProjectionRepository в памяти
type ProjectionRepository struct {
	mu          sync.RWMutex
	projections map[string]repository.NextEvent // username -> projection
}

// NewProjectionRepository создаёт пустой in-memory репозиторий проекций
func NewProjectionRepository() *ProjectionRepository {
	return &ProjectionRepository{
		projections: make(map[string]repository.NextEvent),
	}
}

// Get возвращает текущую проекцию пользователя
func (r *ProjectionRepository) Get(_ context.Context, username string) (repository.NextEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projection, ok := r.projections[username]
	if !ok {
		return repository.NextEvent{}, repository.ErrProjectionNotFound
	}
	return projection, nil
}

// Set перезаписывает проекцию пользователя
func (r *ProjectionRepository) Set(_ context.Context, projection repository.NextEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.projections[projection.Username] = projection
	return nil
}

// Clear удаляет проекцию пользователя
func (r *ProjectionRepository) Clear(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.projections, username)
	return nil
}
