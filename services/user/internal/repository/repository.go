package repository

import (
	"context"
	"errors"
	"time"
)

// User представляет доменную модель пользователя
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Permission   string
	CreatedAt    time.Time
}

// NextEvent представляет проекцию "ближайшее событие пользователя".
// Это денормализованный кэш: авторитетный источник — оплаченные заказы
// в Order Service, проекция всегда пересчитываема с нуля.
type NextEvent struct {
	Username       string
	EventID        string
	EventTitle     string
	EventStartDate time.Time
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=UserRepository --dir=. --output=./mocks --outpkg=mocks

// UserRepository определяет интерфейс для работы с хранилищем пользователей
type UserRepository interface {
	// CreateUser создаёт нового пользователя
	// Возвращает ErrAlreadyExists, если username уже занят
	CreateUser(ctx context.Context, user User) error

	// GetByUsername получает пользователя по username
	// Возвращает ErrNotFound, если пользователь не найден
	GetByUsername(ctx context.Context, username string) (User, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=SessionRepository --dir=. --output=./mocks --outpkg=mocks

// SessionRepository определяет интерфейс для работы с сессиями
type SessionRepository interface {
	// CreateSession создаёт сессию для пользователя и возвращает session_id
	CreateSession(ctx context.Context, username string, ttl time.Duration) (string, error)

	// GetUsernameBySession возвращает username по session_id
	// Возвращает ErrSessionNotFound, если сессия не найдена или истекла
	GetUsernameBySession(ctx context.Context, sessionID string) (string, error)

	// RefreshSession продлевает TTL сессии (sliding window)
	RefreshSession(ctx context.Context, sessionID string, ttl time.Duration) error

	// DeleteSession удаляет сессию
	DeleteSession(ctx context.Context, sessionID string) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProjectionRepository --dir=. --output=./mocks --outpkg=mocks

// ProjectionRepository определяет интерфейс для хранилища проекции next-event
type ProjectionRepository interface {
	// Get возвращает текущую проекцию пользователя
	// Возвращает ErrProjectionNotFound, если проекции нет
	Get(ctx context.Context, username string) (NextEvent, error)

	// Set перезаписывает проекцию пользователя
	Set(ctx context.Context, projection NextEvent) error

	// Clear удаляет проекцию пользователя (у него не осталось будущих оплаченных заказов)
	Clear(ctx context.Context, username string) error
}

// ErrNotFound возвращается, когда пользователь не найден в хранилище
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists возвращается, когда пользователь с таким username уже существует
var ErrAlreadyExists = errors.New("user already exists")

// ErrSessionNotFound возвращается при отсутствующей или истёкшей сессии
var ErrSessionNotFound = errors.New("session not found")

// ErrProjectionNotFound возвращается, когда у пользователя нет проекции next-event
var ErrProjectionNotFound = errors.New("next event projection not found")
