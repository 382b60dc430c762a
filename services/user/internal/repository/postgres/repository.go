package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
)

// Repository реализует UserRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// CreateUser создаёт нового пользователя в PostgreSQL
func (r *Repository) CreateUser(ctx context.Context, user repository.User) error {
	var userID uuid.UUID
	var err error

	if user.ID == "" {
		userID = uuid.New()
	} else {
		userID, err = uuid.Parse(user.ID)
		if err != nil {
			return err
		}
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, permission, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, user.Username, user.PasswordHash, user.Permission, user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return repository.ErrAlreadyExists
		}
		return err
	}

	return nil
}

// GetByUsername получает пользователя по username из PostgreSQL
func (r *Repository) GetByUsername(ctx context.Context, username string) (repository.User, error) {
	var user repository.User

	err := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, permission, created_at
		 FROM users
		 WHERE username = $1`,
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Permission, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.User{}, repository.ErrNotFound
		}
		return repository.User{}, err
	}

	return user, nil
}
