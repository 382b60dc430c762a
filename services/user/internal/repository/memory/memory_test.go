package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	user := repository.User{Username: "gopher", PasswordHash: "hash", Permission: "U"}
	require.NoError(t, repo.CreateUser(ctx, user))

	got, err := repo.GetByUsername(ctx, "gopher")
	require.NoError(t, err)
	require.NotEmpty(t, got.ID)
	require.Equal(t, "hash", got.PasswordHash)

	require.ErrorIs(t, repo.CreateUser(ctx, user), repository.ErrAlreadyExists)

	_, err = repo.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	sessionID, err := repo.CreateSession(ctx, "gopher", time.Hour)
	require.NoError(t, err)

	username, err := repo.GetUsernameBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, "gopher", username)

	require.NoError(t, repo.RefreshSession(ctx, sessionID, time.Hour))

	require.NoError(t, repo.DeleteSession(ctx, sessionID))
	_, err = repo.GetUsernameBySession(ctx, sessionID)
	require.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSessionRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	sessionID, err := repo.CreateSession(ctx, "gopher", -time.Minute)
	require.NoError(t, err)

	_, err = repo.GetUsernameBySession(ctx, sessionID)
	require.ErrorIs(t, err, repository.ErrSessionNotFound)

	require.ErrorIs(t, repo.RefreshSession(ctx, sessionID, time.Hour), repository.ErrSessionNotFound)
}

func TestProjectionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectionRepository()

	_, err := repo.Get(ctx, "gopher")
	require.ErrorIs(t, err, repository.ErrProjectionNotFound)

	projection := repository.NextEvent{
		Username:       "gopher",
		EventID:        "ev-1",
		EventTitle:     "Go Conference",
		EventStartDate: time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, repo.Set(ctx, projection))

	got, err := repo.Get(ctx, "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", got.EventID)

	require.NoError(t, repo.Clear(ctx, "gopher"))
	_, err = repo.Get(ctx, "gopher")
	require.ErrorIs(t, err, repository.ErrProjectionNotFound)
}
