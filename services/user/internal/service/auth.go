package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
)

// ErrValidation возвращается при некорректных входных данных (handler маппит в 400)
var ErrValidation = errors.New("validation error")

// ErrInvalidCredentials возвращается при неверной паре username/password.
// Одна ошибка для "нет такого пользователя" и "пароль не подошёл":
// различать их наружу нельзя, это подсказка для перебора логинов.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrSessionNotFoundOrExpired возвращается при невалидной/истёкшей сессии (handler маппит в 401)
var ErrSessionNotFoundOrExpired = errors.New("session not found or expired")

// defaultPermission — уровень доступа нового пользователя
const defaultPermission = "U"

// AuthService содержит бизнес-логику регистрации и сессий
type AuthService struct {
	logger      *zap.Logger
	repo        repository.UserRepository
	sessionRepo repository.SessionRepository
	sessionTTL  time.Duration
}

// NewAuthService создаёт новый экземпляр AuthService
func NewAuthService(logger *zap.Logger, repo repository.UserRepository, sessionRepo repository.SessionRepository, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		logger:      logger,
		repo:        repo,
		sessionRepo: sessionRepo,
		sessionTTL:  sessionTTL,
	}
}

// Register регистрирует нового пользователя
func (s *AuthService) Register(ctx context.Context, username, password string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := repository.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		Permission:   defaultPermission,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return err
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered successfully",
		zap.String("username", username),
	)

	return nil
}

// LoginOutput содержит результат входа пользователя
type LoginOutput struct {
	SessionID  string
	Permission string
}

// Login аутентифицирует пользователя и создаёт сессию
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginOutput, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by username", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("invalid password attempt",
			zap.String("username", username),
		)
		return nil, ErrInvalidCredentials
	}

	sessionID, err := s.sessionRepo.CreateSession(ctx, user.Username, s.sessionTTL)
	if err != nil {
		s.logger.Error("failed to create session",
			zap.Error(err),
			zap.String("username", username),
		)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("user logged in successfully",
		zap.String("username", username),
		zap.String("session_id", sessionID),
	)

	return &LoginOutput{
		SessionID:  sessionID,
		Permission: user.Permission,
	}, nil
}

// Logout удаляет сессию
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrValidation)
	}
	return s.sessionRepo.DeleteSession(ctx, sessionID)
}

// ValidateSession проверяет валидность сессии и возвращает username;
// при успехе продлевает TTL (sliding window)
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrSessionNotFoundOrExpired
	}

	username, err := s.sessionRepo.GetUsernameBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return "", ErrSessionNotFoundOrExpired
		}
		s.logger.Error("failed to validate session",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		return "", fmt.Errorf("failed to validate session: %w", err)
	}

	if err := s.sessionRepo.RefreshSession(ctx, sessionID, s.sessionTTL); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return "", ErrSessionNotFoundOrExpired
		}
		s.logger.Error("failed to refresh session TTL",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}

	return username, nil
}

// GetUser возвращает профиль пользователя
func (s *AuthService) GetUser(ctx context.Context, username string) (repository.User, error) {
	if username == "" {
		return repository.User{}, fmt.Errorf("%w: username is required", ErrValidation)
	}
	return s.repo.GetByUsername(ctx, username)
}
