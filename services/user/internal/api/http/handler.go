// Package httpapi содержит HTTP обработчики User Service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/observability"
	"github.com/nirbenah/final-project-backend/services/user/internal/api/http/middleware"
	"github.com/nirbenah/final-project-backend/services/user/internal/authctx"
	"github.com/nirbenah/final-project-backend/services/user/internal/repository"
	"github.com/nirbenah/final-project-backend/services/user/internal/service"
)

// Handler обрабатывает HTTP запросы User Service
type Handler struct {
	logger    *zap.Logger
	auth      *service.AuthService
	projector *service.Projector
}

// NewHandler создаёт новый HTTP handler
func NewHandler(logger *zap.Logger, auth *service.AuthService, projector *service.Projector) *Handler {
	return &Handler{
		logger:    logger,
		auth:      auth,
		projector: projector,
	}
}

// CredentialsRequest — тело запросов signup и login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse — ответ успешного login
type LoginResponse struct {
	SessionID  string `json:"sessionId"`
	Permission string `json:"permission"`
}

// MeResponse — профиль текущего пользователя
type MeResponse struct {
	Username   string `json:"username"`
	Permission string `json:"permission"`
}

// NextEventResponse — проекция ближайшего события; пустые поля означают,
// что будущих оплаченных заказов нет
type NextEventResponse struct {
	EventID        string `json:"eventId"`
	EventTitle     string `json:"eventTitle"`
	EventStartDate string `json:"eventStartDate"`
}

// PostSignup обрабатывает POST /api/signup - регистрация пользователя
func (h *Handler) PostSignup(w http.ResponseWriter, r *http.Request) {
	var reqBody CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.Register(r.Context(), reqBody.Username, reqBody.Password); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// PostLogin обрабатывает POST /api/login - вход и создание сессии
func (h *Handler) PostLogin(w http.ResponseWriter, r *http.Request) {
	var reqBody CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.auth.Login(r.Context(), reqBody.Username, reqBody.Password)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, LoginResponse{
		SessionID:  out.SessionID,
		Permission: out.Permission,
	})
}

// PostLogout обрабатывает POST /api/logout - удаление сессии
func (h *Handler) PostLogout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(middleware.HeaderSessionID)
	if err := h.auth.Logout(r.Context(), sessionID); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// GetMe обрабатывает GET /api/users/me - профиль текущего пользователя
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	username := authctx.Username(r.Context())

	user, err := h.auth.GetUser(r.Context(), username)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MeResponse{
		Username:   user.Username,
		Permission: user.Permission,
	})
}

// GetNextEvent обрабатывает GET /api/users/me/next-event - проекция
// ближайшего события текущего пользователя
func (h *Handler) GetNextEvent(w http.ResponseWriter, r *http.Request) {
	username := authctx.Username(r.Context())

	projection, err := h.projector.NextEvent(r.Context(), username)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	resp := NextEventResponse{
		EventID:    projection.EventID,
		EventTitle: projection.EventTitle,
	}
	if !projection.EventStartDate.IsZero() {
		resp.EventStartDate = projection.EventStartDate.UTC().Format(time.RFC3339Nano)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleServiceError транслирует ошибки service слоя в HTTP статусы
func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrSessionNotFoundOrExpired):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrAlreadyExists):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		log := observability.LoggerFromContext(ctx)
		if log == nil {
			log = h.logger
		}
		log.Error("Request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
