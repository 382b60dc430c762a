// Package middleware содержит HTTP middleware User Service.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nirbenah/final-project-backend/services/user/internal/authctx"
	"github.com/nirbenah/final-project-backend/services/user/internal/service"
)

// HeaderSessionID — заголовок с идентификатором сессии
const HeaderSessionID = "x-session-id"

// SessionValidator проверяет сессию и возвращает username её владельца
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (string, error)
}

// Authenticator требует валидную сессию в x-session-id и кладёт username
// в контекст запроса. Невалидная или отсутствующая сессия — 401.
func Authenticator(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(HeaderSessionID)
			if sessionID == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing "+HeaderSessionID+" header")
				return
			}

			username, err := validator.ValidateSession(r.Context(), sessionID)
			if err != nil {
				if errors.Is(err, service.ErrSessionNotFoundOrExpired) {
					writeJSONError(w, http.StatusUnauthorized, "session not found or expired")
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(authctx.WithUsername(r.Context(), username)))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
