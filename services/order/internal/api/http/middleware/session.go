package middleware

import (
	"net/http"

	"github.com/nirbenah/final-project-backend/services/order/internal/authctx"
)

// WithSessionID требует заголовок x-session-id (проставляется gateway-ем после
// проверки сессии) и кладёт его в контекст запроса. Без заголовка - 401.
func WithSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := r.Header.Get("x-session-id")
		if sid == "" {
			http.Error(w, "session_id is required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(authctx.WithSessionID(r.Context(), sid)))
	})
}
