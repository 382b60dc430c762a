package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/nirbenah/final-project-backend/platform/health/http"
	platformobservability "github.com/nirbenah/final-project-backend/platform/observability"
	"github.com/nirbenah/final-project-backend/services/user/internal/api/http/middleware"
)

// NewRouter создаёт и настраивает HTTP роутер User Service.
// Signup и login открыты, остальные /api маршруты требуют валидную
// сессию в заголовке x-session-id.
func NewRouter(handler *Handler, validator middleware.SessionValidator, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("user", logger))
	}

	router.Route("/api", func(r chi.Router) {
		r.Post("/signup", handler.PostSignup)
		r.Post("/login", handler.PostLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticator(validator))

			r.Post("/logout", handler.PostLogout)
			r.Get("/users/me", handler.GetMe)
			r.Get("/users/me/next-event", handler.GetNextEvent)
		})
	})

	// Health без middleware
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
