package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/nirbenah/final-project-backend/platform/health/http"
	platformobservability "github.com/nirbenah/final-project-backend/platform/observability"
)

// NewRouter создаёт и настраивает HTTP роутер Event Service
// readiness - функция для проверки готовности сервиса (например, ping MongoDB).
// Если readiness возвращает false, health endpoint вернёт 503 Service Unavailable.
func NewRouter(handler *Handler, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	// Observability: trace context + span на каждый запрос, logger с trace_id в контексте
	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("event", logger))
	}

	router.Route("/api", func(r chi.Router) {
		r.Post("/event", handler.PostEvent)
		r.Get("/events", handler.GetEvents)
		r.Get("/events/available", handler.GetAvailableEvents)
		r.Route("/event/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				handler.GetEvent(w, req, chi.URLParam(req, "id"))
			})
			r.Put("/tickets/inc", func(w http.ResponseWriter, req *http.Request) {
				handler.IncTickets(w, req, chi.URLParam(req, "id"))
			})
			r.Put("/tickets/dec", func(w http.ResponseWriter, req *http.Request) {
				handler.DecTickets(w, req, chi.URLParam(req, "id"))
			})
			r.Put("/dates", func(w http.ResponseWriter, req *http.Request) {
				handler.PutDates(w, req, chi.URLParam(req, "id"))
			})
		})
	})

	// Health без middleware
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
