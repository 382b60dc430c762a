package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/nirbenah/final-project-backend/platform/health/http"
	platformobservability "github.com/nirbenah/final-project-backend/platform/observability"
	"github.com/nirbenah/final-project-backend/services/order/internal/api/http/middleware"
)

// NewRouter создаёт и настраивает HTTP роутер Order Service.
// Запросы приходят через gateway: авторизованная сессия подтверждается
// заголовком x-session-id, его требует middleware на всех /api маршрутах,
// кроме межсервисного nextEvent.
func NewRouter(handler *Handler, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("order", logger))
	}

	router.Route("/api", func(r chi.Router) {
		// Межсервисный маршрут: его зовёт User Service при пересчёте
		// проекции next-event, сессии у такого запроса нет
		r.Get("/order/nextEvent/{username}", func(w http.ResponseWriter, req *http.Request) {
			handler.GetNextEvent(w, req, chi.URLParam(req, "username"))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.WithSessionID)

			r.Post("/order", handler.PostOrder)
			r.Get("/ordersByUserId", handler.GetOrdersByUser)
			r.Get("/ordersByEventId", handler.GetOrdersByEvent)
			r.Route("/order/{id}", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, req *http.Request) {
					handler.GetOrder(w, req, chi.URLParam(req, "id"))
				})
				r.Post("/purchase", func(w http.ResponseWriter, req *http.Request) {
					handler.PostPurchase(w, req, chi.URLParam(req, "id"))
				})
				r.Delete("/", func(w http.ResponseWriter, req *http.Request) {
					handler.DeleteOrder(w, req, chi.URLParam(req, "id"))
				})
			})
		})
	})

	// Health без middleware
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
