package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/observability"
	"github.com/nirbenah/final-project-backend/services/event/internal/repository"
	"github.com/nirbenah/final-project-backend/services/event/internal/service"
)

// Handler содержит HTTP-обработчики Event Service
// Зависит от service слоя, но не знает о деталях реализации (MongoDB, Kafka)
type Handler struct {
	logger       *zap.Logger
	eventService *service.EventService
}

// NewHandler создаёт новый HTTP handler
func NewHandler(logger *zap.Logger, eventService *service.EventService) *Handler {
	return &Handler{
		logger:       logger,
		eventService: eventService,
	}
}

// TicketRequest представляет тип билета в запросе на создание события
type TicketRequest struct {
	Name     string  `json:"name"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

// EventRequest представляет HTTP запрос на создание события
type EventRequest struct {
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Organizer   string          `json:"organizer"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Location    string          `json:"location"`
	Tickets     []TicketRequest `json:"tickets"`
	Image       string          `json:"image"`
}

// TicketOpRequest представляет запрос на inc/dec остатка билета
type TicketOpRequest struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// DatesRequest представляет запрос на перенос дат события
type DatesRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// EventsPage представляет страницу событий в ответе
type EventsPage struct {
	Events []repository.Event `json:"events"`
	Total  int64              `json:"total"`
}

// PostEvent обрабатывает POST /api/event - создание события
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqBody EventRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tickets := make([]service.TicketInput, 0, len(reqBody.Tickets))
	for _, t := range reqBody.Tickets {
		tickets = append(tickets, service.TicketInput{
			Name:     t.Name,
			Quantity: t.Quantity,
			Price:    t.Price,
		})
	}

	id, err := h.eventService.CreateEvent(ctx, service.CreateEventInput{
		Title:       reqBody.Title,
		Category:    reqBody.Category,
		Description: reqBody.Description,
		Organizer:   reqBody.Organizer,
		StartDate:   reqBody.StartDate,
		EndDate:     reqBody.EndDate,
		Location:    reqBody.Location,
		Tickets:     tickets,
		Image:       reqBody.Image,
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"_id": id})
}

// GetEvent обрабатывает GET /api/event/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request, id string) {
	event, err := h.eventService.GetEvent(r.Context(), id)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

// GetEvents обрабатывает GET /api/events?page=&limit=
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := parsePaging(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	events, total, err := h.eventService.ListEvents(r.Context(), page, limit)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, EventsPage{Events: events, Total: total})
}

// GetAvailableEvents обрабатывает GET /api/events/available?page=&limit=
func (h *Handler) GetAvailableEvents(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := parsePaging(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	events, total, err := h.eventService.ListAvailableEvents(r.Context(), page, limit)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, EventsPage{Events: events, Total: total})
}

// IncTickets обрабатывает PUT /api/event/{id}/tickets/inc - возврат билетов в наличие
func (h *Handler) IncTickets(w http.ResponseWriter, r *http.Request, id string) {
	var reqBody TicketOpRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.eventService.ReleaseTickets(r.Context(), id, reqBody.Name, reqBody.Quantity); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"_id": id})
}

// DecTickets обрабатывает PUT /api/event/{id}/tickets/dec - резервирование билетов
func (h *Handler) DecTickets(w http.ResponseWriter, r *http.Request, id string) {
	var reqBody TicketOpRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.eventService.ReserveTickets(r.Context(), id, reqBody.Name, reqBody.Quantity); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"_id": id})
}

// PutDates обрабатывает PUT /api/event/{id}/dates - перенос дат события
func (h *Handler) PutDates(w http.ResponseWriter, r *http.Request, id string) {
	var reqBody DatesRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.eventService.UpdateEventDates(r.Context(), id, reqBody.StartDate, reqBody.EndDate); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"_id": id})
}

// handleServiceError транслирует ошибки service слоя в HTTP статусы
func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrTicketNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrInsufficientTickets), errors.Is(err, repository.ErrMaxReached):
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

func parsePaging(r *http.Request) (page, limit int64, ok bool) {
	page, limit = 1, 10
	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 1 {
			return 0, 0, false
		}
		page = parsed
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 1 {
			return 0, 0, false
		}
		limit = parsed
	}
	return page, limit, true
}
