package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nirbenah/final-project-backend/platform/observability"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/eventapi"
	"github.com/nirbenah/final-project-backend/services/order/internal/client/payment"
	"github.com/nirbenah/final-project-backend/services/order/internal/repository"
	"github.com/nirbenah/final-project-backend/services/order/internal/service"
)

// Handler содержит HTTP-обработчики Order Service
type Handler struct {
	logger       *zap.Logger
	orderService *service.OrderService
}

// NewHandler создаёт новый HTTP handler
func NewHandler(logger *zap.Logger, orderService *service.OrderService) *Handler {
	return &Handler{
		logger:       logger,
		orderService: orderService,
	}
}

// OrderRequest представляет HTTP запрос на создание заказа
type OrderRequest struct {
	Username   string `json:"username"`
	EventID    string `json:"eventID"`
	TicketType string `json:"ticketType"`
	Quantity   int64  `json:"quantity"`
}

// PurchaseRequest представляет платёжные данные покупки
type PurchaseRequest struct {
	CC     string `json:"cc"`
	Holder string `json:"holder"`
	CVV    int64  `json:"cvv"`
	Exp    string `json:"exp"`
}

// OrdersPage представляет страницу заказов в ответе
type OrdersPage struct {
	Orders []repository.Order `json:"orders"`
	Total  int64              `json:"total"`
}

// NextEventResponse представляет ближайшее событие пользователя
type NextEventResponse struct {
	EventID        string `json:"eventId"`
	EventTitle     string `json:"eventTitle"`
	EventStartDate string `json:"eventStartDate"`
}

// PostOrder обрабатывает POST /api/order - создание заказа с резервом билетов
func (h *Handler) PostOrder(w http.ResponseWriter, r *http.Request) {
	var reqBody OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), service.CreateOrderInput{
		Username:   reqBody.Username,
		EventID:    reqBody.EventID,
		TicketType: reqBody.TicketType,
		Quantity:   reqBody.Quantity,
	})
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"orderId": order.ID})
}

// PostPurchase обрабатывает POST /api/order/{id}/purchase - оплата заказа
func (h *Handler) PostPurchase(w http.ResponseWriter, r *http.Request, id string) {
	var reqBody PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.orderService.Purchase(r.Context(), id, payment.Payload{
		CC:     reqBody.CC,
		Holder: reqBody.Holder,
		CVV:    reqBody.CVV,
		Exp:    reqBody.Exp,
	})
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// GetOrder обрабатывает GET /api/order/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, id string) {
	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// DeleteOrder обрабатывает DELETE /api/order/{id} - отмена заказа клиентом.
// Оплаченному заказу в этом пути возвращаются деньги.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.orderService.Delete(r.Context(), id, true); err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"orderId": id})
}

// GetOrdersByUser обрабатывает GET /api/ordersByUserId?id=&page=&limit=
func (h *Handler) GetOrdersByUser(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, h.orderService.ListByUser)
}

// GetOrdersByEvent обрабатывает GET /api/ordersByEventId?id=&page=&limit=
func (h *Handler) GetOrdersByEvent(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, h.orderService.ListByEvent)
}

func (h *Handler) listOrders(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, id string, page, limit int64) ([]repository.Order, int64, error),
) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}
	page, limit, ok := parsePaging(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	orders, total, err := list(r.Context(), id, page, limit)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, OrdersPage{Orders: orders, Total: total})
}

// GetNextEvent обрабатывает GET /api/order/nextEvent/{username}.
// Отсутствие будущих оплаченных заказов - не ошибка, а пустой ответ:
// так проектору не приходится различать 404 "нет пользователя" и "нет заказов".
func (h *Handler) GetNextEvent(w http.ResponseWriter, r *http.Request, username string) {
	order, err := h.orderService.NextEvent(r.Context(), username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeJSON(w, http.StatusOK, NextEventResponse{})
			return
		}
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NextEventResponse{
		EventID:        order.EventID,
		EventTitle:     order.EventTitle,
		EventStartDate: order.EventStartDate.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// handleServiceError транслирует ошибки service слоя в HTTP статусы
func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, payment.ErrInvalidPayload):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, eventapi.ErrEventNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, eventapi.ErrInsufficientTickets):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrPaymentFailed):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
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
