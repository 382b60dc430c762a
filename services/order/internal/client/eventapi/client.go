// Package eventapi - HTTP клиент Event Service.
// Через него Order Service резервирует билеты синхронно (ответ "хватило/не хватило"
// нужен сразу), возврат билетов идёт асинхронно через event-tickets-queue.
package eventapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEventNotFound - событие или тип билета не найдены
	ErrEventNotFound = errors.New("event not found")
	// ErrInsufficientTickets - свободных билетов меньше запрошенного
	ErrInsufficientTickets = errors.New("insufficient tickets available")
)

// Ticket - тип билета события
type Ticket struct {
	Name      string  `json:"name"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Available int64   `json:"available"`
}

// Event - событие, как его отдаёт Event Service
type Event struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Tickets   []Ticket  `json:"tickets"`
}

// Client - HTTP клиент Event Service
type Client struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

// NewClient создаёт новый клиент Event Service
func NewClient(logger *zap.Logger, baseURL string) *Client {
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetEvent возвращает событие по ID
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	url := fmt.Sprintf("%s/api/event/%s", c.baseURL, eventID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrEventNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("event API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var event Event
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &event, nil
}

// ReserveTickets уменьшает доступные билеты события.
// 409 от Event Service означает, что свободных билетов не хватило.
// Возврат билетов синхронного пути не имеет: он идёт через order-delete-queue.
func (c *Client) ReserveTickets(ctx context.Context, eventID, ticketType string, quantity int64) error {
	url := fmt.Sprintf("%s/api/event/%s/tickets/dec", c.baseURL, eventID)

	payload := map[string]interface{}{
		"name":     ticketType,
		"quantity": quantity,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		c.logger.Debug("event tickets reserved",
			zap.String("event_id", eventID),
			zap.String("ticket_type", ticketType),
			zap.Int64("quantity", quantity),
		)
		return nil
	case http.StatusNotFound:
		return ErrEventNotFound
	case http.StatusConflict:
		return ErrInsufficientTickets
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("event API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
