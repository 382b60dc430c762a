// Package orderapi содержит HTTP клиент Order Service — авторитетного
// источника для пересчёта проекции next-event.
package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NextEvent — ближайшее будущее оплаченное событие пользователя.
// Пустой EventID означает, что будущих оплаченных заказов нет.
type NextEvent struct {
	EventID        string
	EventTitle     string
	EventStartDate time.Time
}

// nextEventResponse — ответ Order Service; eventStartDate приходит строкой
// и пустой, когда будущих оплаченных заказов нет
type nextEventResponse struct {
	EventID        string `json:"eventId"`
	EventTitle     string `json:"eventTitle"`
	EventStartDate string `json:"eventStartDate"`
}

// Client — HTTP клиент Order Service
type Client struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт новый клиент Order Service
func NewClient(logger *zap.Logger, baseURL string) *Client {
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetNextEvent запрашивает ближайшее будущее оплаченное событие пользователя.
// Order Service отвечает 200 с пустыми полями, когда таких заказов нет.
func (c *Client) GetNextEvent(ctx context.Context, username string) (*NextEvent, error) {
	reqURL := fmt.Sprintf("%s/api/order/nextEvent/%s", c.baseURL, url.PathEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("order service next event request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("username", username),
		)
		return nil, fmt.Errorf("order service returned status %d: %s", resp.StatusCode, string(body))
	}

	var respBody nextEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode next event response: %w", err)
	}

	next := &NextEvent{
		EventID:    respBody.EventID,
		EventTitle: respBody.EventTitle,
	}
	if respBody.EventStartDate != "" {
		next.EventStartDate, err = time.Parse(time.RFC3339, respBody.EventStartDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse next event start date: %w", err)
		}
	}

	return next, nil
}
