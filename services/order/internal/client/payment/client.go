// Package payment - HTTP клиент внешнего платёжного шлюза
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidPayload - платёжные данные не прошли валидацию, запрос к шлюзу
	// даже не отправлялся
	ErrInvalidPayload = errors.New("invalid payment payload")
	// ErrPaymentFailed - шлюз отклонил платёж
	ErrPaymentFailed = errors.New("payment failed")
)

// expPattern - срок действия карты в формате MM/YY
var expPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)

// Payload - данные платежа
type Payload struct {
	CC     string  `json:"cc"`
	Holder string  `json:"holder"`
	CVV    int64   `json:"cvv"`
	Exp    string  `json:"exp"`
	Charge float64 `json:"charge"`
}

// Validate проверяет платёжные данные перед отправкой в шлюз.
// Фронтенд валидирует то же самое, но шлюзу доверять ввод нельзя.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.CC) == "" {
		return fmt.Errorf("%w: cc is required", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.Holder) == "" {
		return fmt.Errorf("%w: holder is required", ErrInvalidPayload)
	}
	if p.CVV < 100 || p.CVV > 999 {
		return fmt.Errorf("%w: cvv must have 3 digits", ErrInvalidPayload)
	}
	if !expPattern.MatchString(p.Exp) {
		return fmt.Errorf("%w: exp must be MM/YY", ErrInvalidPayload)
	}
	if p.Charge <= 0 {
		return fmt.Errorf("%w: charge must be positive", ErrInvalidPayload)
	}
	return nil
}

// Gateway определяет интерфейс платёжного шлюза
type Gateway interface {
	Pay(ctx context.Context, payload Payload) error
	Refund(ctx context.Context, orderID string) error
}

// Client реализует Gateway поверх HTTP API шлюза
type Client struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

// NewClient создаёт новый клиент платёжного шлюза
func NewClient(logger *zap.Logger, baseURL string) *Client {
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Pay проводит платёж. ErrInvalidPayload и ErrPaymentFailed - постоянные
// ошибки, повторять такой запрос бессмысленно.
func (c *Client) Pay(ctx context.Context, payload Payload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	if err := c.post(ctx, "/pay", payload); err != nil {
		return err
	}
	c.logger.Debug("payment processed",
		zap.String("holder", payload.Holder),
		zap.Float64("charge", payload.Charge),
	)
	return nil
}

// Refund возвращает деньги по заказу
func (c *Client) Refund(ctx context.Context, orderID string) error {
	err := c.post(ctx, "/refund", map[string]string{"orderId": orderID})
	if err != nil {
		return err
	}
	c.logger.Info("refund processed", zap.String("order_id", orderID))
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payment gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrPaymentFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
