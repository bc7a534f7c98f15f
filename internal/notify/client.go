// Package notify предоставляет клиент для внешнего шлюза уведомлений клиентов.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client инкапсулирует HTTP-взаимодействие со шлюзом уведомлений.
// Нулевой или ненастроенный клиент молча игнорирует отправку: уведомления —
// необязательный побочный эффект.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// OfferEvent описывает событие по персональному предложению клиента.
type OfferEvent struct {
	OfferID       uuid.UUID `json:"offer_id"`
	CustomerPhone string    `json:"customer_phone"`
	RewardType    string    `json:"reward_type"`
	RewardValue   string    `json:"reward_value"`
}

// NewClient создаёт HTTP-клиент для обращения к шлюзу уведомлений по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// SendOfferCreated уведомляет клиента об открытии персонального предложения.
func (c *Client) SendOfferCreated(ctx context.Context, event OfferEvent) error {
	return c.post(ctx, "/api/events/offer-created", event)
}

// SendOfferRedeemed уведомляет клиента о погашении персонального предложения.
func (c *Client) SendOfferRedeemed(ctx context.Context, event OfferEvent) error {
	return c.post(ctx, "/api/events/offer-redeemed", event)
}

func (c *Client) post(ctx context.Context, path string, event OfferEvent) error {
	if c == nil || c.baseURL == "" {
		return nil
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
