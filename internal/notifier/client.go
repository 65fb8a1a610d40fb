// Package notifier предоставляет клиент внешнего шлюза уведомлений.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Priority описывает приоритет уведомления.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification описывает одно уведомление для доставки получателю.
type Notification struct {
	Recipient string   `json:"recipient"`
	Kind      string   `json:"kind"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Priority  Priority `json:"priority"`
	Link      string   `json:"link,omitempty"`
}

// Client инкапсулирует HTTP-взаимодействие со шлюзом уведомлений. Доставка
// выполняется по принципу fire-and-forget: вызывающий код не зависит от её
// результата.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент шлюза уведомлений по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// Notify отправляет уведомление шлюзу. Для nil-клиента вызов — no-op,
// чтобы сервис работал и без настроенного шлюза.
func (c *Client) Notify(ctx context.Context, n Notification) error {
	if c == nil || c.baseURL == "" {
		return nil
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/notifications", bytes.NewReader(body))
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
