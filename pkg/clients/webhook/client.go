package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/banjarejo/greensmart/internal/config"
)

// Notifier posts operator-visible messages to an external channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Client is a resty-backed Notifier posting JSON payloads to a configured
// webhook URL (Slack-compatible shape).
type Client struct {
	httpClient *resty.Client
	url        string
}

// NewClient builds a webhook client from configuration.
func NewClient(cfg config.WebhookConfig) *Client {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &Client{
		httpClient: restyClient,
		url:        cfg.URL,
	}
}

// Notify posts the message. With no URL configured the call is a no-op so the
// operator channel stays optional.
func (c *Client) Notify(ctx context.Context, text string) error {
	if c.url == "" {
		return nil
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("webhook error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return nil
}
