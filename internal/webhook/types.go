package webhook

import (
	"fmt"
	"net/url"
	"time"
)

// Webhook is a registered delivery endpoint.
type Webhook struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Events        []string  `json:"events"`
	Secret        string    `json:"secret"`
	Enabled       bool      `json:"enabled"`
	RetryAttempts int       `json:"retry_attempts"`
	RetryDelayMS  int       `json:"retry_delay_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Subscribed reports whether the webhook listens for the given event.
func (w *Webhook) Subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Validate checks the fields required before a webhook is stored.
func (w *Webhook) Validate() error {
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid webhook URL %q", w.URL)
	}
	if len(w.Events) == 0 {
		return fmt.Errorf("at least one subscribed event is required")
	}
	if w.Secret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	if w.RetryAttempts < 0 || w.RetryDelayMS < 0 {
		return fmt.Errorf("retry settings must not be negative")
	}
	return nil
}

// NewWebhookID returns a time-based opaque webhook identifier.
func NewWebhookID() string {
	return fmt.Sprintf("wh_%d", time.Now().UnixNano())
}

// DeliveryStatus is the outcome of one delivery attempt.
type DeliveryStatus string

const (
	StatusSuccess     DeliveryStatus = "success"
	StatusFailed      DeliveryStatus = "failed"
	StatusFailedFinal DeliveryStatus = "failed_final"
)

// DeliveryLog records one delivery attempt. Logs live in process memory
// only and are lost on restart.
type DeliveryLog struct {
	ID         string         `json:"id"`
	WebhookID  string         `json:"webhook_id"`
	Event      string         `json:"event"`
	URL        string         `json:"url"`
	Attempt    int            `json:"attempt"`
	Timestamp  time.Time      `json:"timestamp"`
	Status     DeliveryStatus `json:"status"`
	HTTPStatus int            `json:"http_status,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Response   string         `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Envelope is the JSON body POSTed to webhook endpoints.
type Envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"` // ISO-8601
	Data      any    `json:"data"`
}
