package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/waqtor/waqtor-server/internal/pkg/logger"
)

const (
	signatureHeader = "X-WaQtor-Signature"
	eventHeader     = "X-WaQtor-Event"
	userAgent       = "WaQtor-Webhook/1.0"

	// responseBodyLimit bounds how much of a response we keep in logs.
	responseBodyLimit = 4 * 1024
)

// Dispatcher fans events out to subscribed webhooks. Deliveries run
// concurrently and independently; retries within one delivery run
// sequentially to respect backoff. Callers of Dispatch never observe
// delivery failures; outcomes land in the delivery log only.
type Dispatcher struct {
	store  *Store
	logs   *Buffer
	client *http.Client

	timeout         time.Duration
	defaultAttempts int
	defaultDelay    time.Duration

	wg sync.WaitGroup
}

// Options configures a Dispatcher. Zero values fall back to the
// documented defaults (10s timeout, 3 attempts, 1s base delay).
type Options struct {
	Timeout         time.Duration
	DefaultAttempts int
	DefaultDelay    time.Duration
}

// NewDispatcher builds a dispatcher over the webhook store and delivery
// log buffer.
func NewDispatcher(store *Store, logs *Buffer, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.DefaultAttempts <= 0 {
		opts.DefaultAttempts = 3
	}
	if opts.DefaultDelay <= 0 {
		opts.DefaultDelay = time.Second
	}
	return &Dispatcher{
		store:           store,
		logs:            logs,
		client:          &http.Client{Timeout: opts.Timeout},
		timeout:         opts.Timeout,
		defaultAttempts: opts.DefaultAttempts,
		defaultDelay:    opts.DefaultDelay,
	}
}

// Dispatch delivers an event to every enabled webhook subscribed to it.
// Fan-out is concurrent; the call returns once deliveries are started.
// There is no cancellation of an in-flight delivery: each runs to
// success or retry exhaustion regardless of the caller's context.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, data any) {
	hooks, err := d.store.ListForEvent(ctx, event)
	if err != nil {
		logger.Error("webhook lookup failed", "event", event, "error", err.Error())
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(Envelope{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		logger.Error("webhook payload marshal failed", "event", event, "error", err.Error())
		return
	}

	for _, wh := range hooks {
		d.wg.Add(1)
		go func(wh *Webhook) {
			defer d.wg.Done()
			d.deliver(wh, event, body)
		}(wh)
	}
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown
// and in tests.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// deliver POSTs the signed payload with bounded sequential retries.
// Every attempt, including intermediate and final failures,
// produces exactly one log entry.
func (d *Dispatcher) deliver(wh *Webhook, event string, body []byte) {
	attempts := wh.RetryAttempts
	if attempts <= 0 {
		attempts = d.defaultAttempts
	}
	baseDelay := time.Duration(wh.RetryDelayMS) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = d.defaultDelay
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		entry := DeliveryLog{
			WebhookID: wh.ID,
			Event:     event,
			URL:       wh.URL,
			Attempt:   attempt,
			Timestamp: time.Now().UTC(),
		}

		status, respBody, duration, err := d.post(context.Background(), wh, event, body)
		if err == nil {
			entry.Status = StatusSuccess
			entry.HTTPStatus = status
			entry.DurationMS = duration.Milliseconds()
			entry.Response = respBody
			d.logs.Append(entry)
			return
		}

		entry.HTTPStatus = status
		entry.Error = err.Error()
		if attempt == attempts {
			entry.Status = StatusFailedFinal
			d.logs.Append(entry)
			logger.Warn("webhook delivery exhausted retries",
				"webhook", wh.ID, "event", event, "attempts", attempts)
			return
		}
		entry.Status = StatusFailed
		d.logs.Append(entry)

		// Exponential backoff: baseDelay × 2^(attempt−1).
		time.Sleep(baseDelay * time.Duration(1<<(attempt-1)))
	}
}

// post performs a single signed delivery attempt.
func (d *Dispatcher) post(ctx context.Context, wh *Webhook, event string, body []byte) (status int, respBody string, duration time.Duration, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, GenerateSignature(body, wh.Secret))
	req.Header.Set(eventHeader, event)
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := d.client.Do(req)
	duration = time.Since(start)
	if err != nil {
		return 0, "", duration, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, "", duration, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, string(data), duration, nil
}

// Test delivers a synthetic event to one webhook synchronously, with a
// single attempt, and returns the log entry for the caller. The entry is
// also appended to the delivery log.
func (d *Dispatcher) Test(ctx context.Context, wh *Webhook) DeliveryLog {
	body, _ := json.Marshal(Envelope{
		Event:     "webhook_test",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      map[string]string{"message": "WaQtor webhook test delivery"},
	})

	entry := DeliveryLog{
		WebhookID: wh.ID,
		Event:     "webhook_test",
		URL:       wh.URL,
		Attempt:   1,
		Timestamp: time.Now().UTC(),
	}
	status, respBody, duration, err := d.post(ctx, wh, "webhook_test", body)
	if err != nil {
		entry.Status = StatusFailedFinal
		entry.HTTPStatus = status
		entry.Error = err.Error()
	} else {
		entry.Status = StatusSuccess
		entry.HTTPStatus = status
		entry.DurationMS = duration.Milliseconds()
		entry.Response = respBody
	}
	d.logs.Append(entry)
	return entry
}
