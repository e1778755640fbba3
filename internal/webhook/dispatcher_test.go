package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Store, *Buffer) {
	t.Helper()
	store := newTestStore(t)
	logs := NewBuffer(100)
	d := NewDispatcher(store, logs, Options{
		Timeout:         2 * time.Second,
		DefaultAttempts: 3,
		DefaultDelay:    10 * time.Millisecond,
	})
	return d, store, logs
}

func TestDispatchDeliversSignedPayload(t *testing.T) {
	var mu sync.Mutex
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d, store, logs := newTestDispatcher(t)
	wh := testWebhook()
	wh.URL = srv.URL
	if err := store.Create(context.Background(), wh); err != nil {
		t.Fatal(err)
	}

	d.Dispatch(context.Background(), "message_received", map[string]string{"from": "123"})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if gotBody == nil {
		t.Fatal("endpoint never called")
	}
	if got := gotHeaders.Get("X-WaQtor-Event"); got != "message_received" {
		t.Errorf("event header = %q", got)
	}
	if got := gotHeaders.Get("User-Agent"); got != "WaQtor-Webhook/1.0" {
		t.Errorf("user agent = %q", got)
	}
	sig := gotHeaders.Get("X-WaQtor-Signature")
	if !VerifySignature(gotBody, sig, wh.Secret) {
		t.Errorf("signature %q does not verify against body", sig)
	}

	var env Envelope
	if err := json.Unmarshal(gotBody, &env); err != nil {
		t.Fatal(err)
	}
	if env.Event != "message_received" {
		t.Errorf("envelope event = %q", env.Event)
	}
	if _, err := time.Parse(time.RFC3339, env.Timestamp); err != nil {
		t.Errorf("envelope timestamp %q not RFC3339: %v", env.Timestamp, err)
	}

	entries := logs.List(wh.ID, 0)
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != StatusSuccess || e.HTTPStatus != 200 || e.Attempt != 1 || e.Response != "ok" {
		t.Errorf("log entry = %+v", e)
	}
}

func TestDispatchRetriesWithBackoff(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, store, logs := newTestDispatcher(t)
	wh := testWebhook()
	wh.URL = srv.URL
	wh.RetryAttempts = 3
	wh.RetryDelayMS = 20
	if err := store.Create(context.Background(), wh); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	d.Dispatch(context.Background(), "message_received", nil)
	d.Wait()
	elapsed := time.Since(start)

	mu.Lock()
	if calls != 3 {
		t.Errorf("endpoint called %d times, want 3", calls)
	}
	mu.Unlock()

	// 20ms, then 40ms between the three attempts.
	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed %v, delivery did not back off", elapsed)
	}

	entries := logs.List(wh.ID, 0)
	if len(entries) != 3 {
		t.Fatalf("log entries = %d, want one per attempt", len(entries))
	}
	// Newest first: final attempt comes back first.
	if entries[0].Status != StatusFailedFinal || entries[0].Attempt != 3 {
		t.Errorf("final entry = %+v", entries[0])
	}
	for _, e := range entries[1:] {
		if e.Status != StatusFailed {
			t.Errorf("intermediate entry status = %q", e.Status)
		}
		if e.HTTPStatus != 500 || e.Error == "" {
			t.Errorf("intermediate entry = %+v", e)
		}
	}
}

func TestDispatchSkipsUnsubscribed(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	d, store, logs := newTestDispatcher(t)
	wh := testWebhook()
	wh.URL = srv.URL
	wh.Events = []string{"session_qr"}
	if err := store.Create(context.Background(), wh); err != nil {
		t.Fatal(err)
	}

	d.Dispatch(context.Background(), "message_received", nil)
	d.Wait()

	if called {
		t.Error("unsubscribed webhook was invoked")
	}
	if logs.Len() != 0 {
		t.Errorf("log entries = %d, want 0", logs.Len())
	}
}

func TestDispatcherTestDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-WaQtor-Event"); got != "webhook_test" {
			t.Errorf("event header = %q", got)
		}
		w.Write([]byte("received"))
	}))
	defer srv.Close()

	d, _, logs := newTestDispatcher(t)
	wh := testWebhook()
	wh.ID = "wh_test"
	wh.URL = srv.URL

	entry := d.Test(context.Background(), wh)
	if entry.Status != StatusSuccess || entry.Event != "webhook_test" || entry.Response != "received" {
		t.Errorf("test entry = %+v", entry)
	}
	if logs.Len() != 1 {
		t.Errorf("log entries = %d, want 1", logs.Len())
	}
}

func TestDispatcherTestReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d, _, _ := newTestDispatcher(t)
	wh := testWebhook()
	wh.ID = "wh_test"
	wh.URL = srv.URL

	entry := d.Test(context.Background(), wh)
	if entry.Status != StatusFailedFinal || entry.HTTPStatus != 502 || entry.Error == "" {
		t.Errorf("test entry = %+v", entry)
	}
	// Test deliveries never retry.
	if entry.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", entry.Attempt)
	}
}
