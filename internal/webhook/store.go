package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a webhook id does not exist.
var ErrNotFound = errors.New("webhook not found")

// Store handles CRUD for the webhooks table. Registered endpoints
// survive restarts; delivery logs deliberately do not (see Buffer).
type Store struct {
	db *sql.DB
}

// NewStore prepares the webhooks table on the shared database handle.
func NewStore(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS webhooks (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		events TEXT NOT NULL,
		secret TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		retry_attempts INTEGER NOT NULL DEFAULT 3,
		retry_delay_ms INTEGER NOT NULL DEFAULT 1000,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create webhooks table: %w", err)
	}
	return &Store{db: db}, nil
}

// Create validates and inserts a new webhook, assigning an id when
// unset.
func (s *Store) Create(ctx context.Context, w *Webhook) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ID == "" {
		w.ID = NewWebhookID()
	}
	if w.RetryAttempts == 0 {
		w.RetryAttempts = 3
	}
	if w.RetryDelayMS == 0 {
		w.RetryDelayMS = 1000
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	events, _ := json.Marshal(w.Events)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhooks (id, url, events, secret, enabled, retry_attempts, retry_delay_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.URL, string(events), w.Secret, w.Enabled, w.RetryAttempts, w.RetryDelayMS, w.CreatedAt)
	return err
}

// Get returns the webhook with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Webhook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, events, secret, enabled, retry_attempts, retry_delay_ms, created_at
		FROM webhooks WHERE id = ?`, id)
	return scanWebhook(row)
}

// List returns all webhooks ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Webhook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, events, secret, enabled, retry_attempts, retry_delay_ms, created_at
		FROM webhooks ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hooks []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

// ListForEvent returns the enabled webhooks subscribed to an event.
func (s *Store) ListForEvent(ctx context.Context, event string) ([]*Webhook, error) {
	hooks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Webhook
	for _, w := range hooks {
		if w.Enabled && w.Subscribed(event) {
			out = append(out, w)
		}
	}
	return out, nil
}

// Update replaces the mutable fields of an existing webhook.
func (s *Store) Update(ctx context.Context, w *Webhook) error {
	if err := w.Validate(); err != nil {
		return err
	}
	events, _ := json.Marshal(w.Events)
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhooks SET url=?, events=?, secret=?, enabled=?, retry_attempts=?, retry_delay_ms=?
		WHERE id = ?`,
		w.URL, string(events), w.Secret, w.Enabled, w.RetryAttempts, w.RetryDelayMS, w.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a webhook. Immediate and unconditional.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebhook(row rowScanner) (*Webhook, error) {
	var w Webhook
	var events string
	err := row.Scan(&w.ID, &w.URL, &events, &w.Secret, &w.Enabled, &w.RetryAttempts, &w.RetryDelayMS, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(events), &w.Events); err != nil {
		return nil, fmt.Errorf("decode events for webhook %s: %w", w.ID, err)
	}
	return &w, nil
}
