package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store handles CRUD for the campaigns table.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	template TEXT NOT NULL,
	recipients TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	sent_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	started_at TIMESTAMP,
	completed_at TIMESTAMP
);
`

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create campaigns table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, c *Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	c.CreatedAt = time.Now().UTC()
	recipientsJSON, err := json.Marshal(c.Recipients)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, template, recipients, status, sent_count, failed_count, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
		c.ID.String(), c.Name, c.Template, string(recipientsJSON), c.Status, c.CreatedAt)
	return err
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, template, recipients, status, sent_count, failed_count, created_at, started_at, completed_at
		FROM campaigns WHERE id = ?`, id.String())
	return scanCampaign(row)
}

func (s *Store) List(ctx context.Context) ([]*Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, template, recipients, status, sent_count, failed_count, created_at, started_at, completed_at
		FROM campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// SetStatus moves a campaign between lifecycle states, stamping the
// matching timestamp.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	var query string
	switch status {
	case StatusRunning:
		query = `UPDATE campaigns SET status = ?, started_at = ? WHERE id = ?`
	case StatusCompleted, StatusFailed, StatusCancelled:
		query = `UPDATE campaigns SET status = ?, completed_at = ? WHERE id = ?`
	default:
		res, err := s.db.ExecContext(ctx,
			`UPDATE campaigns SET status = ? WHERE id = ?`, status, id.String())
		return checkAffected(res, err)
	}
	res, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id.String())
	return checkAffected(res, err)
}

// UpdateCounts records delivery progress.
func (s *Store) UpdateCounts(ctx context.Context, id uuid.UUID, sent, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET sent_count = ?, failed_count = ? WHERE id = ?`,
		sent, failed, id.String())
	return checkAffected(res, err)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id.String())
	return checkAffected(res, err)
}

// ErrNotFound is returned when a campaign id does not exist.
var ErrNotFound = fmt.Errorf("campaign not found")

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*Campaign, error) {
	var c Campaign
	var idStr, recipientsJSON string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&idStr, &c.Name, &c.Template, &recipientsJSON, &c.Status,
		&c.SentCount, &c.FailedCount, &c.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse campaign id: %w", err)
	}
	if err := json.Unmarshal([]byte(recipientsJSON), &c.Recipients); err != nil {
		return nil, fmt.Errorf("unmarshal recipients: %w", err)
	}
	if startedAt.Valid {
		c.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}
