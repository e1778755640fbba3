package campaign

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks a campaign through its lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Recipient is one delivery target. Vars feed the message template,
// with "name" always available.
type Recipient struct {
	Phone string            `json:"phone"`
	Name  string            `json:"name,omitempty"`
	Vars  map[string]string `json:"vars,omitempty"`
}

// Campaign is a bulk send: one Liquid template rendered per recipient.
type Campaign struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Template    string      `json:"template"`
	Recipients  []Recipient `json:"recipients"`
	Status      Status      `json:"status"`
	SentCount   int         `json:"sent_count"`
	FailedCount int         `json:"failed_count"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Validate checks a campaign before it is persisted.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("campaign name is required")
	}
	if strings.TrimSpace(c.Template) == "" {
		return fmt.Errorf("campaign template is required")
	}
	if len(c.Recipients) == 0 {
		return fmt.Errorf("campaign needs at least one recipient")
	}
	for i, r := range c.Recipients {
		if strings.TrimSpace(r.Phone) == "" {
			return fmt.Errorf("recipient %d has no phone number", i)
		}
	}
	return nil
}
