package webhook

import (
	"sync"

	"github.com/google/uuid"
)

// Buffer is the in-memory delivery log: a bounded ring shared by all
// webhooks, oldest entries evicted first. Intentionally not persisted;
// it exists for operational visibility only.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	entries  []DeliveryLog
}

// NewBuffer creates a delivery log bounded at capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{capacity: capacity}
}

// Append records one delivery attempt, assigning its id.
func (b *Buffer) Append(entry DeliveryLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
}

// List returns entries newest first, optionally filtered by webhook id,
// up to limit (0 means all).
func (b *Buffer) List(webhookID string, limit int) []DeliveryLog {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []DeliveryLog
	for i := len(b.entries) - 1; i >= 0; i-- {
		e := b.entries[i]
		if webhookID != "" && e.WebhookID != webhookID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// CountByStatus tallies entries per delivery status.
func (b *Buffer) CountByStatus() map[DeliveryStatus]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[DeliveryStatus]int)
	for _, e := range b.entries {
		counts[e.Status]++
	}
	return counts
}
