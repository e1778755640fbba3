package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/waqtor/waqtor-server/internal/pkg/logger"
)

// historyCap bounds the reply log. Oldest entries are evicted first
// (FIFO, not by age).
const historyCap = 100

// HistoryStore is the append-only auto-reply log. The backing JSON file
// is rewritten wholesale on save and truncated to the most recent 100
// entries.
type HistoryStore struct {
	mu      sync.RWMutex
	path    string
	entries []ReplyLogEntry
}

// NewHistoryStore loads reply history from path. A missing file yields
// an empty history.
func NewHistoryStore(path string) (*HistoryStore, error) {
	h := &HistoryStore{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if err := json.Unmarshal(data, &h.entries); err != nil {
		return nil, fmt.Errorf("parse history file %s: %w", path, err)
	}
	if len(h.entries) > historyCap {
		h.entries = h.entries[len(h.entries)-historyCap:]
	}
	return h, nil
}

// Append records one reply, evicting the oldest entry beyond the cap.
func (h *HistoryStore) Append(e ReplyLogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > historyCap {
		h.entries = h.entries[len(h.entries)-historyCap:]
	}
	h.persistLocked()
}

// List returns a snapshot of the history, oldest first.
func (h *HistoryStore) List() []ReplyLogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ReplyLogEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of stored entries.
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear removes all history entries.
func (h *HistoryStore) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.persistLocked()
}

func (h *HistoryStore) persistLocked() {
	if h.path == "" {
		return
	}
	entries := h.entries
	if entries == nil {
		entries = []ReplyLogEntry{}
	}
	if err := writeJSONAtomic(h.path, entries); err != nil {
		logger.Error("history persist failed", "path", h.path, "error", err.Error())
	}
}
