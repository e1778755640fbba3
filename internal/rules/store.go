package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/waqtor/waqtor-server/internal/pkg/logger"
)

// ErrNotFound is returned when a rule id does not exist in the store.
var ErrNotFound = errors.New("rule not found")

// Store owns the auto-reply rule collection. It is the single authority
// for rule state, consumed by both the HTTP layer and the message
// orchestrator. In-memory state is authoritative; the backing JSON file
// is rewritten wholesale on every mutation and a failed write leaves the
// in-memory copy untouched.
type Store struct {
	mu    sync.RWMutex
	path  string
	rules []*AutoReplyRule
}

// NewStore loads the rule collection from path. A missing file yields an
// empty store; a corrupt file is an error (never silently drop rules).
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	if err := json.Unmarshal(data, &s.rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return s, nil
}

// List returns a snapshot of all rules in storage order.
func (s *Store) List() []*AutoReplyRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AutoReplyRule, len(s.rules))
	for i, r := range s.rules {
		cp := *r
		out[i] = &cp
	}
	return out
}

// ListEnabled returns a snapshot of the enabled rules in storage order.
func (s *Store) ListEnabled() []*AutoReplyRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AutoReplyRule
	for _, r := range s.rules {
		if r.Enabled {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

// Get returns a copy of the rule with the given id.
func (s *Store) Get(id string) (*AutoReplyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Create validates and appends a new rule. ID and CreatedAt are assigned
// here when unset.
func (s *Store) Create(r *AutoReplyRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = NewRuleID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules = append(s.rules, &cp)
	s.persistLocked()
	return nil
}

// Update replaces the mutable fields of an existing rule. Trigger
// bookkeeping (count, last triggered) is preserved.
func (s *Store) Update(id string, upd *AutoReplyRule) (*AutoReplyRule, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			r.Name = upd.Name
			r.Keywords = upd.Keywords
			r.Reply = upd.Reply
			r.Enabled = upd.Enabled
			r.MatchType = upd.MatchType
			r.CaseSensitive = upd.CaseSensitive
			r.FuzzyThreshold = upd.FuzzyThreshold
			r.TypingDelayMS = upd.TypingDelayMS
			s.persistLocked()
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Toggle flips the enabled flag and returns the new state.
func (s *Store) Toggle(id string) (*AutoReplyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			r.Enabled = !r.Enabled
			s.persistLocked()
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a rule. Deletion is immediate and unconditional.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			s.persistLocked()
			return nil
		}
	}
	return ErrNotFound
}

// IncrementTrigger records one successful auto-reply send for the rule.
// Callers must invoke this only after the reply was actually dispatched;
// a send failure must never reach this method.
func (s *Store) IncrementTrigger(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			now := time.Now().UTC()
			r.TriggerCount++
			r.LastTriggered = &now
			s.persistLocked()
			return nil
		}
	}
	return ErrNotFound
}

// ResetTrigger zeroes the trigger counter. Explicit admin action only.
func (s *Store) ResetTrigger(id string) (*AutoReplyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			r.TriggerCount = 0
			r.LastTriggered = nil
			s.persistLocked()
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Count returns total and enabled rule counts.
func (s *Store) Count() (total, enabled int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total = len(s.rules)
	for _, r := range s.rules {
		if r.Enabled {
			enabled++
		}
	}
	return total, enabled
}

// persistLocked rewrites the backing file. Write failures are logged and
// swallowed: in-memory state stays authoritative until the next
// successful write.
func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	if err := writeJSONAtomic(s.path, s.rules); err != nil {
		logger.Error("rules persist failed", "path", s.path, "error", err.Error())
	}
}

// writeJSONAtomic marshals v and replaces path via temp-file rename so a
// crash mid-write never leaves a truncated file behind.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
