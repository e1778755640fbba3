package rules

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func entry(i int) ReplyLogEntry {
	return ReplyLogEntry{
		RuleID:    fmt.Sprintf("rule_%d", i),
		RuleName:  "greeting",
		Keyword:   "hello",
		Recipient: "966501234567@s.whatsapp.net",
		Message:   fmt.Sprintf("reply %d", i),
		Timestamp: time.Now().UTC(),
	}
}

func TestHistoryAppendAndList(t *testing.T) {
	h, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		h.Append(entry(i))
	}
	got := h.List()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Message != "reply 0" || got[2].Message != "reply 2" {
		t.Errorf("order wrong: first=%q last=%q", got[0].Message, got[2].Message)
	}
}

func TestHistoryCapsAtHundred(t *testing.T) {
	h, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 150; i++ {
		h.Append(entry(i))
	}
	if h.Len() != 100 {
		t.Fatalf("len = %d, want exactly 100", h.Len())
	}
	got := h.List()
	if got[0].Message != "reply 50" {
		t.Errorf("oldest surviving entry = %q, want reply 50", got[0].Message)
	}
	if got[99].Message != "reply 149" {
		t.Errorf("newest entry = %q, want reply 149", got[99].Message)
	}
}

func TestHistorySurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := NewHistoryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		h.Append(entry(i))
	}

	reloaded, err := NewHistoryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 5 {
		t.Errorf("reloaded len = %d, want 5", reloaded.Len())
	}
}

func TestHistoryClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := NewHistoryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	h.Append(entry(1))
	h.Clear()

	if h.Len() != 0 {
		t.Errorf("len after clear = %d", h.Len())
	}
	reloaded, err := NewHistoryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 0 {
		t.Errorf("clear not persisted, reloaded len = %d", reloaded.Len())
	}
}
