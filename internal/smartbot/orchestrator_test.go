package smartbot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/waqtor/waqtor-server/internal/rules"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendText(ctx context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatID+"|"+text)
	return nil
}

func setupOrchestrator(t *testing.T, sender Sender) (*Orchestrator, *rules.Store, *rules.HistoryStore) {
	t.Helper()
	dir := t.TempDir()
	store, err := rules.NewStore(filepath.Join(dir, "rules.json"))
	if err != nil {
		t.Fatal(err)
	}
	history, err := rules.NewHistoryStore(filepath.Join(dir, "history.json"))
	if err != nil {
		t.Fatal(err)
	}
	lex := testLexicon(t)
	o := NewOrchestrator(store, history, NewMatcher(lex, 70), NewComposer(lex),
		NewProfanityFilter(lex), sender)
	return o, store, history
}

func greetingRule(t *testing.T, store *rules.Store) *rules.AutoReplyRule {
	t.Helper()
	r := &rules.AutoReplyRule{
		Name:          "greeting",
		Keywords:      []string{"hello"},
		Reply:         "Welcome!",
		Enabled:       true,
		MatchType:     rules.MatchContains,
		TypingDelayMS: 1, // keep tests fast
	}
	if err := store.Create(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func inbound(body string) IncomingMessage {
	return IncomingMessage{ChatID: "966501234567@s.whatsapp.net", Sender: "966501234567", Body: body}
}

func TestHandleMessageRepliesAndRecords(t *testing.T) {
	sender := &fakeSender{}
	o, store, history := setupOrchestrator(t, sender)
	r := greetingRule(t, store)

	if err := o.HandleMessage(context.Background(), inbound("hello")); err != nil {
		t.Fatal(err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	got, err := store.Get(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TriggerCount != 1 {
		t.Errorf("trigger count = %d, want 1", got.TriggerCount)
	}
	if got.LastTriggered == nil {
		t.Error("last triggered not set")
	}
	entries := history.List()
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if entries[0].RuleID != r.ID || entries[0].Keyword != "hello" {
		t.Errorf("history entry = %+v", entries[0])
	}
}

func TestHandleMessageFailedSendLeavesNoTrace(t *testing.T) {
	sender := &fakeSender{err: errors.New("socket closed")}
	o, store, history := setupOrchestrator(t, sender)
	r := greetingRule(t, store)

	err := o.HandleMessage(context.Background(), inbound("hello"))
	if err == nil {
		t.Fatal("expected send error to propagate")
	}

	got, _ := store.Get(r.ID)
	if got.TriggerCount != 0 {
		t.Errorf("trigger count = %d, want 0 after failed send", got.TriggerCount)
	}
	if got.LastTriggered != nil {
		t.Error("last triggered set despite failed send")
	}
	if history.Len() != 0 {
		t.Errorf("history has %d entries, want 0", history.Len())
	}
}

func TestHandleMessageSkipsOwnAndStatus(t *testing.T) {
	sender := &fakeSender{}
	o, store, _ := setupOrchestrator(t, sender)
	greetingRule(t, store)

	own := inbound("hello")
	own.FromMe = true
	status := inbound("hello")
	status.IsStatus = true
	empty := inbound("")

	for _, msg := range []IncomingMessage{own, status, empty} {
		if err := o.HandleMessage(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(sender.sent))
	}
}

func TestHandleMessageUnmatchedIsSilent(t *testing.T) {
	sender := &fakeSender{}
	o, store, history := setupOrchestrator(t, sender)
	greetingRule(t, store)

	if err := o.HandleMessage(context.Background(), inbound("totally unrelated message")); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 || history.Len() != 0 {
		t.Errorf("sent=%d history=%d, want 0/0", len(sender.sent), history.Len())
	}
}

func TestHandleMessageProfanityWarnsWithoutMatching(t *testing.T) {
	sender := &fakeSender{}
	o, store, history := setupOrchestrator(t, sender)
	r := greetingRule(t, store)

	// Contains both a keyword and profanity; the warning must win.
	if err := o.HandleMessage(context.Background(), inbound("hello you stupid bot")); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1 warning", len(sender.sent))
	}
	if strings.Contains(sender.sent[0], "Welcome") {
		t.Errorf("rule reply sent instead of warning: %q", sender.sent[0])
	}
	got, _ := store.Get(r.ID)
	if got.TriggerCount != 0 {
		t.Errorf("trigger count = %d, want 0", got.TriggerCount)
	}
	if history.Len() != 0 {
		t.Errorf("history has %d entries, want 0", history.Len())
	}
}

func TestStats(t *testing.T) {
	sender := &fakeSender{}
	o, store, _ := setupOrchestrator(t, sender)
	greetingRule(t, store)

	disabled := &rules.AutoReplyRule{
		Name: "off", Keywords: []string{"bye"}, Reply: "bye", MatchType: rules.MatchContains,
	}
	if err := store.Create(disabled); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := o.HandleMessage(context.Background(), inbound(fmt.Sprintf("hello %d", i))); err != nil {
			t.Fatal(err)
		}
	}

	st := o.Stats()
	if st.TotalRules != 2 || st.EnabledRules != 1 {
		t.Errorf("rules = %d/%d, want 2/1", st.TotalRules, st.EnabledRules)
	}
	if st.TotalTriggers != 3 {
		t.Errorf("triggers = %d, want 3", st.TotalTriggers)
	}
	if st.HistorySize != 3 {
		t.Errorf("history = %d, want 3", st.HistorySize)
	}
	if st.LastTriggered == nil {
		t.Error("last triggered missing")
	}
}
