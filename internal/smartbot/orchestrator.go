package smartbot

import (
	"context"
	"fmt"
	"time"

	"github.com/waqtor/waqtor-server/internal/pkg/logger"
	"github.com/waqtor/waqtor-server/internal/rules"
)

// Sender dispatches outgoing messages. Implemented by the WhatsApp
// transport; swapped for a fake in tests.
type Sender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// IncomingMessage is the subset of an inbound WhatsApp message the
// engine cares about.
type IncomingMessage struct {
	ChatID   string // where the reply goes
	Sender   string
	Body     string
	FromMe   bool
	IsStatus bool
}

// Orchestrator wires inbound messages to the matcher and composer,
// manages trigger bookkeeping and reply history. Per message the
// pipeline is: received → profanity check → (blocked | matched |
// unmatched).
type Orchestrator struct {
	store     *rules.Store
	history   *rules.HistoryStore
	matcher   *Matcher
	composer  *Composer
	profanity *ProfanityFilter
	sender    Sender
}

// NewOrchestrator assembles the auto-reply engine. All collaborators are
// injected; the orchestrator owns no global state.
func NewOrchestrator(store *rules.Store, history *rules.HistoryStore, matcher *Matcher, composer *Composer, profanity *ProfanityFilter, sender Sender) *Orchestrator {
	return &Orchestrator{
		store:     store,
		history:   history,
		matcher:   matcher,
		composer:  composer,
		profanity: profanity,
		sender:    sender,
	}
}

// HandleMessage runs one inbound message through the pipeline. Errors
// are returned for the caller to log; they never mutate rule state or
// history (the trigger counter moves only after a successful send).
func (o *Orchestrator) HandleMessage(ctx context.Context, msg IncomingMessage) error {
	if msg.FromMe || msg.IsStatus || msg.Body == "" {
		return nil
	}

	// Profanity short-circuits rule matching entirely.
	if o.profanity.Check(msg.Body) {
		warning := o.profanity.Warning(DetectLanguage(msg.Body))
		if err := o.sender.SendText(ctx, msg.ChatID, warning); err != nil {
			return fmt.Errorf("send profanity warning: %w", err)
		}
		logger.Info("profanity warning sent", "chat", msg.ChatID)
		return nil
	}

	match, ok := o.matcher.Match(msg.Body, o.store.ListEnabled())
	if !ok {
		// No reply, no log.
		return nil
	}

	reply := o.composer.Compose(msg.Body, match.Rule)

	// Simulated typing before the send.
	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if err := o.sender.SendText(ctx, msg.ChatID, reply.Text); err != nil {
		return fmt.Errorf("send auto-reply for rule %s: %w", match.Rule.ID, err)
	}

	// Bookkeeping strictly after the send succeeded.
	if err := o.store.IncrementTrigger(match.Rule.ID); err != nil {
		logger.Warn("trigger increment failed", "rule", match.Rule.ID, "error", err.Error())
	}
	o.recordHistory(match, msg, reply)

	logger.Info("auto-reply sent",
		"rule", match.Rule.ID,
		"keyword", match.Keyword,
		"method", string(match.Method),
		"confidence", fmt.Sprintf("%.0f", match.Confidence),
		"category", reply.Category,
		"chat", msg.ChatID,
	)
	return nil
}

func (o *Orchestrator) recordHistory(match *Match, msg IncomingMessage, reply Reply) {
	censored, found := o.profanity.Censor(reply.Text)
	entry := rules.ReplyLogEntry{
		RuleID:         match.Rule.ID,
		RuleName:       match.Rule.Name,
		Keyword:        match.Keyword,
		Recipient:      msg.ChatID,
		Message:        censored,
		ProfanityFound: found,
		Timestamp:      time.Now().UTC(),
	}
	if found {
		entry.OriginalText = reply.Text
	}
	o.history.Append(entry)
}

// Stats summarizes engine state for the dashboard.
type Stats struct {
	TotalRules    int        `json:"total_rules"`
	EnabledRules  int        `json:"enabled_rules"`
	TotalTriggers int64      `json:"total_triggers"`
	HistorySize   int        `json:"history_size"`
	LastTriggered *time.Time `json:"last_triggered"`
}

// Stats aggregates trigger counters across all rules.
func (o *Orchestrator) Stats() Stats {
	return ComputeStats(o.store, o.history)
}

// ComputeStats aggregates trigger counters straight from the stores, so
// stats stay available when the engine itself is disabled.
func ComputeStats(store *rules.Store, history *rules.HistoryStore) Stats {
	var st Stats
	for _, r := range store.List() {
		st.TotalRules++
		if r.Enabled {
			st.EnabledRules++
		}
		st.TotalTriggers += r.TriggerCount
		if r.LastTriggered != nil && (st.LastTriggered == nil || r.LastTriggered.After(*st.LastTriggered)) {
			st.LastTriggered = r.LastTriggered
		}
	}
	st.HistorySize = history.Len()
	return st
}
