package rules

import (
	"fmt"
	"time"
)

// MatchType selects how a keyword is compared against the incoming message.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startsWith"
	MatchEndsWith   MatchType = "endsWith"
)

// Valid reports whether mt is one of the supported match types.
func (mt MatchType) Valid() bool {
	switch mt {
	case MatchExact, MatchContains, MatchStartsWith, MatchEndsWith:
		return true
	}
	return false
}

// AutoReplyRule is a configured keyword → reply rule.
type AutoReplyRule struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Keywords       []string   `json:"keywords"`
	Reply          string     `json:"reply"`
	Enabled        bool       `json:"enabled"`
	MatchType      MatchType  `json:"match_type"`
	CaseSensitive  bool       `json:"case_sensitive"`
	FuzzyThreshold int        `json:"fuzzy_threshold,omitempty"` // 0 means use the engine default
	TypingDelayMS  int        `json:"typing_delay_ms,omitempty"` // 0 means auto-computed
	CreatedAt      time.Time  `json:"created_at"`
	LastTriggered  *time.Time `json:"last_triggered"`
	TriggerCount   int64      `json:"trigger_count"`
}

// Validate checks the fields that must be present before a rule is
// stored. An unset match type defaults to contains.
func (r *AutoReplyRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			return fmt.Errorf("keywords must not be empty strings")
		}
	}
	if r.Reply == "" {
		return fmt.Errorf("reply template is required")
	}
	if r.MatchType == "" {
		r.MatchType = MatchContains
	}
	if !r.MatchType.Valid() {
		return fmt.Errorf("invalid match type %q", r.MatchType)
	}
	if r.FuzzyThreshold < 0 || r.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold must be between 0 and 100")
	}
	return nil
}

// NewRuleID returns a time-based opaque rule identifier.
// Uniqueness relies on the generation scheme, not on collision checks.
func NewRuleID() string {
	return fmt.Sprintf("rule_%d", time.Now().UnixNano())
}

// ReplyLogEntry is a denormalized record of one auto-reply send.
// Rule edits after the fact do not retroactively update history.
type ReplyLogEntry struct {
	RuleID         string    `json:"rule_id"`
	RuleName       string    `json:"rule_name"`
	Keyword        string    `json:"keyword"`
	Recipient      string    `json:"recipient"`
	Message        string    `json:"message"`                   // censored text as delivered to the log
	OriginalText   string    `json:"original_text,omitempty"`   // pre-censor text, only when censoring changed it
	ProfanityFound bool      `json:"profanity_found"`
	Timestamp      time.Time `json:"timestamp"`
}
