package smartbot

import (
	"regexp"
	"strings"

	"github.com/waqtor/waqtor-server/internal/rules"
)

// MatchMethod tags which strategy produced a match.
type MatchMethod string

const (
	MethodMode         MatchMethod = "mode"
	MethodFuzzy        MatchMethod = "fuzzy"
	MethodWordBoundary MatchMethod = "word_boundary"
	MethodCorrected    MatchMethod = "typo_corrected"
	MethodLegacy       MatchMethod = "legacy"
)

// Match is the tagged result of a successful rule match.
type Match struct {
	Rule       *rules.AutoReplyRule
	Keyword    string  // the rule keyword that matched
	Confidence float64 // 0–100
	Method     MatchMethod
	Corrected  bool   // true when a typo-dictionary variant matched
	Typo       string // the variant that actually matched the message
	Canonical  string // the canonical form the variant corrects to
}

// Matcher decides whether an incoming message matches a configured rule.
// Strategies are tried in a fixed order per keyword; across all rules and
// keywords the highest confidence wins, ties broken by first-found order.
type Matcher struct {
	lex              *Lexicon
	defaultThreshold float64
}

// NewMatcher builds a matcher over the given lexicon. defaultThreshold is
// the fuzzy similarity floor used by rules without their own threshold.
func NewMatcher(lex *Lexicon, defaultThreshold int) *Matcher {
	if defaultThreshold <= 0 {
		defaultThreshold = 70
	}
	return &Matcher{lex: lex, defaultThreshold: float64(defaultThreshold)}
}

// Match runs the enhanced strategy chain over every enabled rule, falling
// back to the legacy mode-only comparison when the enhanced path yields
// nothing. Returns false for empty input or when no rule matches.
func (m *Matcher) Match(message string, ruleset []*rules.AutoReplyRule) (*Match, bool) {
	if strings.TrimSpace(message) == "" {
		return nil, false
	}

	var best *Match
	for _, rule := range ruleset {
		if !rule.Enabled {
			continue
		}
		if match, ok := m.matchRule(message, rule); ok {
			// Strict inequality keeps first-found order on ties.
			if best == nil || match.Confidence > best.Confidence {
				best = match
			}
		}
	}
	if best != nil {
		return best, true
	}

	// Legacy fallback path: mode-only comparison, no fuzziness.
	for _, rule := range ruleset {
		if !rule.Enabled {
			continue
		}
		for _, kw := range rule.Keywords {
			msg, keyword := message, kw
			if !rule.CaseSensitive {
				msg = strings.ToLower(msg)
				keyword = strings.ToLower(keyword)
			}
			if modeMatches(strings.TrimSpace(msg), strings.TrimSpace(keyword), rule.MatchType) {
				return &Match{
					Rule:       rule,
					Keyword:    kw,
					Confidence: 100,
					Method:     MethodLegacy,
				}, true
			}
		}
	}
	return nil, false
}

// matchRule finds the best match for a single rule across its keywords.
func (m *Matcher) matchRule(message string, rule *rules.AutoReplyRule) (*Match, bool) {
	msg := Normalize(message, rule.CaseSensitive)
	threshold := m.defaultThreshold
	if rule.FuzzyThreshold > 0 {
		threshold = float64(rule.FuzzyThreshold)
	}

	var best *Match
	consider := func(cand *Match) {
		if cand != nil && (best == nil || cand.Confidence > best.Confidence) {
			best = cand
		}
	}

	for _, kw := range rule.Keywords {
		keyword := Normalize(kw, rule.CaseSensitive)
		if keyword == "" {
			continue
		}

		if cand := matchKeyword(msg, keyword, rule.MatchType, threshold); cand != nil {
			cand.Rule = rule
			cand.Keyword = kw
			consider(cand)
			continue
		}

		// Known-typo dictionary: when the keyword relates to a canonical
		// phrase, its misspelled variants are tried through the same
		// strategy chain.
		for canonical, variants := range m.lex.Typos {
			if keyword != canonical && !strings.Contains(canonical, keyword) {
				continue
			}
			for _, variant := range variants {
				if cand := matchKeyword(msg, variant, rule.MatchType, threshold); cand != nil {
					cand.Rule = rule
					cand.Keyword = kw
					cand.Method = MethodCorrected
					cand.Corrected = true
					cand.Typo = variant
					cand.Canonical = canonical
					consider(cand)
					break
				}
			}
		}
	}
	return best, best != nil
}

// matchKeyword applies the strategy chain to one normalized keyword:
// mode check, then fuzzy token similarity, then whole-word boundary.
// First success wins.
func matchKeyword(msg, keyword string, mt rules.MatchType, threshold float64) *Match {
	if modeMatches(msg, keyword, mt) {
		return &Match{Confidence: 100, Method: MethodMode}
	}

	for _, token := range Tokenize(msg) {
		if sim := Similarity(token, keyword); sim >= threshold {
			return &Match{Confidence: sim, Method: MethodFuzzy}
		}
	}

	if wholeWordMatches(msg, keyword) {
		return &Match{Confidence: 95, Method: MethodWordBoundary}
	}
	return nil
}

func modeMatches(msg, keyword string, mt rules.MatchType) bool {
	switch mt {
	case rules.MatchExact:
		return msg == keyword
	case rules.MatchContains:
		return strings.Contains(msg, keyword)
	case rules.MatchStartsWith:
		return strings.HasPrefix(msg, keyword)
	case rules.MatchEndsWith:
		return strings.HasSuffix(msg, keyword)
	}
	return false
}

// wholeWordMatches checks for the keyword delimited by non-letter,
// non-digit boundaries. Go's \b is ASCII-only, so Arabic keywords need
// explicit Unicode boundary classes.
func wholeWordMatches(msg, keyword string) bool {
	pattern := `(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(keyword) + `(?:$|[^\p{L}\p{N}])`
	matched, err := regexp.MatchString(pattern, msg)
	return err == nil && matched
}
