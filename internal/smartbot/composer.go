package smartbot

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/waqtor/waqtor-server/internal/pkg/logger"
	"github.com/waqtor/waqtor-server/internal/rules"
)

// Reply is a composed auto-reply ready for sending.
type Reply struct {
	Text     string
	Language string
	Category string
	Delay    time.Duration // simulated typing time before the send
}

var replyEmojis = []string{"🙂", "👍", "✨", "🙏"}

// placeholderRe matches unresolved {placeholder} tokens in templates.
var placeholderRe = regexp.MustCompile(`\{[a-zA-Z_]+\}`)

// Composer turns a matched rule into a language-appropriate reply and
// varies the wording across repeated triggers of the same rule. The
// per-rule usage histogram lives in memory only; a restart resets it.
type Composer struct {
	lex *Lexicon

	mu    sync.Mutex
	usage map[string]map[string]int // rule id → variant text → times used
	rnd   *rand.Rand
}

// NewComposer builds a composer over the given lexicon.
func NewComposer(lex *Lexicon) *Composer {
	return &Composer{
		lex:   lex,
		usage: make(map[string]map[string]int),
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Compose selects and varies the reply for a matched rule. It never
// fails: when no canned response exists for the detected category and
// language the rule's own template is used as-is.
func (c *Composer) Compose(message string, rule *rules.AutoReplyRule) Reply {
	lang := DetectLanguage(message)
	category := c.DetectCategory(rule.Keywords)

	base := c.pickTemplate(rule, category, lang)
	base = c.stripPlaceholders(base)

	text := c.selectVariant(rule.ID, c.buildVariants(base))

	return Reply{
		Text:     text,
		Language: lang,
		Category: category,
		Delay:    typingDelay(rule, text),
	}
}

// DetectCategory classifies a rule's keyword set into a response
// category. Categories are checked in a fixed priority order; the first
// one containing any of the keywords wins, defaulting to greeting.
func (c *Composer) DetectCategory(keywords []string) string {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		normalized = append(normalized, Normalize(kw, false))
	}

	for _, category := range categoryOrder {
		for _, catKw := range c.lex.Categories[category] {
			for _, kw := range normalized {
				if kw == catKw || strings.Contains(kw, catKw) || strings.Contains(catKw, kw) {
					return category
				}
			}
		}
	}
	return "greeting"
}

func (c *Composer) pickTemplate(rule *rules.AutoReplyRule, category, lang string) string {
	canned := c.lex.Responses[category][lang]
	if len(canned) == 0 {
		// Silent fallback: missing translations never fail the pipeline.
		return rule.Reply
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return canned[c.rnd.Intn(len(canned))]
}

func (c *Composer) stripPlaceholders(text string) string {
	stripped := placeholderRe.ReplaceAllString(text, "")
	if stripped != text {
		logger.Debug("stripped unresolved placeholders from reply template")
		stripped = strings.Join(strings.Fields(stripped), " ")
	}
	return stripped
}

// buildVariants generates the full variation space for a reply:
// punctuation variants, emoji suffixes, a midpoint line-break split for
// long text, and synonym paraphrases. The synonym tables carry both
// languages, so the variant space needs no language hint.
func (c *Composer) buildVariants(text string) []string {
	if text == "" {
		return []string{""}
	}
	seen := map[string]bool{text: true}
	variants := []string{text}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	lastRune, _ := utf8.DecodeLastRuneInString(text)
	if !strings.ContainsRune("!.؟?", lastRune) {
		add(text + "!")
		add(text + ".")
	}
	for _, emoji := range replyEmojis {
		add(text + " " + emoji)
	}
	if split := splitNearMidpoint(text); split != "" {
		add(split)
	}
	for phrase, alts := range c.lex.Synonyms {
		idx := indexFold(text, phrase)
		if idx < 0 {
			continue
		}
		for _, alt := range alts {
			add(text[:idx] + alt + text[idx+len(phrase):])
		}
	}
	return variants
}

// splitNearMidpoint breaks replies longer than 50 characters into two
// lines on the word boundary closest to the midpoint. Returns "" when
// the text is short or has no usable boundary.
func splitNearMidpoint(text string) string {
	if len([]rune(text)) <= 50 {
		return ""
	}
	mid := len(text) / 2
	left := strings.LastIndex(text[:mid], " ")
	right := strings.Index(text[mid:], " ")
	cut := -1
	switch {
	case left < 0 && right < 0:
		return ""
	case left < 0:
		cut = mid + right
	case right < 0:
		cut = left
	case mid-left <= right:
		cut = left
	default:
		cut = mid + right
	}
	return text[:cut] + "\n" + text[cut+1:]
}

// indexFold finds phrase in text case-insensitively. A byte-offset
// search on the lowered strings is safe here because lowering never
// changes byte offsets for the scripts in the synonym tables.
func indexFold(text, phrase string) int {
	return strings.Index(strings.ToLower(text), strings.ToLower(phrase))
}

// selectVariant picks the variant least used for this rule so repeated
// triggers do not produce identical replies. Ties break randomly.
func (c *Composer) selectVariant(ruleID string, variants []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	hist := c.usage[ruleID]
	if hist == nil {
		hist = make(map[string]int)
		c.usage[ruleID] = hist
	}

	minUsed := -1
	var pool []string
	for _, v := range variants {
		n := hist[v]
		switch {
		case minUsed < 0 || n < minUsed:
			minUsed = n
			pool = pool[:0]
			pool = append(pool, v)
		case n == minUsed:
			pool = append(pool, v)
		}
	}

	chosen := pool[c.rnd.Intn(len(pool))]
	hist[chosen]++
	return chosen
}

// typingDelay computes the simulated typing wait: the rule's fixed delay
// when configured, otherwise 2s base plus length-scaled time at roughly
// 150 characters per minute, with the scaled part capped at 5s.
func typingDelay(rule *rules.AutoReplyRule, reply string) time.Duration {
	if rule.TypingDelayMS > 0 {
		return time.Duration(rule.TypingDelayMS) * time.Millisecond
	}
	scaled := time.Duration(len([]rune(reply))) * 60 * time.Second / 150
	if scaled > 5*time.Second {
		scaled = 5 * time.Second
	}
	return 2*time.Second + scaled
}
