package smartbot

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// evasionMap folds common letter-substitution evasions ("sh1t", "$tupid")
// back to plain letters before dictionary lookup.
var evasionMap = strings.NewReplacer(
	"@", "a",
	"0", "o",
	"1", "i",
	"3", "e",
	"$", "s",
	"5", "s",
	"!", "i",
	"+", "t",
)

// ProfanityFilter checks messages against the bilingual profanity
// dictionary and produces censored text for logging.
type ProfanityFilter struct {
	lex *Lexicon

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewProfanityFilter builds a filter over the given lexicon.
func NewProfanityFilter(lex *Lexicon) *ProfanityFilter {
	return &ProfanityFilter{
		lex: lex,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Check reports whether text contains a dictionary entry in any
// language, including letter-substitution evasions.
func (f *ProfanityFilter) Check(text string) bool {
	for _, token := range Tokenize(foldEvasions(text)) {
		if f.tokenProfane(token) {
			return true
		}
	}
	return false
}

// Censor replaces profane tokens with asterisks, preserving the rest of
// the text. The boolean reports whether anything was censored.
func (f *ProfanityFilter) Censor(text string) (string, bool) {
	if text == "" {
		return text, false
	}
	words := strings.Split(text, " ")
	censored := false
	for i, w := range words {
		folded := Tokenize(foldEvasions(w))
		for _, token := range folded {
			if f.tokenProfane(token) {
				words[i] = strings.Repeat("*", len([]rune(w)))
				censored = true
				break
			}
		}
	}
	if !censored {
		return text, false
	}
	return strings.Join(words, " "), true
}

// Warning returns a random warning in the given language, falling back
// to English when no localized warnings exist.
func (f *ProfanityFilter) Warning(lang string) string {
	warnings := f.lex.Warnings[lang]
	if len(warnings) == 0 {
		warnings = f.lex.Warnings[LangEnglish]
	}
	if len(warnings) == 0 {
		return "Please keep the conversation respectful."
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return warnings[f.rnd.Intn(len(warnings))]
}

// tokenProfane checks one normalized token against every language's
// word list. Exact token equality avoids false positives on embedded
// fragments; longer entries also match as substrings to catch
// concatenations.
func (f *ProfanityFilter) tokenProfane(token string) bool {
	token = strings.Trim(token, ".,!?؟:;\"'()[]")
	if token == "" {
		return false
	}
	for _, words := range f.lex.Profanity {
		for _, w := range words {
			if token == w {
				return true
			}
			if len([]rune(w)) >= 5 && strings.Contains(token, w) {
				return true
			}
		}
	}
	return false
}

func foldEvasions(text string) string {
	return Normalize(evasionMap.Replace(strings.ToLower(text)), false)
}
