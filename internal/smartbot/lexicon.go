package smartbot

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon/*.yaml
var embeddedLexicon embed.FS

// categoryOrder is the fixed priority in which categories are checked.
// The first category containing any of a rule's keywords wins.
var categoryOrder = []string{
	"greeting", "thanks", "help", "pricing", "timing", "location", "contact",
}

// Lexicon holds the bilingual data tables the matcher and composer work
// from: typo corrections, synonym paraphrases, the profanity dictionary
// and canned per-category responses. Tables ship embedded in the binary
// and can be overridden from a directory so they stay versionable
// without recompilation.
type Lexicon struct {
	// Typos maps a canonical phrase (normalized) to known misspellings.
	Typos map[string][]string
	// Synonyms maps a phrase to interchangeable alternatives.
	Synonyms map[string][]string
	// Profanity maps language code ("en"/"ar") to banned words (normalized).
	Profanity map[string][]string
	// Warnings maps language code to profanity warnings.
	Warnings map[string][]string
	// Responses maps category → language → canned replies.
	Responses map[string]map[string][]string
	// Categories maps category name to its classification keywords.
	Categories map[string][]string
}

// LoadLexicon builds the lexicon from the embedded tables, with files in
// dir (when non-empty) taking precedence per table.
func LoadLexicon(dir string) (*Lexicon, error) {
	lex := &Lexicon{}

	if err := loadTable(dir, "typos.yaml", &lex.Typos); err != nil {
		return nil, err
	}
	if err := loadTable(dir, "synonyms.yaml", &lex.Synonyms); err != nil {
		return nil, err
	}
	var prof struct {
		Words    map[string][]string `yaml:"words"`
		Warnings map[string][]string `yaml:"warnings"`
	}
	if err := loadTable(dir, "profanity.yaml", &prof); err != nil {
		return nil, err
	}
	lex.Profanity = prof.Words
	lex.Warnings = prof.Warnings
	if err := loadTable(dir, "responses.yaml", &lex.Responses); err != nil {
		return nil, err
	}
	if err := loadTable(dir, "categories.yaml", &lex.Categories); err != nil {
		return nil, err
	}

	lex.normalize()
	return lex, nil
}

func loadTable(dir, name string, dst any) error {
	var data []byte
	var err error
	if dir != "" {
		if data, err = os.ReadFile(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read lexicon table %s: %w", name, err)
		}
	}
	if data == nil {
		if data, err = embeddedLexicon.ReadFile("lexicon/" + name); err != nil {
			return fmt.Errorf("embedded lexicon table %s: %w", name, err)
		}
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse lexicon table %s: %w", name, err)
	}
	return nil
}

// normalize folds the tables that participate in matching through the
// same normalization applied to incoming messages, so lookups compare
// like with like. Response texts are left untouched.
func (l *Lexicon) normalize() {
	l.Typos = normalizeTable(l.Typos)
	l.Categories = normalizeTable(l.Categories)
	for lang, words := range l.Profanity {
		out := make([]string, 0, len(words))
		for _, w := range words {
			out = append(out, Normalize(w, false))
		}
		l.Profanity[lang] = out
	}
}

func normalizeTable(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for key, vals := range in {
		nv := make([]string, 0, len(vals))
		for _, v := range vals {
			nv = append(nv, Normalize(v, false))
		}
		out[Normalize(key, false)] = nv
	}
	return out
}
