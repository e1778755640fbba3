package smartbot

import (
	"strings"
	"testing"
)

func TestProfanityCheck(t *testing.T) {
	f := NewProfanityFilter(testLexicon(t))

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"clean english", "hello, can I get the price list?", false},
		{"clean arabic", "مرحبا، كم السعر؟", false},
		{"english profanity", "this is stupid", true},
		{"arabic profanity", "انت غبي", true},
		{"letter substitution evasion", "st0p being stup1d", true},
		{"symbol evasion", "$tupid service", true},
		{"uppercase profanity", "STUPID", true},
		{"profanity with punctuation", "idiot!", true},
		{"embedded in longer token", "youstupidthing", true},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Check(tt.text); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestProfanityCensor(t *testing.T) {
	f := NewProfanityFilter(testLexicon(t))

	censored, found := f.Censor("you stupid thing")
	if !found {
		t.Fatal("expected censoring")
	}
	if censored != "you ****** thing" {
		t.Errorf("censored = %q", censored)
	}

	clean, found := f.Censor("perfectly fine message")
	if found || clean != "perfectly fine message" {
		t.Errorf("clean text altered: %q found=%v", clean, found)
	}
}

func TestProfanityWarningLanguage(t *testing.T) {
	lex := testLexicon(t)
	f := NewProfanityFilter(lex)

	en := f.Warning(LangEnglish)
	if en == "" {
		t.Fatal("empty english warning")
	}
	var foundEN bool
	for _, w := range lex.Warnings[LangEnglish] {
		if w == en {
			foundEN = true
		}
	}
	if !foundEN {
		t.Errorf("warning %q not from the english table", en)
	}

	ar := f.Warning(LangArabic)
	var foundAR bool
	for _, w := range lex.Warnings[LangArabic] {
		if w == ar {
			foundAR = true
		}
	}
	if !foundAR {
		t.Errorf("warning %q not from the arabic table", ar)
	}

	// Unknown language falls back to English.
	fr := f.Warning("fr")
	if !strings.Contains(strings.Join(lex.Warnings[LangEnglish], "|"), fr) {
		t.Errorf("fallback warning %q not english", fr)
	}
}
