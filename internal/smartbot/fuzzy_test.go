package smartbot

import "testing"

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"hello", "hello", 0},
		{"hello", "helo", 1},
		{"price", "pric", 1},
		{"price", "prise", 1},
		{"kitten", "sitting", 3},
		{"مرحبا", "مرحبه", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"hello", "helo", 80},
		{"price", "pric", 80},
		{"hello", "hello", 100},
		{"", "", 100},
		{"abcd", "wxyz", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %.1f, want %.1f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarityCountsRunesNotBytes(t *testing.T) {
	// Five runes vs four, one deletion: 80% regardless of UTF-8 width.
	if got := Similarity("مرحبا", "مرحب"); got != 80 {
		t.Errorf("Similarity = %.1f, want 80", got)
	}
}
