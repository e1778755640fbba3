package smartbot

import "testing"

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain english", "hello how are you", LangEnglish},
		{"plain arabic", "مرحبا كيف حالك", LangArabic},
		{"arabic majority", "ok مرحبا كيف حالك اليوم", LangArabic},
		{"english majority", "hello there مرحبا", LangEnglish},
		{"digits and punctuation only", "123 !!! ??", LangArabic},
		{"empty", "", LangArabic},
		{"emoji only", "👍🙂", LangArabic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.text); got != tt.want {
				t.Errorf("DetectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
