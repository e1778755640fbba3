package smartbot

import "unicode"

// Language codes used across the engine.
const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

// DetectLanguage classifies text as Arabic or English by counting
// Arabic-script vs Latin-script letters. Mixed input goes to the
// majority; input with no letters of either script defaults to Arabic.
func DetectLanguage(text string) string {
	var arabic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.IsLetter(r) && r < 0x250:
			latin++
		}
	}
	if latin > arabic {
		return LangEnglish
	}
	return LangArabic
}
