package smartbot

import "strings"

// arabicLetterMap canonicalizes Arabic letter variants so that spelling
// differences common in chat text compare equal. Only Arabic code points
// are touched; Latin input passes through unchanged.
var arabicLetterMap = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ٱ': 'ا',
	'ى': 'ي',
	'ئ': 'ي',
	'ة': 'ه',
	'ؤ': 'و',
}

// isArabicDiacritic reports whether r is a harakat/tanween mark or the
// tatweel filler, all of which are stripped before matching.
func isArabicDiacritic(r rune) bool {
	return (r >= 0x064B && r <= 0x0655) || r == 0x0640 || r == 0x0670
}

// Normalize prepares text for matching: case folding (unless the rule is
// case sensitive), collapsing runs of 3+ repeated characters down to 2
// ("hiiii" → "hii"), and Arabic diacritic stripping plus letter
// canonicalization. Arabic normalization is applied unconditionally; it
// is a no-op on pure-English input.
func Normalize(text string, caseSensitive bool) string {
	if !caseSensitive {
		text = strings.ToLower(text)
	}

	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	repeat := 0
	for _, r := range text {
		if isArabicDiacritic(r) {
			continue
		}
		if mapped, ok := arabicLetterMap[r]; ok {
			r = mapped
		}
		if r == prev {
			repeat++
			if repeat >= 2 {
				continue
			}
		} else {
			prev = r
			repeat = 0
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Tokenize splits normalized text into whitespace-delimited tokens.
func Tokenize(text string) []string {
	return strings.Fields(text)
}
