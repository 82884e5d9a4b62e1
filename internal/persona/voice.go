package persona

import (
	"strings"
	"unicode"
)

const (
	VoiceShimmer = "shimmer"
	VoiceNova    = "nova"
)

// VoiceFor picks the OpenAI voice that suits the dominant trait.
func VoiceFor(prefs Preferences) string {
	switch prefs.Dominant() {
	case TraitSoft, TraitEmotionalSupportive:
		return VoiceShimmer
	default:
		return VoiceNova
	}
}

// StripEmojis removes pictographs, dingbats and private-use glyphs that the
// avatar speech engines read out literally, then collapses whitespace.
func StripEmojis(text string) string {
	if text == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.FieldsFunc(cleaned, unicode.IsSpace), " ")
}

func isEmoji(r rune) bool {
	switch {
	case r == 0x200D, r == 0xFE0F, r == 0x20E3:
		// joiner, variation selector, keycap
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0xE0020 && r <= 0xE007F:
		// tag sequences used by flag emojis
		return true
	}
	return false
}
