package tokens

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sanitize applies NFKC normalization, strips control and surrogate
// characters and collapses whitespace runs. It returns the cleaned
// text and the number of characters removed by the control-strip pass.
func Sanitize(text string) (string, int) {
	if text == "" {
		return "", 0
	}

	normalized := norm.NFKC.String(text)

	var kept strings.Builder
	kept.Grow(len(normalized))
	removed := 0
	for _, r := range normalized {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			kept.WriteRune(r)
		case unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cs, r):
			removed++
		default:
			kept.WriteRune(r)
		}
	}

	// Collapse every whitespace run, including the line breaks kept
	// above, to a single space so the tokenizer sees stable input.
	collapsed := strings.Join(strings.Fields(kept.String()), " ")
	return collapsed, removed
}
