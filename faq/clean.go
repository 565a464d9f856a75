package faq

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// asciiFold decomposes accented letters, drops the combining marks and
// turns whatever is still outside ASCII into a space. Chained transformers
// keep internal buffers, so each call gets its own.
func asciiFold() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return ' '
			}
			return r
		}),
	)
}

// Clean prepares free text for fuzzy matching: markup tags are removed,
// text is folded to ASCII and whitespace runs collapse to single spaces.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = tagPattern.ReplaceAllString(text, " ")
	if folded, _, err := transform.String(asciiFold(), text); err == nil {
		text = folded
	}
	return strings.Join(strings.Fields(text), " ")
}
