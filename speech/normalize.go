package speech

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	codeFenceRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`]*`")
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmphasisRe = regexp.MustCompile(`[*_~#>]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize prepares message text for synthesis: code blocks and markdown
// decoration are removed, characters unsuitable for speech are dropped, and
// whitespace is collapsed. Normalization happens before cache-key derivation
// so visually different renderings of the same utterance share one artifact.
func Normalize(text string) string {
	text = codeFenceRe.ReplaceAllString(text, " ")
	text = inlineCodeRe.ReplaceAllString(text, " ")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdEmphasisRe.ReplaceAllString(text, "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case strings.ContainsRune(".,;:!?'\"()-%$€£", r):
			b.WriteRune(r)
			// Everything else (emoji, box drawing, control chars) is dropped.
		}
	}

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(b.String(), " "))
}
