package graph

import (
	"regexp"
	"strings"
)

var (
	scriptPattern   = regexp.MustCompile(`(?is)<script.*?</script>`)
	stylePattern    = regexp.MustCompile(`(?is)<style.*?</style>`)
	brPattern       = regexp.MustCompile(`(?i)<br\s*/?>`)
	closePPattern   = regexp.MustCompile(`(?i)</p>`)
	tagPattern      = regexp.MustCompile(`<[^>]+>`)
	trailingSpaces  = regexp.MustCompile(`[ \t]+\n`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
)

// StripHTML converts an HTML body to plain text good enough for summaries:
// scripts and styles removed, paragraph breaks kept as newlines.
func StripHTML(input string) string {
	out := scriptPattern.ReplaceAllString(input, " ")
	out = stylePattern.ReplaceAllString(out, " ")
	out = brPattern.ReplaceAllString(out, "\n")
	out = closePPattern.ReplaceAllString(out, "\n")
	out = tagPattern.ReplaceAllString(out, " ")
	out = trailingSpaces.ReplaceAllString(out, "\n")
	out = blankRunPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// CompactText trims text to maxChars (floor 200, ceiling hardMax) and
// reports whether anything was cut.
func CompactText(text string, maxChars, hardMax int) (string, bool) {
	if maxChars <= 0 {
		maxChars = hardMax
	}
	if maxChars > hardMax {
		maxChars = hardMax
	}
	if maxChars < 200 {
		maxChars = 200
	}
	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	runes := []rune(normalized)
	if len(runes) <= maxChars {
		return normalized, false
	}
	return string(runes[:maxChars]), true
}
