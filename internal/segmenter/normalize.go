package segmenter

import (
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[\t\p{Zs}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	levelMarker     = regexp.MustCompile(`(?i)\bLevel\s+(A{1,3})\b`)
)

// NormalizeText collapses runs of horizontal whitespace to one space, caps
// consecutive newlines at two and trims the result.
func NormalizeText(s string) string {
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// InferLevel returns the first conformance level marker in text ("A", "AA"
// or "AAA"), or "" when there is none.
func InferLevel(text string) string {
	m := levelMarker.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
