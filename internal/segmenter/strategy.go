package segmenter

import (
	"regexp"
	"strings"
)

// Heading is a parsed chunk head.
type Heading struct {
	ID    string
	Title string
}

// Outcome reports what a strategy made of a candidate's text.
type Outcome int

const (
	// NoMatch means the strategy did not recognize an identifier.
	NoMatch Outcome = iota
	// Matched means the strategy produced a Heading.
	Matched
	// Rejected means an identifier was found but belongs to a reserved
	// section. Later strategies are not consulted.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Rejected:
		return "rejected"
	default:
		return "no_match"
	}
}

// Strategy is a pure text classifier for candidate headings.
type Strategy struct {
	Name  string
	Match func(text string) (Heading, Outcome)
}

// Classify tries strategies in order. The first Matched or Rejected outcome
// wins.
func Classify(strategies []Strategy, text string) (Heading, Outcome, string) {
	for _, s := range strategies {
		h, outcome := s.Match(text)
		if outcome != NoMatch {
			return h, outcome, s.Name
		}
	}
	return Heading{}, NoMatch, ""
}

// Labeled recognizes "<label> 1.2.3 Title", where the label is a fixed
// phrase such as "Success Criterion". Matching is case-insensitive and the
// whole text must fit the form.
func Labeled(label string) Strategy {
	fields := strings.Fields(label)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	re := regexp.MustCompile(`(?i)^\s*` + strings.Join(fields, `\s+`) + `\s+(\d+\.\d+\.\d+)\s+(.+?)\s*$`)

	return Strategy{
		Name: "labeled",
		Match: func(text string) (Heading, Outcome) {
			m := re.FindStringSubmatch(text)
			if m == nil {
				return Heading{}, NoMatch
			}
			return Heading{ID: m[1], Title: strings.TrimSpace(m[2])}, Matched
		},
	}
}

var dottedID = regexp.MustCompile(`\b(\d+\.\d+\.\d+)\b`)

// titleTrim is stripped from both ends of a fallback title.
const titleTrim = " :-–—"

// Fallback recognizes the first three-part dotted identifier anywhere in the
// text and takes the remainder as the title. Identifiers whose first
// component is a reserved section number are rejected, and so is a match
// with nothing left for a title.
func Fallback(reserved []string) Strategy {
	reservedSet := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		reservedSet[r] = true
	}

	return Strategy{
		Name: "fallback",
		Match: func(text string) (Heading, Outcome) {
			loc := dottedID.FindStringSubmatchIndex(text)
			if loc == nil {
				return Heading{}, NoMatch
			}
			id := text[loc[2]:loc[3]]
			if major, _, _ := strings.Cut(id, "."); reservedSet[major] {
				return Heading{ID: id}, Rejected
			}
			title := strings.TrimSpace(strings.Trim(text[loc[1]:], titleTrim))
			if title == "" {
				return Heading{}, NoMatch
			}
			return Heading{ID: id, Title: title}, Matched
		},
	}
}

// DefaultStrategies returns the labeled form followed by the fallback form.
func DefaultStrategies(label string, reserved []string) []Strategy {
	return []Strategy{Labeled(label), Fallback(reserved)}
}
