package segmenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabeled(t *testing.T) {
	s := Labeled("Success Criterion")

	tests := []struct {
		text    string
		want    Heading
		outcome Outcome
	}{
		{"Success Criterion 2.4.11 Focus Not Obscured (Minimum)", Heading{"2.4.11", "Focus Not Obscured (Minimum)"}, Matched},
		{"  success   criterion 1.1.1   Non-text Content  ", Heading{"1.1.1", "Non-text Content"}, Matched},
		{"Success Criterion 5.2.1 Reserved Looking", Heading{"5.2.1", "Reserved Looking"}, Matched},
		{"Success Criterion 1.1.1", Heading{}, NoMatch},
		{"See Success Criterion 1.1.1 Non-text Content", Heading{}, NoMatch},
		{"Guideline 1.1 Text Alternatives", Heading{}, NoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, outcome := s.Match(tt.text)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallback(t *testing.T) {
	s := Fallback([]string{"5"})

	tests := []struct {
		text    string
		want    Heading
		outcome Outcome
	}{
		{"2.4.11 Focus Not Obscured (Minimum)", Heading{"2.4.11", "Focus Not Obscured (Minimum)"}, Matched},
		{"SC 1.4.3: Contrast (Minimum)", Heading{"1.4.3", "Contrast (Minimum)"}, Matched},
		{"1.2.1 — Audio-only and Video-only", Heading{"1.2.1", "Audio-only and Video-only"}, Matched},
		{"5.2.1 Conformance Level", Heading{ID: "5.2.1"}, Rejected},
		{"1.2.3", Heading{}, NoMatch},
		{"1.2.3 :- ", Heading{}, NoMatch},
		{"Principle 1 Perceivable", Heading{}, NoMatch},
		{"Version 2.2", Heading{}, NoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, outcome := s.Match(tt.text)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Precedence(t *testing.T) {
	strategies := DefaultStrategies("Success Criterion", []string{"5"})

	h, outcome, name := Classify(strategies, "Success Criterion 1.3.1 Info and Relationships")
	assert.Equal(t, Matched, outcome)
	assert.Equal(t, "labeled", name)
	assert.Equal(t, "Info and Relationships", h.Title)

	h, outcome, name = Classify(strategies, "1.3.1 Info and Relationships")
	assert.Equal(t, Matched, outcome)
	assert.Equal(t, "fallback", name)
	assert.Equal(t, "1.3.1", h.ID)

	_, outcome, name = Classify(strategies, "5.1.1 Interpreting Normative Requirements")
	assert.Equal(t, Rejected, outcome)
	assert.Equal(t, "fallback", name)

	_, outcome, name = Classify(strategies, "Abstract")
	assert.Equal(t, NoMatch, outcome)
	assert.Empty(t, name)
}

func TestClassify_RejectStopsLaterStrategies(t *testing.T) {
	always := Strategy{Name: "always", Match: func(string) (Heading, Outcome) {
		return Heading{ID: "9.9.9", Title: "x"}, Matched
	}}
	strategies := []Strategy{Fallback([]string{"5"}), always}

	_, outcome, _ := Classify(strategies, "5.1.1 Reserved")
	assert.Equal(t, Rejected, outcome)

	h, outcome, name := Classify(strategies, "no id here")
	assert.Equal(t, Matched, outcome)
	assert.Equal(t, "always", name)
	assert.Equal(t, "9.9.9", h.ID)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "matched", Matched.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "no_match", NoMatch.String())
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"  a \t  b  ":           "a b",
		"a\n\n\n\nb":            "a\n\nb",
		"a\n\nb":                "a\n\nb",
		"a\u00a0\u00a0b":        "a b",
		"\n\n head \n body \n": "head \n body",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeText(in), "%q", in)
	}
}

func TestInferLevel(t *testing.T) {
	tests := map[string]string{
		"(Level AA)":                "AA",
		"Level A\nLevel AAA":        "A",
		"level aaa":                 "AAA",
		"Level AAAA":                "",
		"no marker here":            "",
		"Levels of conformance: AA": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, InferLevel(in), "%q", in)
	}
}
