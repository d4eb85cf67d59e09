package segmenter_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/document"
	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/segmenter"
)

const base = "https://www.w3.org/TR/WCAG22/"

var provenance = chunk.Provenance{DocSet: "wcag22", Source: "wcag_spec", Normativity: "normative", Version: "2.2"}

const twoHeadings = `<html><body>
<h4>Success Criterion 1.2.3 Example Title</h4>
<p>Level AA</p>
<p>First body paragraph.</p>
<p>Second body paragraph.</p>
<h4>Success Criterion 1.2.4 Next Title</h4>
<p>Other body.</p>
</body></html>`

const wcagLike = `<html><body>
<header><h2>W3C Recommendation 9.9.9 draft</h2><p>Level AAA header noise</p></header>
<nav id="toc"><ol><li>Success Criterion 1.2.4 Next Title</li></ol></nav>
<section id="perceivable"><h2>1 Perceivable</h2>
  <section id="sc-123">
    <h4>Success Criterion 1.2.3 Example Title</h4>
    <p class="conformance-level">(Level AA)</p>
    <p>Body   one.</p>
    <ul><li>Item <p>nested</p></li></ul>
    <dl><dt>Note</dt><dd>Definition text.</dd></dl>
  </section>
  <section id="next">
    <h4 id="h-124">1.2.4 — Next Title</h4>
    <p>Level A</p>
    <blockquote>Quoted.</blockquote>
  </section>
</section>
<section id="conformance"><h2>5 Conformance</h2>
  <h3>5.2.1 Conformance Level</h3>
  <p>Conformance body.</p>
  <h3>Success Criterion 1.2.3 Example Title</h3>
  <p>Duplicate body.</p>
</section>
<h3>Success Criterion 2.2.2 Lonely</h3>
<footer><p>Footer text</p></footer>
</body></html>`

func segment(t *testing.T, html string) segmenter.Result {
	t.Helper()
	doc, err := document.Parse(strings.NewReader(html), document.Options{SkipTags: []string{"nav", "header", "footer"}})
	require.NoError(t, err)
	return segmenter.New(segmenter.Options{BaseURL: base, Provenance: provenance}, nil).Segment(doc)
}

func ids(chunks []chunk.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}

func TestSegment_TwoHeadings(t *testing.T) {
	res := segment(t, twoHeadings)

	require.Len(t, res.Chunks, 2)
	first, second := res.Chunks[0], res.Chunks[1]

	assert.Equal(t, "1.2.3", first.ID)
	assert.Equal(t, "Example Title", first.Title)
	assert.Equal(t, "AA", first.Level)
	assert.NotContains(t, first.Text, "1.2.4")
	assert.Equal(t, "Success Criterion 1.2.3 Example Title\nLevel AA\nFirst body paragraph.\nSecond body paragraph.", first.Text)

	assert.Equal(t, "1.2.4", second.ID)
	assert.Equal(t, "", second.Level)
	assert.Equal(t, "Success Criterion 1.2.4 Next Title\nOther body.", second.Text)
}

func TestSegment_WCAGLikeDocument(t *testing.T) {
	res := segment(t, wcagLike)

	require.Equal(t, []string{"1.2.3", "1.2.4", "2.2.2"}, ids(res.Chunks))

	sc123 := res.Chunks[0]
	assert.Equal(t, "Success Criterion 1.2.3 Example Title\n(Level AA)\nBody one.\nItem nested\nNote\nDefinition text.", sc123.Text)
	assert.Equal(t, "AA", sc123.Level)
	assert.Equal(t, base+"#sc-123", sc123.URL)
	assert.Equal(t, provenance, sc123.Provenance)

	sc124 := res.Chunks[1]
	assert.Equal(t, "Next Title", sc124.Title)
	assert.Equal(t, "A", sc124.Level)
	assert.Equal(t, base+"#h-124", sc124.URL)
	assert.Equal(t, "1.2.4 — Next Title\nLevel A\nQuoted.", sc124.Text, "stops at the next h2")

	lonely := res.Chunks[2]
	assert.Equal(t, "Success Criterion 2.2.2 Lonely", lonely.Text, "footer is skipped")
	assert.Equal(t, "", lonely.Level)
	assert.Equal(t, base, lonely.URL)

	d := res.Diagnostics
	assert.Equal(t, 8, d.Candidates)
	assert.Equal(t, 4, d.Recognized)
	assert.Equal(t, 1, d.Reserved)
	assert.Equal(t, 3, d.ParseMisses)
	assert.Equal(t, []string{"1.2.3"}, d.Duplicates)
	assert.Equal(t, 3, d.Emitted)
	assert.Equal(t, map[string]int{"labeled": 3, "fallback": 1}, d.Strategies)
}

func TestSegment_Uniqueness(t *testing.T) {
	res := segment(t, wcagLike+twoHeadings)

	seen := map[string]bool{}
	for _, c := range res.Chunks {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestSegment_BoundaryContainment(t *testing.T) {
	res := segment(t, wcagLike)

	for i, c := range res.Chunks {
		for _, later := range res.Chunks[i+1:] {
			assert.NotContains(t, c.Text, "Success Criterion "+later.ID)
			assert.NotContains(t, c.Text, later.ID)
		}
	}
	for _, c := range res.Chunks {
		assert.NotContains(t, c.Text, "Conformance body")
		assert.NotContains(t, c.Text, "Duplicate body")
	}
}

func TestSegment_ContentNodeEnclosingHead(t *testing.T) {
	html := `<html><body><ul>
<li><h4>Success Criterion 3.1.1 Language of Page</h4><p>Body A.</p></li>
<li><h4>Success Criterion 3.1.2 Language of Parts</h4><p>Body B.</p></li>
</ul></body></html>`
	res := segment(t, html)

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "Success Criterion 3.1.1 Language of Page\nBody A.", res.Chunks[0].Text)
	assert.Equal(t, "Success Criterion 3.1.2 Language of Parts\nBody B.", res.Chunks[1].Text)
}

func TestSegment_TextBeforeEnclosedHead(t *testing.T) {
	html := `<html><body>
<h4>Success Criterion 1.2.3 Example Title</h4>
<p>Body A.</p>
<ul><li>tail of A <h4>Success Criterion 1.2.4 Next Title</h4></li></ul>
<p>Body B.</p>
</body></html>`
	res := segment(t, html)

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "Success Criterion 1.2.3 Example Title\nBody A.\ntail of A", res.Chunks[0].Text)
	assert.Equal(t, "Success Criterion 1.2.4 Next Title\nBody B.", res.Chunks[1].Text)
}

func TestSegment_TextBeforeEnclosedHeadKeepsOrder(t *testing.T) {
	html := `<html><body>
<h4>Success Criterion 1.2.3 Example Title</h4>
<ul><li><p>Para.</p> Between. <blockquote>Quote.</blockquote> Last words. <h4>Success Criterion 1.2.4 Next Title</h4> not A</li></ul>
</body></html>`
	res := segment(t, html)

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "Success Criterion 1.2.3 Example Title\nPara.\nBetween.\nQuote.\nLast words.", res.Chunks[0].Text)
	assert.NotContains(t, res.Chunks[0].Text, "not A")
}

func TestSegment_Idempotent(t *testing.T) {
	encode := func() []byte {
		var buf bytes.Buffer
		require.NoError(t, chunk.Encode(&buf, segment(t, wcagLike).Chunks))
		return buf.Bytes()
	}
	assert.Equal(t, encode(), encode())
}

func TestSegment_EmptyDocument(t *testing.T) {
	res := segment(t, "<html><body><p>nothing here</p></body></html>")
	assert.Empty(t, res.Chunks)
	assert.Equal(t, 0, res.Diagnostics.Candidates)
}

func TestSegment_CustomStrategies(t *testing.T) {
	rule := segmenter.Strategy{Name: "rule", Match: func(text string) (segmenter.Heading, segmenter.Outcome) {
		if id, title, ok := strings.Cut(text, ". "); ok && strings.HasPrefix(id, "Rule ") {
			return segmenter.Heading{ID: strings.TrimPrefix(id, "Rule "), Title: title}, segmenter.Matched
		}
		return segmenter.Heading{}, segmenter.NoMatch
	}}
	doc, err := document.Parse(strings.NewReader(`<h3>Rule 7. Ball at rest</h3><p>Body.</p>`), document.Options{})
	require.NoError(t, err)

	res := segmenter.New(segmenter.Options{Strategies: []segmenter.Strategy{rule}}, nil).Segment(doc)

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "7", res.Chunks[0].ID)
	assert.Equal(t, "Ball at rest", res.Chunks[0].Title)
}

func TestSegment_LogsDuplicates(t *testing.T) {
	logger := logging.NewTestLogger()
	doc, err := document.Parse(strings.NewReader(wcagLike), document.Options{SkipTags: []string{"nav", "header", "footer"}})
	require.NoError(t, err)

	segmenter.New(segmenter.Options{}, logger.Underlying()).Segment(doc)

	logger.AssertField(t, "duplicate identifier dropped", "id", "1.2.3")
	logger.AssertLogged(t, zapcore.DebugLevel, "segmentation complete")
}
