// Package segmenter turns a flattened HTML standards document into one chunk per
// success criterion.
//
// Segmentation runs in three passes over the document's linear node
// sequence:
//
//  1. Every candidate heading (h2-h5, dt by default) is classified by an
//     ordered list of strategies. Recognized heads become chunk boundaries.
//  2. Heads are deduplicated by identifier, first occurrence wins.
//  3. For each head, body text is accumulated from content nodes (p, li, dt,
//     dd, blockquote) that follow it, stopping at the next recognized head or
//     at a top-level section heading.
//
// Nothing in segmentation is fatal. Unrecognized candidates and dropped
// duplicates are reported through Diagnostics.
package segmenter

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/document"
)

// Options configures a Segmenter. Zero values take the defaults used for
// the WCAG 2.2 Recommendation.
type Options struct {
	Label            string
	ReservedSections []string
	CandidateTags    []string
	ContentTags      []string
	StopTags         []string
	BaseURL          string
	Provenance       chunk.Provenance

	// Strategies overrides the strategies built from Label and
	// ReservedSections.
	Strategies []Strategy
}

// ApplyDefaults fills unset options.
func (o *Options) ApplyDefaults() {
	if o.Label == "" {
		o.Label = "Success Criterion"
	}
	if o.ReservedSections == nil {
		o.ReservedSections = []string{"5"}
	}
	if len(o.CandidateTags) == 0 {
		o.CandidateTags = []string{"h2", "h3", "h4", "h5", "dt"}
	}
	if len(o.ContentTags) == 0 {
		o.ContentTags = []string{"p", "li", "dt", "dd", "blockquote"}
	}
	if len(o.StopTags) == 0 {
		o.StopTags = []string{"h1", "h2"}
	}
	if o.BaseURL == "" {
		o.BaseURL = "https://www.w3.org/TR/WCAG22/"
	}
	if len(o.Strategies) == 0 {
		o.Strategies = DefaultStrategies(o.Label, o.ReservedSections)
	}
}

// Diagnostics counts what segmentation skipped or dropped.
type Diagnostics struct {
	Candidates  int            // candidate heading nodes examined
	Recognized  int            // candidates parsed as heads, duplicates included
	Strategies  map[string]int // recognized heads per strategy name
	ParseMisses int            // candidates no strategy recognized
	Reserved    int            // candidates rejected for a reserved section number
	Duplicates  []string       // identifiers dropped as repeats, in document order
	Emitted     int            // chunks produced
}

// Result is the output of one segmentation run.
type Result struct {
	Chunks      []chunk.Chunk
	Diagnostics Diagnostics
}

// Segmenter is stateless after construction and safe for concurrent use.
type Segmenter struct {
	opts       Options
	candidates map[string]bool
	content    map[string]bool
	stops      map[string]bool
	logger     *zap.Logger
}

// New creates a Segmenter.
func New(opts Options, logger *zap.Logger) *Segmenter {
	opts.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Segmenter{
		opts:       opts,
		candidates: tagSet(opts.CandidateTags),
		content:    tagSet(opts.ContentTags),
		stops:      tagSet(opts.StopTags),
		logger:     logger,
	}
}

type head struct {
	node    document.Node
	heading Heading
}

// Segment produces chunks in document order.
func (s *Segmenter) Segment(doc *document.Document) Result {
	diag := Diagnostics{Strategies: make(map[string]int)}
	nodes := doc.Nodes

	// Pass 1: classify candidates. Skipped regions contribute nothing.
	isHead := make([]bool, len(nodes))
	var recognized []head
	for i, n := range nodes {
		if n.Skipped || !s.candidates[n.Tag] {
			continue
		}
		diag.Candidates++
		text := n.Text()
		h, outcome, strategy := Classify(s.opts.Strategies, text)
		switch outcome {
		case Matched:
			isHead[i] = true
			diag.Recognized++
			diag.Strategies[strategy]++
			recognized = append(recognized, head{node: n, heading: h})
		case Rejected:
			diag.Reserved++
			s.logger.Debug("reserved section rejected", zap.String("id", h.ID), zap.String("tag", n.Tag))
		default:
			diag.ParseMisses++
		}
	}

	// Boundaries are recognized heads plus visible stop headings.
	var boundaries []int
	for i, n := range nodes {
		if isHead[i] || s.isStop(n) {
			boundaries = append(boundaries, i)
		}
	}

	// Pass 2: first occurrence wins.
	seen := make(map[string]bool, len(recognized))
	canonical := make([]head, 0, len(recognized))
	for _, h := range recognized {
		if seen[h.heading.ID] {
			diag.Duplicates = append(diag.Duplicates, h.heading.ID)
			s.logger.Debug("duplicate identifier dropped", zap.String("id", h.heading.ID))
			continue
		}
		seen[h.heading.ID] = true
		canonical = append(canonical, h)
	}

	// Pass 3: accumulate bodies.
	chunks := make([]chunk.Chunk, 0, len(canonical))
	for _, h := range canonical {
		text := NormalizeText(s.body(doc, h.node, isHead, boundaries))
		chunks = append(chunks, chunk.Chunk{
			ID:         h.heading.ID,
			Title:      h.heading.Title,
			Level:      InferLevel(text),
			URL:        s.resolveURL(h.node),
			Text:       text,
			Provenance: s.opts.Provenance,
		})
	}
	diag.Emitted = len(chunks)

	s.logger.Debug("segmentation complete",
		zap.Int("candidates", diag.Candidates),
		zap.Int("recognized", diag.Recognized),
		zap.Int("parse_misses", diag.ParseMisses),
		zap.Int("reserved", diag.Reserved),
		zap.Int("duplicates", len(diag.Duplicates)),
		zap.Int("emitted", diag.Emitted),
	)

	return Result{Chunks: chunks, Diagnostics: diag}
}

func (s *Segmenter) isStop(n document.Node) bool {
	return !n.Skipped && s.stops[n.Tag]
}

// body joins the head's text with the text of every content node that
// follows it, up to the next boundary. A content node is taken whole unless
// a boundary lies inside it; then only its direct text before the boundary
// is taken and its descendants are visited individually.
func (s *Segmenter) body(doc *document.Document, start document.Node, isHead []bool, boundaries []int) string {
	nodes := doc.Nodes
	// keyed by document position: node i at 2i, a fragment after node i at 2i+1
	type part struct {
		pos  int
		text string
	}
	parts := []part{{2 * start.Index, start.Text()}}
	covered := start.End

	for j := start.Index + 1; j < len(nodes); j++ {
		n := nodes[j]
		if isHead[j] || s.isStop(n) {
			break
		}
		if n.Skipped || j <= covered || !s.content[n.Tag] {
			continue
		}
		if next, ok := boundaryWithin(boundaries, n); ok {
			for _, f := range doc.DirectText(n, next) {
				parts = append(parts, part{2*f.After + 1, f.Text})
			}
			continue
		}
		if t := n.Text(); t != "" {
			parts = append(parts, part{2 * j, t})
		}
		covered = n.End
	}

	sort.SliceStable(parts, func(a, b int) bool { return parts[a].pos < parts[b].pos })
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.text
	}
	return strings.Join(texts, "\n")
}

// boundaryWithin returns the first boundary strictly inside n's subtree.
func boundaryWithin(boundaries []int, n document.Node) (int, bool) {
	i := sort.SearchInts(boundaries, n.Index+1)
	if i < len(boundaries) && boundaries[i] <= n.End {
		return boundaries[i], true
	}
	return 0, false
}

// resolveURL anchors the chunk at the head's own id, else the nearest
// ancestor id, else the document URL.
func (s *Segmenter) resolveURL(n document.Node) string {
	base, _, _ := strings.Cut(s.opts.BaseURL, "#")
	switch {
	case n.ID != "":
		return base + "#" + n.ID
	case n.AncestorID != "":
		return base + "#" + n.AncestorID
	default:
		return base
	}
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}
