// Package document flattens an HTML document into a linear sequence of
// element nodes in document order.
//
// Consumers walk the sequence with start and stop predicates instead of
// navigating the tree. Each node records the index of its last descendant
// (End), so a consumer that takes a node's text can skip the descendants it
// already covered.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// ErrMissingInput is returned when the raw document does not exist.
var ErrMissingInput = errors.New("missing input document")

// ignoredTags never contribute nodes or text.
var ignoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// Options controls flattening.
type Options struct {
	// SkipTags marks structural regions (nav, header, footer) whose nodes,
	// including all descendants, are flagged Skipped.
	SkipTags []string
}

// Node is one element in document order.
type Node struct {
	Index      int
	Tag        string
	ID         string // own id attribute
	AncestorID string // id of the nearest ancestor carrying one
	Depth      int
	End        int // index of the last descendant, Index for leaves
	Skipped    bool

	n *html.Node
}

// Text returns the element's flattened text: every descendant text fragment,
// trimmed, joined by a single space. Empty fragments are dropped.
func (n Node) Text() string {
	if n.n == nil {
		return ""
	}
	var parts []string
	collectText(n.n, &parts)
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				*parts = append(*parts, t)
			}
		case html.ElementNode:
			if !ignoredTags[c.Data] {
				collectText(c, parts)
			}
		}
	}
}

// Document is the flattened node sequence.
type Document struct {
	Nodes []Node
}

// Fragment is a text node sitting directly under an element. After is the
// index of the last node that precedes it in document order.
type Fragment struct {
	After int
	Text  string
}

// DirectText returns the text children of n (not text inside child elements)
// that come before the node at index before.
func (d *Document) DirectText(n Node, before int) []Fragment {
	if n.n == nil {
		return nil
	}
	var out []Fragment
	pos := n.Index
	for c := n.n.FirstChild; c != nil && pos < before; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				out = append(out, Fragment{After: pos, Text: t})
			}
		case html.ElementNode:
			if ignoredTags[c.Data] || pos+1 >= len(d.Nodes) {
				continue
			}
			pos = d.Nodes[pos+1].End
		}
	}
	return out
}

// Len returns the number of nodes.
func (d *Document) Len() int {
	return len(d.Nodes)
}

// Load opens and parses an HTML file.
func Load(path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return Parse(f, opts)
}

// Parse parses HTML from an io.Reader and flattens it.
func Parse(r io.Reader, opts Options) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	skip := make(map[string]bool, len(opts.SkipTags))
	for _, t := range opts.SkipTags {
		skip[strings.ToLower(t)] = true
	}

	f := &flattener{skip: skip}
	f.walk(root, 0, "", false)
	return &Document{Nodes: f.nodes}, nil
}

type flattener struct {
	skip  map[string]bool
	nodes []Node
}

func (f *flattener) walk(n *html.Node, depth int, ancestorID string, skipped bool) {
	if n.Type == html.ElementNode {
		if ignoredTags[n.Data] {
			return
		}
		id := attr(n, "id")
		skipped = skipped || f.skip[n.Data]
		idx := len(f.nodes)
		f.nodes = append(f.nodes, Node{
			Index:      idx,
			Tag:        n.Data,
			ID:         id,
			AncestorID: ancestorID,
			Depth:      depth,
			Skipped:    skipped,
			n:          n,
		})
		if id != "" {
			ancestorID = id
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f.walk(c, depth+1, ancestorID, skipped)
		}
		f.nodes[idx].End = len(f.nodes) - 1
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		f.walk(c, depth, ancestorID, skipped)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
