// Package chunk defines the retrievable unit produced by the segmenter and
// the JSONL chunk store that hands chunks to the index builder.
package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned when the chunk file does not exist.
	ErrMissingInput = errors.New("missing chunk file")

	// ErrInvalidChunk is returned for chunks that cannot be indexed.
	ErrInvalidChunk = errors.New("invalid chunk")
)

// Metadata keys stored with every index entry.
const (
	KeyID          = "id"
	KeyTitle       = "title"
	KeyLevel       = "level"
	KeyURL         = "url"
	KeyDocSet      = "doc_set"
	KeySource      = "source"
	KeyNormativity = "normativity"
	KeyVersion     = "version"
)

// Provenance is constant metadata stamped onto every chunk of one ingestion
// run.
type Provenance struct {
	DocSet      string `json:"doc_set"`
	Source      string `json:"source"`
	Normativity string `json:"normativity"`
	Version     string `json:"version"`
}

// Chunk is one success criterion: its identifier, label, conformance level,
// source locator and normalized body text. Absent values are empty strings.
type Chunk struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level string `json:"level"`
	URL   string `json:"url"`
	Text  string `json:"text"`
	Provenance
}

// Metadata returns every non-text field as flat strings.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		KeyID:          c.ID,
		KeyTitle:       c.Title,
		KeyLevel:       c.Level,
		KeyURL:         c.URL,
		KeyDocSet:      c.DocSet,
		KeySource:      c.Source,
		KeyNormativity: c.Normativity,
		KeyVersion:     c.Version,
	}
}

// FromMetadata rebuilds a Chunk from an index entry. Missing keys become
// empty strings.
func FromMetadata(id, text string, meta map[string]string) Chunk {
	if v := meta[KeyID]; v != "" {
		id = v
	}
	return Chunk{
		ID:    id,
		Title: meta[KeyTitle],
		Level: meta[KeyLevel],
		URL:   meta[KeyURL],
		Text:  text,
		Provenance: Provenance{
			DocSet:      meta[KeyDocSet],
			Source:      meta[KeySource],
			Normativity: meta[KeyNormativity],
			Version:     meta[KeyVersion],
		},
	}
}

// Validate checks that every chunk has an identifier and text and that
// identifiers are unique.
func Validate(chunks []Chunk) error {
	seen := make(map[string]int, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("%w: chunk %d has no id", ErrInvalidChunk, i)
		}
		if c.Text == "" {
			return fmt.Errorf("%w: chunk %s has no text", ErrInvalidChunk, c.ID)
		}
		if prev, ok := seen[c.ID]; ok {
			return fmt.Errorf("%w: duplicate id %s at %d and %d", ErrInvalidChunk, c.ID, prev, i)
		}
		seen[c.ID] = i
	}
	return nil
}
