package chunk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 * 1024 * 1024

// Encode writes chunks as JSON Lines, one object per chunk, in order.
func Encode(w io.Writer, chunks []Chunk) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encoding chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Decode reads JSON Lines chunks. Blank lines are ignored.
func Decode(r io.Reader) ([]Chunk, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var chunks []Chunk
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var c Chunk
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		chunks = append(chunks, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return chunks, nil
}

// WriteFile replaces path with the encoded chunks. The file is written to a
// temporary sibling and renamed into place, so readers see either the old or
// the new chunk set.
func WriteFile(path string, chunks []Chunk) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := Encode(w, chunks); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing chunks: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing chunks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing chunks: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the chunk file at path.
func ReadFile(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("opening chunk file: %w", err)
	}
	defer f.Close()

	chunks, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return chunks, nil
}
