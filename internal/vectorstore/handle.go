package vectorstore

import "sync/atomic"

// Handle holds the index currently being served. Queries load it once and
// keep using that generation even if a reload swaps in a newer one.
type Handle struct {
	p atomic.Pointer[Index]
}

// NewHandle returns a Handle serving ix, which may be nil.
func NewHandle(ix *Index) *Handle {
	h := &Handle{}
	if ix != nil {
		h.p.Store(ix)
	}
	return h
}

// Load returns the live index, or nil if none is loaded.
func (h *Handle) Load() *Index { return h.p.Load() }

// Swap installs ix and returns the previous index.
func (h *Handle) Swap(ix *Index) *Index { return h.p.Swap(ix) }
