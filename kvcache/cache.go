// Package kvcache implements the per-layer key/value cache bookkeeping a
// Transformer uses to satisfy compute.Transformer.ShiftCache. The generation
// core drives a single conversation per Transformer instance, so this cache
// tracks one contiguous token timeline rather than a multi-sequence batch.
package kvcache

import "errors"

// ErrNotSupported is returned by Shift when the cache was constructed
// without a ShiftFn (the underlying family cannot reposition cached
// entries, e.g. because it lacks RoPE-style relative position encoding).
var ErrNotSupported = errors.New("kvcache: shift not supported")

// ShiftFn repositions a cached entry on a window slide: a family provides
// this to rotate/re-encode positional information for the entries that
// remain after the oldest ones are dropped. Families without a relative
// positional scheme (so shifting would corrupt the cache) pass a nil
// ShiftFn and shift_memory() with 0 < keep < n_past becomes unsupported;
// discarding every entry still succeeds.
type ShiftFn func(layer int, beginIndex, offset int32) error

// Cache is the bookkeeping contract a Transformer's ShiftCache delegates to.
type Cache interface {
	// Len reports the number of live tokens currently stored.
	Len() int32
	// Add records that n additional tokens have been folded into the
	// cache, starting immediately after the current tail.
	Add(n int32)
	// Shift discards the oldest `shift` entries and compacts the
	// remaining `total - shift` down to the front, per
	// compute.Transformer.ShiftCache's contract.
	Shift(shift, total int32) error
}

// Causal is the reference single-sequence KV cache: a flat cell timeline
// plus an optional ShiftFn for sliding-window compaction.
type Causal struct {
	cells   []cacheCell
	shiftFn ShiftFn
}

type cacheCell struct {
	pos int32
}

// NewCausal constructs an empty cache. shift may be nil if the family
// cannot reposition cached entries on a window slide.
func NewCausal(shift ShiftFn) *Causal {
	return &Causal{shiftFn: shift}
}

func (c *Causal) Len() int32 {
	return int32(len(c.cells))
}

func (c *Causal) Add(n int32) {
	base := int32(len(c.cells))
	for i := int32(0); i < n; i++ {
		c.cells = append(c.cells, cacheCell{pos: base + i})
	}
}

// Shift discards the oldest `shift` entries and compacts the remaining
// `total - shift` to the front. total must equal the cache's current
// length; this mirrors the engine's invariant that shift_memory only ever
// operates on the full live window.
func (c *Causal) Shift(shift, total int32) error {
	if shift <= 0 {
		return nil
	}
	if total != int32(len(c.cells)) {
		return errors.New("kvcache: shift total does not match cache length")
	}
	if shift >= total {
		c.cells = c.cells[:0]
		return nil
	}

	if c.shiftFn != nil {
		if err := c.shiftFn(0, shift, -shift); err != nil {
			return err
		}
	} else if shift > 0 {
		return ErrNotSupported
	}

	remaining := make([]cacheCell, total-shift)
	for i := range remaining {
		remaining[i] = cacheCell{pos: c.cells[int(shift)+i].pos - shift}
	}
	c.cells = remaining
	return nil
}
