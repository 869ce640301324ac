package compute

import "fmt"

// GraphSize is the fixed node capacity of the compute graph handle a
// Context carries.
const GraphSize = 4096

// Context is the scoped scratch/memory arena handed to a Transformer for a
// single forward pass. It is acquired immediately before Forward and must
// be released on every exit path, success or failure — mirroring the
// teacher's `defer tokenBatch.Free()` pattern in runner/llamarunner/batch.go,
// generalized from "one batch per decode loop" to "one arena per forward
// pass".
type Context struct {
	memSize     int
	scratchSize int

	memUsed     int
	scratchUsed int

	// NumThreads is the resolved compute-thread hint the engine bound to
	// this forward pass (after the BLAS/GPU-BLAS override rule has been
	// applied). The backend that actually schedules graph execution is
	// external; this is carried through for a Transformer that wants to
	// pass it along.
	NumThreads int

	// scratchBound is false once ReleaseScratch has been called. The
	// final projection's output must outlive the scratch region because
	// it is consumed by the sampler after Forward returns.
	scratchBound bool

	released bool
}

// NewContext acquires a Context with memSize and scratchSize byte budgets,
// bound to run with numThreads compute threads.
// Exceeding memSize/scratchSize at runtime is a fatal error.
func NewContext(memSize, scratchSize, numThreads int) *Context {
	return &Context{
		memSize:      memSize,
		scratchSize:  scratchSize,
		NumThreads:   numThreads,
		scratchBound: true,
	}
}

// ErrArenaExhausted is returned when a requested allocation would exceed the
// arena's fixed budget.
type ErrArenaExhausted struct {
	Arena     string
	Requested int
	Capacity  int
}

func (e *ErrArenaExhausted) Error() string {
	return fmt.Sprintf("compute: %s arena exhausted: requested %d, capacity %d", e.Arena, e.Requested, e.Capacity)
}

// ReserveMem accounts for n bytes of graph-node/temporary allocation.
func (c *Context) ReserveMem(n int) error {
	if c.memUsed+n > c.memSize {
		return &ErrArenaExhausted{Arena: "mem", Requested: c.memUsed + n, Capacity: c.memSize}
	}
	c.memUsed += n
	return nil
}

// ReserveScratch accounts for n bytes of activation scratch space. Callers
// must not reserve scratch after ReleaseScratch has toggled binding off.
func (c *Context) ReserveScratch(n int) error {
	if !c.scratchBound {
		return fmt.Errorf("compute: scratch reserved after release")
	}
	if c.scratchUsed+n > c.scratchSize {
		return &ErrArenaExhausted{Arena: "scratch", Requested: c.scratchUsed + n, Capacity: c.scratchSize}
	}
	c.scratchUsed += n
	return nil
}

// ReleaseScratch toggles scratch binding off before the final projection, so
// the last hidden-states slice and lm_head output survive past the scratch
// region's lifetime.
func (c *Context) ReleaseScratch() {
	c.scratchBound = false
}

// Release frees both arenas. Safe to call multiple times; subsequent calls
// are no-ops. Callers must defer this immediately after NewContext so it
// runs on every exit path, including Transformer.Forward errors.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.memUsed = 0
	c.scratchUsed = 0
	c.released = true
}
