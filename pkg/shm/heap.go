package shm

import (
	"context"
	"errors"
)

// HeapRegion is an in-process, heap-backed Region used by tests and by
// any caller that wants to exercise the header/frame/cursor protocol
// without a real shared-memory mapping. It behaves like a Region with a
// single "process" on both ends, so it cannot exercise cross-process
// visibility, but every other invariant in spec.md sections 3-5 holds.
type HeapRegion struct {
	size int
	mem  []byte
}

// NewHeapRegion returns a Region of the given size backed by a plain
// byte slice.
func NewHeapRegion(size int) *HeapRegion {
	return &HeapRegion{size: size}
}

func (r *HeapRegion) Initialize(ctx context.Context) error {
	if r.mem != nil {
		return errors.New("shm: region already initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mem = make([]byte, r.size)
	return nil
}

func (r *HeapRegion) GetSize() int      { return len(r.mem) }
func (r *HeapRegion) GetMemory() []byte { return r.mem }

func (r *HeapRegion) DeInitialize() error {
	r.mem = nil
	return nil
}
