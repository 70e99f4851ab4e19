// Package cursor implements the cursor pipe capability (spec.md component
// C4): an independent worker that drains a mutex-guarded inbox into the
// cursor descriptor and pixel area, decoupled from the frame cadence so
// bursty pointer movement never stalls or is stalled by frame commits.
package cursor

import (
	"sync"

	"github.com/srediag/kvmfr-host/pkg/capture"
)

// Inbox is the mutex-guarded latest-wins snapshot the service loop
// publishes into and the cursor worker drains from (spec.md section 4.4).
type Inbox struct {
	mu sync.Mutex

	hasPos  bool
	x, y    int32
	visible bool

	hasShape bool
	typ      uint32
	width    uint32
	height   uint32
	pitch    uint32
	shape    []byte
}

// Publish overwrites the fields present in cur, following the branch
// independence rule of spec.md 4.4: the position branch and the shape
// branch are updated independently, and visible is always copied
// regardless of which branch(es) are set (SUPPLEMENTED FEATURE, see
// DESIGN.md).
func (in *Inbox) Publish(cur capture.CursorState) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.visible = cur.Visible
	if cur.HasPos {
		in.hasPos = true
		in.x, in.y = cur.X, cur.Y
	}
	if cur.HasShape {
		in.hasShape = true
		in.typ = cur.Type
		in.width = cur.Width
		in.height = cur.Height
		in.pitch = cur.Pitch
		// The shape bytes are copied, not aliased: cur.Shape's backing
		// array belongs to the capture backend and may be reused on its
		// next call before the worker drains this snapshot.
		in.shape = append(in.shape[:0], cur.Shape...)
	}
}

// drain atomically takes ownership of whichever branches are pending and
// clears them, returning a private copy the worker can act on without
// holding the lock any longer than the copy itself.
func (in *Inbox) drain() (snapshot, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.hasPos && !in.hasShape {
		return snapshot{}, false
	}

	s := snapshot{
		visible:  in.visible,
		hasPos:   in.hasPos,
		x:        in.x,
		y:        in.y,
		hasShape: in.hasShape,
		typ:      in.typ,
		width:    in.width,
		height:   in.height,
		pitch:    in.pitch,
	}
	if in.hasShape {
		s.shape = append([]byte(nil), in.shape...)
	}
	in.hasPos = false
	in.hasShape = false
	return s, true
}

type snapshot struct {
	hasPos  bool
	x, y    int32
	visible bool

	hasShape bool
	typ      uint32
	width    uint32
	height   uint32
	pitch    uint32
	shape    []byte
}
