// Package capture defines the capabilities the service loop consumes but
// does not implement: the concrete capture backend (DXGI, NvFBC, ...) and
// OS session detection are external collaborators, specified here only at
// their interface with the core (spec.md section 1).
package capture

import "context"

// Status is the result of one Capture() call.
type Status int

const (
	// StatusOK means a frame and/or cursor update is ready to be read via
	// GetFrame/GetCursor.
	StatusOK Status = iota
	// StatusTimeout means no new frame arrived before the backend's
	// internal timeout elapsed. Not an error.
	StatusTimeout
	// StatusCursorOnly means only cursor state changed; the frame ring
	// must not be touched this tick.
	StatusCursorOnly
	// StatusError is a fatal capture failure for this tick.
	StatusError
	// StatusReinit means the backend needs ReInitialize before it can
	// capture again (e.g. output topology changed, device lost).
	StatusReinit
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusCursorOnly:
		return "CURSOR"
	case StatusError:
		return "ERROR"
	case StatusReinit:
		return "REINIT"
	default:
		return "UNKNOWN"
	}
}

// FrameInfo is filled in by GetFrame: the backend describes the frame it
// just captured into the buffer the caller handed it.
type FrameInfo struct {
	// Buffer is the destination the backend must copy pixel data into.
	// Buffer/BufferSize are set by the caller before GetFrame is called.
	Buffer     []byte
	BufferSize int

	Width  uint32
	Height uint32
	Stride uint32
	Pitch  uint32
}

// CursorState is the cursor snapshot returned by GetCursor.
type CursorState struct {
	Updated bool

	HasPos  bool
	X, Y    int32
	Visible bool

	HasShape bool
	Type     uint32
	Width    uint32
	Height   uint32
	Pitch    uint32
	Shape    []byte // dataSize == len(Shape)
}

// Capture is the capability abstracting the concrete capture backend
// (spec.md section 6).
type Capture interface {
	Initialize(ctx context.Context) error
	ReInitialize() error
	CanInitialize() bool
	DeInitialize() error

	GetMaxFrameSize() uint64
	GetFrameType() uint32

	// Capture attempts to grab a frame or cursor update. It may block up
	// to the backend's internal timeout.
	Capture(ctx context.Context) Status
	// GetFrame copies pixel data into frame.Buffer and fills in the rest
	// of frame. Only valid immediately after Capture returned StatusOK.
	GetFrame(frame *FrameInfo) Status
	// GetCursor returns the cursor state observed by the last Capture
	// call.
	GetCursor() CursorState
}

// SessionWatcher abstracts OS-level interactive session detection
// (spec.md section 1): the service loop suspends capture while no
// interactive session owns the display.
type SessionWatcher interface {
	// CurrentSessionId returns an opaque, equality-comparable token for
	// whichever session currently owns the display.
	CurrentSessionId() interface{}
}
