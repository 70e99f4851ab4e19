package capture

import (
	"context"
	"time"
)

// NullCapture is a Capture backend that never produces frames. It exists
// so cmd/kvmfr-hostd has something to register and run without depending
// on any real GPU capture API, and so tests can exercise the service
// loop's TIMEOUT path deterministically.
type NullCapture struct {
	timeout time.Duration
}

// NewNullCapture returns a Capture backend whose Capture calls always
// block for timeout then report StatusTimeout.
func NewNullCapture(timeout time.Duration) *NullCapture {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &NullCapture{timeout: timeout}
}

func (c *NullCapture) Initialize(ctx context.Context) error { return nil }
func (c *NullCapture) ReInitialize() error                  { return nil }
func (c *NullCapture) CanInitialize() bool                  { return true }
func (c *NullCapture) DeInitialize() error                  { return nil }

func (c *NullCapture) GetMaxFrameSize() uint64 { return 1 }
func (c *NullCapture) GetFrameType() uint32    { return 0 }

func (c *NullCapture) Capture(ctx context.Context) Status {
	select {
	case <-ctx.Done():
		return StatusError
	case <-time.After(c.timeout):
		return StatusTimeout
	}
}

func (c *NullCapture) GetFrame(frame *FrameInfo) Status { return StatusTimeout }
func (c *NullCapture) GetCursor() CursorState           { return CursorState{} }
