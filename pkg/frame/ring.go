// Package frame implements the frame ring capability (spec.md component
// C3): a fixed set of equal-sized pixel slots inside the SHM region,
// rotated by the producer and handed off to the guest consumer through a
// single UPDATE flag per commit.
package frame

import (
	"context"
	"fmt"
	"runtime"

	"github.com/srediag/kvmfr-host/internal/klog"
	"github.com/srediag/kvmfr-host/pkg/capture"
	"github.com/srediag/kvmfr-host/pkg/kvmfr"
)

var log = klog.New("frame")

// ErrAbandoned is returned by CommitFresh and CommitRepeat when the consumer set RESTART while
// the producer was waiting for the slot to free up. The caller should
// treat this as "no frame published this tick", not as a failure.
var ErrAbandoned = fmt.Errorf("frame: commit abandoned, consumer requested restart")

// Ring drives the frame hand-off algorithm of spec.md section 4.3 over a
// Header bound to a live SHM mapping.
type Ring struct {
	header    *kvmfr.Header
	mem       []byte
	layout    *kvmfr.Layout
	frameIdx  int
	haveFrame bool
}

// NewRing returns a Ring positioned at frameIndex 0 with no frame sent
// yet, matching the state after Service initialization (spec.md 4.5).
func NewRing(header *kvmfr.Header, mem []byte, layout *kvmfr.Layout) *Ring {
	return &Ring{header: header, mem: mem, layout: layout}
}

// Reset returns the ring to its post-Initialize state.
func (r *Ring) Reset() {
	r.frameIdx = 0
	r.haveFrame = false
}

// FrameIndex reports the next slot index the ring will write into. Tests
// use this to assert invariant 3 of spec.md section 8.
func (r *Ring) FrameIndex() int { return r.frameIdx }

// HaveFrame reports whether any frame has been committed since Reset.
func (r *Ring) HaveFrame() bool { return r.haveFrame }

func (r *Ring) slot() []byte {
	off := r.layout.SlotOffset(r.frameIdx)
	return r.mem[off : off+r.layout.FrameSize]
}

// CurrentSlot returns the pixel buffer the caller must hand to
// capture.GetFrame *before* calling CommitFresh, matching spec.md 4.3
// step 1: pixel bytes land in the slot before the ring waits for it to be
// free of a consumer, since under double buffering frameIndex always
// names the slot not currently referenced by the published descriptor.
func (r *Ring) CurrentSlot() []byte { return r.slot() }

// CommitFresh runs the remainder of the fresh-frame commit algorithm
// (spec.md 4.3 steps 2-5) once capture has already written pixels into
// CurrentSlot() and filled in info's dimensions.
func (r *Ring) CommitFresh(ctx context.Context, frameType uint32, info *capture.FrameInfo) error {
	if err := r.waitFree(ctx); err != nil {
		return err
	}

	off := r.layout.SlotOffset(r.frameIdx)
	fd := r.header.Frame()
	fd.SetFields(kvmfr.FrameType(frameType), info.Width, info.Height, info.Stride, info.Pitch, uint32(off))

	r.frameIdx = (r.frameIdx + 1) % r.layout.MaxFrames
	r.haveFrame = true
	fd.SetUpdate()
	return nil
}

// CommitRepeat runs the repeat-frame policy (spec.md 4.3): no pixels are
// re-copied and no descriptor field is touched at all. The descriptor
// keeps pointing at the slot filled by the last real CommitFresh, and
// only UPDATE cycles again, so the consumer's display keeps ticking
// during idle periods without the ring rotating into a slot capture has
// never written to.
func (r *Ring) CommitRepeat(ctx context.Context) error {
	if !r.haveFrame {
		return fmt.Errorf("frame: CommitRepeat called before any frame was sent")
	}

	if err := r.waitFree(ctx); err != nil {
		return err
	}

	r.header.Frame().SetUpdate()
	return nil
}

// waitFree busy-polls until frame.UPDATE == 0 or header.RESTART == 1, per
// the release/acquire discipline of spec.md section 5. There is no
// timeout: the only escape hatch is the consumer clearing UPDATE or
// setting RESTART. It spins rather than sleeps, since this hand-off sits
// on the low-latency publish path.
func (r *Ring) waitFree(ctx context.Context) error {
	fd := r.header.Frame()
	for fd.TestUpdate() {
		if r.header.TestRestart() {
			log.Debugf("frame: commit abandoned at slot %d, RESTART observed", r.frameIdx)
			return ErrAbandoned
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}
