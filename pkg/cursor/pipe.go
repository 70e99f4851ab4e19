package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/kvmfr-host/internal/klog"
	"github.com/srediag/kvmfr-host/pkg/kvmfr"
)

var log = klog.New("cursor")

// eventWaitTimeout bounds the worker's wait on a fresh Inbox publish so
// shutdown is observed even with no cursor traffic (spec.md section 5).
const eventWaitTimeout = time.Second

// busySpinInterval is how long the worker yields between polls of
// cursor.flags while waiting for the consumer to drain the previous
// update.
const busySpinInterval = 2 * time.Millisecond

// ErrShapeTooLarge is reported (not returned as a fatal error) when an
// inbox shape exceeds the fixed cursor pixel area. spec.md's
// FAIL_CURSOR_TOO_LARGE policy: log and drop only this shape.
var ErrShapeTooLarge = fmt.Errorf("cursor: shape exceeds cursor pixel capacity")

// Pipe owns the cursor worker goroutine: it drains an Inbox into the
// cursor descriptor and pixel area of a bound Header, independent of the
// frame ring's cadence.
type Pipe struct {
	header       *kvmfr.Header
	pixelArea    []byte
	pixelAreaOff uint64
	inbox        *Inbox

	// OnShapeOverflow, if set, is called from the worker goroutine every
	// time a shape update is dropped for exceeding the cursor pixel
	// capacity. It must not block.
	OnShapeOverflow func()

	pool   *ants.Pool
	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// NewPipe returns a Pipe bound to header, whose cursor pixel area is
// pixelArea (the CursorCap-sized region carved out by ComputeLayout) at
// region-relative offset pixelAreaOff.
func NewPipe(header *kvmfr.Header, pixelArea []byte, pixelAreaOff uint64) (*Pipe, error) {
	pool, err := ants.NewPool(1, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("cursor: allocating worker pool: %w", err)
	}
	return &Pipe{
		header:       header,
		pixelArea:    pixelArea,
		pixelAreaOff: pixelAreaOff,
		inbox:        &Inbox{},
		pool:         pool,
		signal:       make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Inbox returns the inbox the service loop should Publish updates into.
func (p *Pipe) Inbox() *Inbox { return p.inbox }

// Start submits the worker loop to the pool. It returns once the worker
// goroutine has been scheduled, not once it exits.
func (p *Pipe) Start() error {
	return p.pool.Submit(p.run)
}

// Stop signals the worker to exit and blocks until it has, then releases
// the pool. Safe to call once; matches the "join the cursor worker" step
// of Service De-initialization (spec.md section 4.5).
func (p *Pipe) Stop(ctx context.Context) error {
	close(p.stop)
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.pool.Release()
	return nil
}

// Notify wakes the worker to check the inbox. Non-blocking: if a signal
// is already pending, this is a no-op, since the worker will re-check
// the inbox anyway once woken.
func (p *Pipe) Notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Pipe) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case <-p.signal:
		case <-time.After(eventWaitTimeout):
		}

		if p.shuttingDownWhileBusy() {
			return
		}
		p.drainOnce()
	}
}

// shuttingDownWhileBusy busy-waits while the consumer has not yet
// consumed the previous cursor update, observing shutdown between spins.
func (p *Pipe) shuttingDownWhileBusy() bool {
	cd := p.header.Cursor()
	for cd.Flags() != 0 {
		select {
		case <-p.stop:
			return true
		default:
		}
		time.Sleep(busySpinInterval)
	}
	return false
}

func (p *Pipe) drainOnce() {
	snap, ok := p.inbox.drain()
	if !ok {
		return
	}

	cd := p.header.Cursor()
	var mask byte

	if snap.hasPos {
		cd.SetPos(snap.x, snap.y)
		mask |= kvmfr.CursorFlagPos
		if snap.visible {
			mask |= kvmfr.CursorFlagVisible
		}
	}

	if snap.hasShape {
		if uint64(len(snap.shape)) > uint64(len(p.pixelArea)) {
			log.Warnf("%v: shape %d bytes exceeds capacity %d, dropping shape update", ErrShapeTooLarge, len(snap.shape), len(p.pixelArea))
			if p.OnShapeOverflow != nil {
				p.OnShapeOverflow()
			}
		} else {
			buf := bytebufferpool.Get()
			defer bytebufferpool.Put(buf)
			_, _ = buf.Write(snap.shape)
			copy(p.pixelArea, buf.B)

			cd.SetShape(kvmfr.CursorType(snap.typ), snap.width, snap.height, snap.pitch, uint32(p.pixelAreaOff))
			mask |= kvmfr.CursorFlagShape
		}
	}

	if mask != 0 {
		cd.SetFlags(mask)
	}
	cd.SetUpdate()
}
