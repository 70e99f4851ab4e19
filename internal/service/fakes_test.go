package service

import (
	"context"
	"sync"

	"github.com/srediag/kvmfr-host/pkg/capture"
)

// fakeCapture is a scripted Capture backend: each call to Capture pops
// the next status off a queue (repeating the last entry once exhausted),
// and GetFrame always reports a fixed frame shape.
type fakeCapture struct {
	mu sync.Mutex

	statuses []capture.Status
	popIdx   int

	maxFrameSize uint64
	frameType    uint32

	width, height, stride, pitch uint32

	cursor capture.CursorState

	canInit   bool
	initErr   error
	reinitErr error

	initCalls    int
	reinitCalls  int
	deinitCalls  int
	captureCalls int
}

func newFakeCapture(statuses ...capture.Status) *fakeCapture {
	return &fakeCapture{
		statuses:     statuses,
		maxFrameSize: 1,
		width:        1920, height: 1080, stride: 1920 * 4, pitch: 1920 * 4,
		canInit: true,
	}
}

func (f *fakeCapture) Initialize(ctx context.Context) error {
	f.initCalls++
	return f.initErr
}
func (f *fakeCapture) ReInitialize() error {
	f.reinitCalls++
	return f.reinitErr
}
func (f *fakeCapture) CanInitialize() bool { return f.canInit }
func (f *fakeCapture) DeInitialize() error {
	f.deinitCalls++
	return nil
}

func (f *fakeCapture) GetMaxFrameSize() uint64 { return f.maxFrameSize }
func (f *fakeCapture) GetFrameType() uint32    { return f.frameType }

func (f *fakeCapture) Capture(ctx context.Context) capture.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captureCalls++
	if len(f.statuses) == 0 {
		return capture.StatusTimeout
	}
	idx := f.popIdx
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	} else {
		f.popIdx++
	}
	return f.statuses[idx]
}

func (f *fakeCapture) GetFrame(frame *capture.FrameInfo) capture.Status {
	frame.Width, frame.Height, frame.Stride, frame.Pitch = f.width, f.height, f.stride, f.pitch
	for i := range frame.Buffer {
		frame.Buffer[i] = 0xAB
	}
	return capture.StatusOK
}

func (f *fakeCapture) GetCursor() capture.CursorState {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cursor
	f.cursor = capture.CursorState{}
	return c
}

func (f *fakeCapture) setCursor(c capture.CursorState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = c
}

type fakeSessionWatcher struct {
	mu sync.Mutex
	id interface{}
}

func (w *fakeSessionWatcher) CurrentSessionId() interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}

func (w *fakeSessionWatcher) set(id interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.id = id
}
