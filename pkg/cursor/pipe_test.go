package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srediag/kvmfr-host/pkg/capture"
	"github.com/srediag/kvmfr-host/pkg/kvmfr"
)

func newTestPipe(t *testing.T) (*Pipe, *kvmfr.Header) {
	t.Helper()
	mem := make([]byte, kvmfr.HeaderSize)
	header := kvmfr.Bind(mem)
	header.Stamp()
	pixels := make([]byte, kvmfr.CursorCapacity)
	p, err := NewPipe(header, pixels, 12345)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, p.Stop(ctx))
	})
	return p, header
}

func waitForUpdate(t *testing.T, cd *kvmfr.CursorDescriptor) {
	t.Helper()
	require.Eventually(t, func() bool {
		return cd.Flags()&kvmfr.CursorFlagUpdate != 0
	}, time.Second, time.Millisecond)
}

func TestPipePublishesPositionOnly(t *testing.T) {
	p, header := newTestPipe(t)
	p.Inbox().Publish(capture.CursorState{Updated: true, HasPos: true, X: 10, Y: 20, Visible: true})
	p.Notify()

	cd := header.Cursor()
	waitForUpdate(t, cd)
	require.Equal(t, int32(10), cd.X())
	require.Equal(t, int32(20), cd.Y())
	require.NotZero(t, cd.Flags()&kvmfr.CursorFlagPos)
	require.NotZero(t, cd.Flags()&kvmfr.CursorFlagVisible)
	require.Zero(t, cd.Flags()&kvmfr.CursorFlagShape)
}

func TestPipePublishesShapeAndIncrementsVersion(t *testing.T) {
	p, header := newTestPipe(t)
	cd := header.Cursor()
	require.Equal(t, uint32(0), cd.Version())

	shape := make([]byte, 64)
	for i := range shape {
		shape[i] = byte(i)
	}
	p.Inbox().Publish(capture.CursorState{Updated: true, HasShape: true, Type: 1, Width: 4, Height: 4, Pitch: 16, Shape: shape})
	p.Notify()

	waitForUpdate(t, cd)
	require.Equal(t, uint32(1), cd.Version())
	require.NotZero(t, cd.Flags()&kvmfr.CursorFlagShape)
}

func TestPipeShapeOnlyUpdateNeverSetsVisibleWithoutPos(t *testing.T) {
	p, header := newTestPipe(t)
	cd := header.Cursor()

	shape := make([]byte, 16)
	p.Inbox().Publish(capture.CursorState{Updated: true, HasShape: true, Visible: true, Type: 1, Width: 2, Height: 2, Pitch: 8, Shape: shape})
	p.Notify()

	waitForUpdate(t, cd)
	require.NotZero(t, cd.Flags()&kvmfr.CursorFlagShape)
	require.Zero(t, cd.Flags()&kvmfr.CursorFlagPos)
	require.Zero(t, cd.Flags()&kvmfr.CursorFlagVisible, "VISIBLE must only be published alongside a POS update")
}

func TestPipeDropsOversizedShapeWithoutSettingShapeBit(t *testing.T) {
	p, header := newTestPipe(t)
	cd := header.Cursor()

	oversized := make([]byte, kvmfr.CursorCapacity+1)
	p.Inbox().Publish(capture.CursorState{Updated: true, HasPos: true, X: 1, Y: 1, HasShape: true, Shape: oversized})
	p.Notify()

	waitForUpdate(t, cd)
	require.NotZero(t, cd.Flags()&kvmfr.CursorFlagPos)
	require.Zero(t, cd.Flags()&kvmfr.CursorFlagShape)
	require.Equal(t, uint32(0), cd.Version())
}

func TestPipeWaitsForConsumerToClearFlagsBeforeNextUpdate(t *testing.T) {
	p, header := newTestPipe(t)
	cd := header.Cursor()

	p.Inbox().Publish(capture.CursorState{Updated: true, HasPos: true, X: 1, Y: 1})
	p.Notify()
	waitForUpdate(t, cd)

	p.Inbox().Publish(capture.CursorState{Updated: true, HasPos: true, X: 2, Y: 2})
	p.Notify()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), cd.X(), "worker must not overwrite an undrained update")

	cd.ClearAll()
	require.Eventually(t, func() bool {
		return cd.X() == 2
	}, time.Second, time.Millisecond)
}
