package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srediag/kvmfr-host/internal/service"
	"github.com/srediag/kvmfr-host/pkg/capture"
	"github.com/srediag/kvmfr-host/pkg/shm"
)

type okCapture struct{}

func (okCapture) Initialize(ctx context.Context) error { return nil }
func (okCapture) ReInitialize() error                  { return nil }
func (okCapture) CanInitialize() bool                  { return true }
func (okCapture) DeInitialize() error                  { return nil }
func (okCapture) GetMaxFrameSize() uint64              { return 1920 * 1080 * 4 }
func (okCapture) GetFrameType() uint32                 { return 0 }
func (okCapture) Capture(ctx context.Context) capture.Status {
	return capture.StatusOK
}
func (okCapture) GetFrame(frame *capture.FrameInfo) capture.Status {
	frame.Width, frame.Height, frame.Stride, frame.Pitch = 1920, 1080, 1920*4, 1920*4
	return capture.StatusOK
}
func (okCapture) GetCursor() capture.CursorState { return capture.CursorState{} }

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	region := shm.NewHeapRegion(64 << 20)
	svc, err := service.New(service.Config{Region: region, Capture: okCapture{}, MaxFrames: 2})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.DeInitialize(ctx)
	})
	return svc
}

func TestHandlerLivenessOKBeforeFirstTick(t *testing.T) {
	svc := newTestService(t)
	h := NewHandler(svc, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rw := httptest.NewRecorder()
	h.LiveEndpoint(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
}

func TestHandlerReadinessOKWhileReady(t *testing.T) {
	svc := newTestService(t)
	h := NewHandler(svc, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rw := httptest.NewRecorder()
	h.ReadyEndpoint(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
}

func TestHandlerLivenessFailsOnceTickGoesStale(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Process(context.Background()))

	h := NewHandler(svc, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rw := httptest.NewRecorder()
	h.LiveEndpoint(rw, req)

	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
}

func TestHandlerReadinessFailsAfterDeInitialize(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.DeInitialize(context.Background()))

	h := NewHandler(svc, time.Second)
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rw := httptest.NewRecorder()
	h.ReadyEndpoint(rw, req)

	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
}

func TestMountExposesEventsAsJSON(t *testing.T) {
	svc := newTestService(t)
	h := NewHandler(svc, time.Second)
	events := NewEventLog(8)
	defer events.Close()
	events.Push(EventRestart, "consumer requested", time.Now())

	require.Eventually(t, func() bool {
		return len(events.Recent(0)) == 1
	}, time.Second, time.Millisecond)

	mux := http.NewServeMux()
	Mount(mux, h, events)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	var got []Event
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, EventRestart, got[0].Kind)
}
