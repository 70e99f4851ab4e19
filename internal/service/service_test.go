package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/kvmfr-host/pkg/capture"
	"github.com/srediag/kvmfr-host/pkg/kvmfr"
	"github.com/srediag/kvmfr-host/pkg/shm"
)

type ServiceSuite struct {
	suite.Suite

	region  *shm.HeapRegion
	fc      *fakeCapture
	fsw     *fakeSessionWatcher
	svc     *Service
}

func (s *ServiceSuite) SetupTest() {
	s.region = shm.NewHeapRegion(64 << 20)
	s.fc = newFakeCapture(capture.StatusOK)
	s.fsw = &fakeSessionWatcher{id: "session-1"}

	svc, err := New(Config{
		Region:         s.region,
		Capture:        s.fc,
		SessionWatcher: s.fsw,
		MaxFrames:      2,
	})
	s.Require().NoError(err)
	s.svc = svc
	s.Require().NoError(svc.Initialize(context.Background()))
}

func (s *ServiceSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.svc.DeInitialize(ctx)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestColdStartPublishesFirstFrame() {
	require.NoError(s.T(), s.svc.Process(context.Background()))

	fd := s.svc.header.Frame()
	require.True(s.T(), fd.TestUpdate())
	require.Equal(s.T(), uint32(1920), fd.Width())
	require.Equal(s.T(), uint32(s.svc.layout.FramesOff), fd.DataPos())
	require.Equal(s.T(), 1, s.svc.ring.FrameIndex())
	require.Equal(s.T(), StateReady, s.svc.State())
}

func (s *ServiceSuite) TestConsumerClearsUpdateThenSecondTickUsesOtherSlot() {
	require.NoError(s.T(), s.svc.Process(context.Background()))
	s.svc.header.Frame().ClearUpdate()

	require.NoError(s.T(), s.svc.Process(context.Background()))

	fd := s.svc.header.Frame()
	require.True(s.T(), fd.TestUpdate())
	require.Equal(s.T(), uint32(s.svc.layout.SlotOffset(1)), fd.DataPos())
	require.Equal(s.T(), 0, s.svc.ring.FrameIndex())
}

func (s *ServiceSuite) TestIdleTimeoutRepeatsPreviousFrame() {
	require.NoError(s.T(), s.svc.Process(context.Background()))
	s.svc.header.Frame().ClearUpdate()
	require.NoError(s.T(), s.svc.Process(context.Background()))
	s.svc.header.Frame().ClearUpdate()

	dataPosBefore := s.svc.header.Frame().DataPos()
	frameIdxBefore := s.svc.ring.FrameIndex()

	s.fc.statuses = []capture.Status{capture.StatusTimeout}
	s.fc.popIdx = 0
	require.NoError(s.T(), s.svc.Process(context.Background()))

	fd := s.svc.header.Frame()
	require.True(s.T(), fd.TestUpdate())
	require.Equal(s.T(), dataPosBefore, fd.DataPos(), "repeat must not rotate the descriptor into a never-captured slot")
	require.Equal(s.T(), frameIdxBefore, s.svc.ring.FrameIndex(), "repeat must not advance the ring index")
}

func (s *ServiceSuite) TestTimeoutBeforeAnyFrameDoesNotConsumeRetryBudget() {
	s.fc.statuses = []capture.Status{
		capture.StatusTimeout, capture.StatusTimeout, capture.StatusTimeout,
		capture.StatusTimeout, capture.StatusTimeout, capture.StatusOK,
	}
	s.fc.popIdx = 0

	require.NoError(s.T(), s.svc.Process(context.Background()))
	require.Equal(s.T(), 6, s.fc.captureCalls)
}

func (s *ServiceSuite) TestConsumerRestartReinitializesCaptureAndClearsFlag() {
	s.svc.header.SetRestart()

	require.NoError(s.T(), s.svc.Process(context.Background()))

	require.False(s.T(), s.svc.header.TestRestart())
	require.Equal(s.T(), 1, s.fc.reinitCalls)
	require.Equal(s.T(), 1, s.svc.ring.FrameIndex())
}

func (s *ServiceSuite) TestCursorOnlyStatusDoesNotTouchFrameRing() {
	require.NoError(s.T(), s.svc.Process(context.Background()))
	idxBefore := s.svc.ring.FrameIndex()
	updateBefore := s.svc.header.Frame().TestUpdate()

	s.fc.statuses = []capture.Status{capture.StatusCursorOnly}
	s.fc.popIdx = 0
	s.fc.setCursor(capture.CursorState{Updated: true, HasPos: true, X: 3, Y: 4})

	require.NoError(s.T(), s.svc.Process(context.Background()))

	require.Equal(s.T(), idxBefore, s.svc.ring.FrameIndex())
	require.Equal(s.T(), updateBefore, s.svc.header.Frame().TestUpdate())
}

func (s *ServiceSuite) TestFatalCaptureErrorFailsTick() {
	s.fc.statuses = []capture.Status{capture.StatusError}
	s.fc.popIdx = 0

	err := s.svc.Process(context.Background())
	require.ErrorIs(s.T(), err, ErrCapture)
}

func (s *ServiceSuite) TestReinitStatusRunsSubStateAndDoesNotCountAgainstRetries() {
	s.fc.statuses = []capture.Status{capture.StatusReinit, capture.StatusOK}
	s.fc.popIdx = 0

	require.NoError(s.T(), s.svc.Process(context.Background()))
	require.Equal(s.T(), 1, s.fc.reinitCalls)
	require.False(s.T(), s.svc.header.IsPaused())
}

func (s *ServiceSuite) TestOversizedFrameFailsInitialize() {
	region := shm.NewHeapRegion(1 << 10)
	fc := newFakeCapture(capture.StatusOK)
	fc.maxFrameSize = 1 << 20
	svc, err := New(Config{Region: region, Capture: fc})
	require.NoError(s.T(), err)
	require.ErrorIs(s.T(), svc.Initialize(context.Background()), ErrSize)
}

func (s *ServiceSuite) TestDeInitializeIsIdempotentAndAllowsReInitialize() {
	ctx := context.Background()
	require.NoError(s.T(), s.svc.DeInitialize(ctx))
	require.Equal(s.T(), StateStopped, s.svc.State())
	require.NoError(s.T(), s.svc.DeInitialize(ctx))

	region := shm.NewHeapRegion(64 << 20)
	s.svc.region = region
	s.svc.cfg.Region = region
	require.NoError(s.T(), s.svc.Initialize(ctx))
	require.Equal(s.T(), StateReady, s.svc.State())
}

func (s *ServiceSuite) TestOversizedCursorShapeIsDroppedAndCounted() {
	oversized := make([]byte, kvmfr.CursorCapacity+1)
	s.fc.setCursor(capture.CursorState{Updated: true, HasShape: true, Shape: oversized, Width: 1, Height: 1})

	require.NoError(s.T(), s.svc.Process(context.Background()))

	require.Eventually(s.T(), func() bool {
		return counterValue(s.T(), s.svc.metrics.cursorOverflows) == 1
	}, time.Second, time.Millisecond)
	require.Zero(s.T(), s.svc.header.Cursor().Flags()&kvmfr.CursorFlagShape)
}

func (s *ServiceSuite) TestMagicAndVersionSurviveAcrossTicks() {
	before := s.svc.header.Magic()
	beforeVer := s.svc.header.Version()

	for i := 0; i < 5; i++ {
		require.NoError(s.T(), s.svc.Process(context.Background()))
		s.svc.header.Frame().ClearUpdate()
	}

	require.Equal(s.T(), before, s.svc.header.Magic())
	require.Equal(s.T(), beforeVer, s.svc.header.Version())
	require.Equal(s.T(), kvmfr.HeaderMagic, s.svc.header.Magic())
}
