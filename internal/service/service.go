package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/kvmfr-host/internal/klog"
	"github.com/srediag/kvmfr-host/pkg/capture"
	"github.com/srediag/kvmfr-host/pkg/cursor"
	"github.com/srediag/kvmfr-host/pkg/frame"
	"github.com/srediag/kvmfr-host/pkg/kvmfr"
	"github.com/srediag/kvmfr-host/pkg/shm"
)

var log = klog.New("service")

// State is a value of the top-level state machine (spec.md section 4.5).
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateCapturing
	StatePaused
	StateReinitializing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateReady:
		return "READY"
	case StateCapturing:
		return "CAPTURING"
	case StatePaused:
		return "PAUSED"
	case StateReinitializing:
		return "REINITIALIZING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Service drives the frame ring and cursor pipe over a live SHM mapping,
// per capture backend event, one tick per Process call.
type Service struct {
	cfg Config

	region         shm.Region
	capture        capture.Capture
	sessionWatcher capture.SessionWatcher
	tracer         trace.Tracer
	otel           *otelInstruments
	metrics        *metrics

	mu             sync.Mutex
	state          State
	header         *kvmfr.Header
	layout         *kvmfr.Layout
	ring           *frame.Ring
	pipe           *cursor.Pipe
	startSessionID interface{}
	lastTickAt     time.Time
}

// New constructs a Service. Nothing is initialized until Initialize runs.
func New(cfg Config) (*Service, error) {
	if cfg.Region == nil {
		return nil, fmt.Errorf("service: Config.Region is required")
	}
	if cfg.Capture == nil {
		return nil, fmt.Errorf("service: Config.Capture is required")
	}
	otelInst, err := newOtelInstruments(cfg.meter())
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:            cfg,
		region:         cfg.Region,
		capture:        cfg.Capture,
		sessionWatcher: cfg.sessionWatcher(),
		tracer:         cfg.tracer(),
		otel:           otelInst,
		metrics:        newMetrics(),
		state:          StateUninitialized,
	}, nil
}

// MetricsCollectors returns the prometheus collectors the caller should
// register on its Registerer of choice.
func (s *Service) MetricsCollectors() []prometheus.Collector {
	return s.metrics.Collectors()
}

// State reports the current state-machine value.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastTickAt reports when Process last completed successfully, the zero
// time if no tick has completed yet. internal/health uses this for
// liveness.
func (s *Service) LastTickAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTickAt
}

// Initialize brings up SHM, derives the layout, stamps the header, resets
// the frame ring, and starts the cursor worker (spec.md 4.5,
// UNINITIALIZED -> READY).
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized && s.state != StateStopped {
		return fmt.Errorf("%w: Initialize called in state %s", ErrNotReady, s.state)
	}

	if err := s.region.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMap, err)
	}

	if err := s.capture.Initialize(ctx); err != nil {
		_ = s.region.DeInitialize()
		return fmt.Errorf("service: capture.Initialize: %w", err)
	}

	maxFrames := s.cfg.MaxFrames
	layout, err := kvmfr.ComputeLayout(uint64(s.region.GetSize()), maxFrames, s.capture.GetMaxFrameSize())
	if err != nil {
		_ = s.capture.DeInitialize()
		_ = s.region.DeInitialize()
		return fmt.Errorf("%w: %w", ErrSize, err)
	}

	mem := s.region.GetMemory()
	header := kvmfr.Bind(mem[:kvmfr.HeaderSize])
	header.Stamp()

	pipe, err := cursor.NewPipe(header, mem[layout.CursorOff:layout.CursorOff+layout.CursorCap], layout.CursorOff)
	if err != nil {
		_ = s.capture.DeInitialize()
		_ = s.region.DeInitialize()
		return fmt.Errorf("service: %w", err)
	}
	pipe.OnShapeOverflow = func() { s.metrics.cursorOverflows.Inc() }
	if err := pipe.Start(); err != nil {
		_ = s.capture.DeInitialize()
		_ = s.region.DeInitialize()
		return fmt.Errorf("service: starting cursor worker: %w", err)
	}

	s.header = header
	s.layout = layout
	s.ring = frame.NewRing(header, mem, layout)
	s.ring.Reset()
	s.pipe = pipe
	s.startSessionID = s.sessionWatcher.CurrentSessionId()
	s.state = StateReady

	log.Infof("initialized: region=%d bytes cursorOff=%d framesOff=%d frameSize=%d maxFrames=%d",
		layout.Size, layout.CursorOff, layout.FramesOff, layout.FrameSize, layout.MaxFrames)
	return nil
}

// Process runs one tick of the per-tick algorithm (spec.md 4.5).
func (s *Service) Process(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateCapturing && s.state != StatePaused {
		s.mu.Unlock()
		return fmt.Errorf("%w: Process called in state %s", ErrNotReady, s.state)
	}
	s.state = StateCapturing
	s.mu.Unlock()

	ctx, span := s.startTickSpan(ctx)
	defer span.End()
	s.metrics.ticksTotal.Inc()
	s.otel.ticks.Add(ctx, 1)
	start := time.Now()
	defer func() { s.metrics.tickDuration.Observe(time.Since(start).Seconds()) }()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.recordFailure(err)
		}
	}()

	if s.header.TestRestart() {
		s.metrics.restartsTotal.Inc()
		if err := s.handleRestart(ctx); err != nil {
			return err
		}
	}

	repeat, cursorOnly, err := s.captureWithRetries(ctx)
	if err != nil {
		return err
	}

	if cur := s.capture.GetCursor(); cur.Updated {
		s.pipe.Inbox().Publish(cur)
		s.pipe.Notify()
		s.metrics.cursorTotal.Inc()
	}

	if !cursorOnly {
		if err := s.commitFrame(ctx, repeat); err != nil {
			if !errors.Is(err, frame.ErrAbandoned) {
				return err
			}
		} else if repeat {
			s.metrics.repeatsTotal.Inc()
		} else {
			s.metrics.framesTotal.Inc()
		}
	}

	s.header.ClearPaused()

	s.mu.Lock()
	s.state = StateReady
	s.lastTickAt = time.Now()
	s.mu.Unlock()
	return nil
}

// handleRestart implements spec.md 4.5 step 1: consumer-requested restart.
func (s *Service) handleRestart(ctx context.Context) error {
	if err := s.capture.ReInitialize(); err != nil {
		return fmt.Errorf("%w: %w", ErrReinit, err)
	}
	if err := s.validateFrameSize(); err != nil {
		return err
	}
	s.header.ClearRestart()
	return nil
}

func (s *Service) validateFrameSize() error {
	if max := s.capture.GetMaxFrameSize(); max > s.layout.FrameSize {
		return fmt.Errorf("%w: capture max frame size %d exceeds slot size %d", ErrSize, max, s.layout.FrameSize)
	}
	return nil
}

// captureWithRetries runs the up-to-2-try capture loop of spec.md 4.5
// step 2. It returns whether the tick should run in repeat mode or
// cursor-only mode.
//
// tries is never actually decremented below: every capture.Status either
// returns immediately or is an explicitly non-counting outcome, so the
// ErrRetries path is presently unreachable. This mirrors
// original_source/host/Service.cpp's own for(i=0;i<2;++i) loop, where the
// same five statuses leave the loop's increment equally unreached. The
// budget stays wired for a future status that should count against it.
func (s *Service) captureWithRetries(ctx context.Context) (repeat, cursorOnly bool, err error) {
	tries := 2
	for tries > 0 {
		status := s.capture.Capture(ctx)
		switch status {
		case capture.StatusOK:
			return false, false, nil
		case capture.StatusTimeout:
			if s.ring.HaveFrame() {
				return true, false, nil
			}
			// A timeout before any frame has ever been sent is not an
			// error and does not count against the retry budget.
		case capture.StatusCursorOnly:
			return false, true, nil
		case capture.StatusError:
			return false, false, fmt.Errorf("%w", ErrCapture)
		case capture.StatusReinit:
			if err := s.reinitialize(ctx, "capture-requested"); err != nil {
				return false, false, err
			}
			// Does not count against the retry budget.
		default:
			return false, false, fmt.Errorf("service: unknown capture status %v", status)
		}
		if err := ctx.Err(); err != nil {
			return false, false, err
		}
	}
	return false, false, ErrRetries
}

func (s *Service) commitFrame(ctx context.Context, repeat bool) error {
	if repeat {
		return s.ring.CommitRepeat(ctx)
	}
	slot := s.ring.CurrentSlot()
	info := &capture.FrameInfo{Buffer: slot, BufferSize: len(slot)}
	if status := s.capture.GetFrame(info); status == capture.StatusError {
		return fmt.Errorf("%w", ErrCapture)
	}
	return s.ring.CommitFresh(ctx, s.capture.GetFrameType(), info)
}

func (s *Service) recordFailure(err error) {
	kind := "unknown"
	switch {
	case errors.Is(err, ErrMap):
		kind = "map"
	case errors.Is(err, ErrSize):
		kind = "size"
	case errors.Is(err, ErrRetries):
		kind = "retries"
	case errors.Is(err, ErrReinit):
		kind = "reinit"
	case errors.Is(err, ErrCapture):
		kind = "capture"
	}
	s.metrics.failuresTotal.WithLabelValues(kind).Inc()
}

// DeInitialize joins the cursor worker, tears down capture and SHM, and
// nulls out layout state so a subsequent Initialize starts clean
// (spec.md 4.5, De-initialization).
func (s *Service) DeInitialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		return nil
	}

	var errs []error
	if s.pipe != nil {
		if err := s.pipe.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("service: stopping cursor worker: %w", err))
		}
	}
	if err := s.capture.DeInitialize(); err != nil {
		errs = append(errs, fmt.Errorf("service: capture.DeInitialize: %w", err))
	}
	if err := s.region.DeInitialize(); err != nil {
		errs = append(errs, fmt.Errorf("service: region.DeInitialize: %w", err))
	}

	s.header = nil
	s.layout = nil
	s.ring = nil
	s.pipe = nil
	s.state = StateStopped

	return errors.Join(errs...)
}
