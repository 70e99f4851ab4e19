// Package service implements the top-level state machine (spec.md
// component C5): it orchestrates capture, honors consumer-requested
// restarts and capture-requested reinits, suspends on session change,
// and drives the frame ring and cursor pipe every tick.
package service

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/kvmfr-host/pkg/capture"
	"github.com/srediag/kvmfr-host/pkg/shm"
)

// Config holds everything Service needs at construction time. Only a
// capture backend and an SHM region are load-bearing (spec.md section 6,
// "the core accepts only a capture implementation choice and an SHM
// provider handle; everything else is derived"); Meter and Tracer default
// to no-ops when left nil.
type Config struct {
	Region  shm.Region
	Capture capture.Capture

	// SessionWatcher defaults to a no-op that always reports the same
	// session, which is correct for backends that don't multiplex OS
	// sessions.
	SessionWatcher capture.SessionWatcher

	// MaxFrames is MAX_FRAMES; 0 selects kvmfr.DefaultMaxFrames.
	MaxFrames int

	// ReinitPollInterval is how often the REINITIALIZING sub-state polls
	// session match and capture.CanInitialize(); 0 selects 100ms, the
	// value spec.md names explicitly.
	ReinitPollInterval time.Duration

	Meter  metric.Meter
	Tracer trace.Tracer
}

type staticSessionWatcher struct{ id interface{} }

func (s staticSessionWatcher) CurrentSessionId() interface{} { return s.id }

func (c *Config) sessionWatcher() capture.SessionWatcher {
	if c.SessionWatcher != nil {
		return c.SessionWatcher
	}
	return staticSessionWatcher{id: "default"}
}

func (c *Config) reinitPollInterval() time.Duration {
	if c.ReinitPollInterval > 0 {
		return c.ReinitPollInterval
	}
	return 100 * time.Millisecond
}

func (c *Config) tracer() trace.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return tracenoop.NewTracerProvider().Tracer("kvmfr-host")
}

func (c *Config) meter() metric.Meter {
	if c.Meter != nil {
		return c.Meter
	}
	return metricnoop.NewMeterProvider().Meter("kvmfr-host")
}
