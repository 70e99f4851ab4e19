package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// otelInstruments mirrors a subset of metrics.go's prometheus counters
// through the OpenTelemetry metric API, so a deployment that exports via
// OTLP doesn't need a Prometheus scraper in the path. Prometheus stays
// the source of truth for local/pull scraping (metrics.go); this is the
// push-oriented twin.
type otelInstruments struct {
	ticks   metric.Int64Counter
	reinits metric.Int64Counter
}

func newOtelInstruments(meter metric.Meter) (*otelInstruments, error) {
	ticks, err := meter.Int64Counter("kvmfr.host.ticks",
		metric.WithDescription("Number of Process() invocations."))
	if err != nil {
		return nil, fmt.Errorf("service: creating ticks counter: %w", err)
	}
	reinits, err := meter.Int64Counter("kvmfr.host.reinits",
		metric.WithDescription("Number of capture backend reinitializations."))
	if err != nil {
		return nil, fmt.Errorf("service: creating reinits counter: %w", err)
	}
	return &otelInstruments{ticks: ticks, reinits: reinits}, nil
}

// startTickSpan opens a span covering one Process() call.
func (s *Service) startTickSpan(ctx context.Context) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kvmfr.host.tick")
}

// startReinitSpan opens a span covering one REINITIALIZING sub-state pass.
func (s *Service) startReinitSpan(ctx context.Context, reason string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kvmfr.host.reinit", trace.WithAttributes(
		attribute.String("kvmfr.reinit.reason", reason),
	))
}
