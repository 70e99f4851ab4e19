package service

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the prometheus.Collectors the service loop updates every
// tick. They are constructed with prometheus.New*, never MustRegister'd
// here: the caller decides which registry (if any) to publish them on, so
// tests can construct a Service without touching the default registry.
type metrics struct {
	ticksTotal      prometheus.Counter
	framesTotal     prometheus.Counter
	repeatsTotal    prometheus.Counter
	cursorTotal     prometheus.Counter
	restartsTotal   prometheus.Counter
	reinitsTotal    prometheus.Counter
	failuresTotal   *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	cursorOverflows prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmfr_host_ticks_total",
			Help: "Total number of Process() invocations.",
		}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmfr_host_frames_published_total",
			Help: "Total number of fresh frames published to the frame ring.",
		}),
		repeatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmfr_host_frames_repeated_total",
			Help: "Total number of idle-repeat frame commits.",
		}),
		cursorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmfr_host_cursor_updates_total",
			Help: "Total number of cursor updates handed off to the cursor pipe.",
		}),
		restartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmfr_host_restarts_observed_total",
			Help: "Total number of consumer-requested RESTART flags observed.",
		}),
		reinitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmfr_host_reinits_total",
			Help: "Total number of times the capture backend was reinitialized.",
		}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvmfr_host_tick_failures_total",
			Help: "Total number of tick failures by kind.",
		}, []string{"kind"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kvmfr_host_tick_duration_seconds",
			Help:    "Wall-clock duration of Process() calls.",
			Buckets: prometheus.DefBuckets,
		}),
		cursorOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvmfr_host_cursor_shape_overflows_total",
			Help: "Total number of oversized cursor shapes dropped.",
		}),
	}
}

// Collectors returns every metric so the caller can register them on
// whichever prometheus.Registerer it uses.
func (m *metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ticksTotal, m.framesTotal, m.repeatsTotal, m.cursorTotal,
		m.restartsTotal, m.reinitsTotal, m.failuresTotal, m.tickDuration,
		m.cursorOverflows,
	}
}
