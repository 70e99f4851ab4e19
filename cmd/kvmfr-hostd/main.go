// Command kvmfr-hostd runs the host-side frame producer: it maps a shared
// memory region, drives a registered capture backend every tick, and
// serves liveness/readiness/metrics over HTTP. Backend and transport
// selection are the only load-bearing choices (spec.md section 6); CLI
// flag parsing and configuration files are explicitly out of scope, so
// everything here is read from the environment, the way
// examples/hot_restart's IS_HOT_RESTART_KEY/DEBUG_PORT knobs are.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srediag/kvmfr-host/internal/health"
	"github.com/srediag/kvmfr-host/internal/klog"
	"github.com/srediag/kvmfr-host/internal/service"
	"github.com/srediag/kvmfr-host/pkg/capture"
	"github.com/srediag/kvmfr-host/pkg/shm"
)

var log = klog.New("hostd")

func main() {
	backend := envString("KVMFR_HOST_CAPTURE", "null")
	shmName := envString("KVMFR_HOST_SHM_NAME", "kvmfr0")
	shmSize := envInt("KVMFR_HOST_SHM_SIZE", 32<<20)
	maxFrames := envInt("KVMFR_HOST_MAX_FRAMES", 0)
	httpAddr := envString("KVMFR_HOST_HTTP_ADDR", ":8080")
	staleAfter := envDuration("KVMFR_HOST_STALE_AFTER", 2*time.Second)

	registry := capture.NewRegistry()
	registry.Register("null", func() capture.Capture {
		return capture.NewNullCapture(envDuration("KVMFR_HOST_NULL_CAPTURE_TIMEOUT", 100*time.Millisecond))
	})

	backendImpl, err := registry.New(backend)
	if err != nil {
		log.Errorf("no such capture backend %q (known: %v): %v", backend, registry.Names(), err)
		os.Exit(1)
	}

	region := shm.NewPosixRegion(shm.Options{Name: shmName, Size: shmSize, Create: true})
	sessions := capture.NewDefaultSessionWatcher(0)
	defer sessions.Close()

	svc, err := service.New(service.Config{
		Region:         region,
		Capture:        backendImpl,
		SessionWatcher: sessions,
		MaxFrames:      maxFrames,
	})
	if err != nil {
		log.Errorf("building service: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Initialize(ctx); err != nil {
		log.Errorf("initializing service: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := svc.DeInitialize(context.Background()); err != nil {
			log.Warnf("deinitializing service: %v", err)
		}
	}()

	events := health.NewEventLog(128)
	defer events.Close()

	poller, err := health.NewPoller(svc, events, 50*time.Millisecond)
	if err != nil {
		log.Errorf("building health poller: %v", err)
		os.Exit(1)
	}
	if err := poller.Start(); err != nil {
		log.Errorf("starting health poller: %v", err)
		os.Exit(1)
	}
	defer poller.Stop()

	reg := prometheus.NewRegistry()
	for _, c := range svc.MetricsCollectors() {
		reg.MustRegister(c)
	}

	mux := http.NewServeMux()
	health.Mount(mux, health.NewHandler(svc, staleAfter), events)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Infof("kvmfr-hostd running: backend=%q shm=%q size=%d http=%q", backend, shmName, shmSize, httpAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Infof("shutting down")
		cancel()
	}()

	tickInterval := envDuration("KVMFR_HOST_TICK_INTERVAL", time.Millisecond)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Process(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warnf("tick failed: %v", err)
				events.Push(health.EventTickFailure, err.Error(), time.Now())
			}
		}
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("invalid int for %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("invalid duration for %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}
