package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"

	"github.com/srediag/kvmfr-host/internal/service"
)

// NewHandler builds a healthcheck.Handler wired to the producer service's
// tick freshness and lifecycle state.
//
// Liveness fails once the service has gone staleAfter without a successful
// Process tick; readiness fails outside the states the service can serve
// consumers from.
func NewHandler(svc *service.Service, staleAfter time.Duration) healthcheck.Handler {
	h := healthcheck.NewHandler()

	h.AddLivenessCheck("tick-fresh", func() error {
		last := svc.LastTickAt()
		if last.IsZero() {
			return nil
		}
		if age := time.Since(last); age > staleAfter {
			return fmt.Errorf("last tick %s ago exceeds %s", age, staleAfter)
		}
		return nil
	})

	h.AddReadinessCheck("service-state", func() error {
		switch svc.State() {
		case service.StateReady, service.StateCapturing, service.StatePaused, service.StateReinitializing:
			return nil
		default:
			return fmt.Errorf("service is %s", svc.State())
		}
	})

	return h
}

// Mount registers the liveness, readiness and recent-events endpoints on mux.
func Mount(mux *http.ServeMux, h healthcheck.Handler, events *EventLog) {
	mux.HandleFunc("/live", h.LiveEndpoint)
	mux.HandleFunc("/ready", h.ReadyEndpoint)
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(events.Recent(50))
	})
}
