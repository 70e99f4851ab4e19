package health

import (
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/srediag/kvmfr-host/internal/service"
)

// Poller runs a single pooled goroutine (rather than a bare `go func()`)
// that periodically samples the service state and records transitions into
// an EventLog, so an operator watching /events sees reinit and pause
// windows even if they never overlap with a tick failure.
type Poller struct {
	svc      *service.Service
	events   *EventLog
	interval time.Duration

	pool *ants.Pool
	stop chan struct{}
	done chan struct{}
}

// NewPoller builds a poller. Call Start to begin sampling.
func NewPoller(svc *service.Service, events *EventLog, interval time.Duration) (*Poller, error) {
	pool, err := ants.NewPool(1, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &Poller{
		svc:      svc,
		events:   events,
		interval: interval,
		pool:     pool,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start submits the sampling loop to the pool.
func (p *Poller) Start() error {
	return p.pool.Submit(p.run)
}

// Stop signals the loop to exit and releases the pool.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
	p.pool.Release()
}

func (p *Poller) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := p.svc.State()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			cur := p.svc.State()
			if cur == last {
				continue
			}
			if cur == service.StateReinitializing {
				p.events.Push(EventReinitEnter, "state-transition", time.Now())
			} else if last == service.StateReinitializing {
				p.events.Push(EventReinitExit, "state-transition", time.Now())
			}
			last = cur
		}
	}
}
