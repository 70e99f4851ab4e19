package capture

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/srediag/kvmfr-host/internal/klog"
)

var log = klog.New("capture")

// DefaultSessionWatcher polls the host's logged-in users on an interval
// and reports the earliest-started session as "the" interactive session,
// mirroring WTSGetActiveConsoleSessionId from original_source/host's
// Service.cpp on platforms with only one console session of interest.
//
// It is deliberately coarse: on multi-seat hosts a real backend should
// supply its own SessionWatcher.
type DefaultSessionWatcher struct {
	interval time.Duration

	mu      sync.RWMutex
	current string
	stop    chan struct{}
	done    chan struct{}
}

// NewDefaultSessionWatcher starts polling immediately in a background
// goroutine at the given interval.
func NewDefaultSessionWatcher(interval time.Duration) *DefaultSessionWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w := &DefaultSessionWatcher{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.poll()
	go w.run()
	return w
}

func (w *DefaultSessionWatcher) run() {
	defer close(w.done)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.poll()
		}
	}
}

func (w *DefaultSessionWatcher) poll() {
	users, err := host.Users()
	if err != nil {
		log.Warnf("session watcher: host.Users failed: %v", err)
		return
	}
	next := ""
	var earliest int
	for i, u := range users {
		if i == 0 || u.Started < earliest {
			earliest = u.Started
			next = u.User + "@" + u.Terminal
		}
	}
	w.mu.Lock()
	changed := next != w.current
	w.current = next
	w.mu.Unlock()
	if changed {
		log.Infof("session watcher: active session now %q", next)
	}
}

// CurrentSessionId implements SessionWatcher.
func (w *DefaultSessionWatcher) CurrentSessionId() interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the background poller.
func (w *DefaultSessionWatcher) Close() {
	close(w.stop)
	<-w.done
}
