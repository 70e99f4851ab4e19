package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// errNotYet is a private sentinel driving the backoff.Retry loops below;
// it never escapes reinitialize.
var errNotYet = errors.New("service: condition not yet satisfied")

// reinitialize runs the REINITIALIZING sub-state (spec.md 4.5): pause
// publishing, wait for the original interactive session to be active
// again, wait for the capture backend to report it can be reinitialized,
// reinitialize it, and re-validate the frame size budget.
func (s *Service) reinitialize(ctx context.Context, reason string) error {
	ctx, span := s.startReinitSpan(ctx, reason)
	defer span.End()

	s.mu.Lock()
	s.state = StateReinitializing
	s.mu.Unlock()
	s.metrics.reinitsTotal.Inc()
	s.otel.reinits.Add(ctx, 1)

	s.header.SetPaused()

	if err := s.pollUntil(ctx, s.sessionMatches); err != nil {
		return fmt.Errorf("service: waiting for session match: %w", err)
	}
	if err := s.pollUntil(ctx, s.capture.CanInitialize); err != nil {
		return fmt.Errorf("service: waiting for capture.CanInitialize: %w", err)
	}

	if err := s.capture.ReInitialize(); err != nil {
		return fmt.Errorf("%w: %w", ErrReinit, err)
	}
	if err := s.validateFrameSize(); err != nil {
		return err
	}

	s.header.ClearPaused()

	s.mu.Lock()
	s.state = StateCapturing
	s.mu.Unlock()
	return nil
}

func (s *Service) sessionMatches() bool {
	return s.sessionWatcher.CurrentSessionId() == s.startSessionID
}

// pollUntil retries cond every ReinitPollInterval (100ms by default, per
// spec.md) until it returns true or ctx is done. There is no maximum
// elapsed time: a switched-out session or a not-yet-ready backend is
// expected to eventually resolve, and giving up here would desynchronize
// the state machine from reality.
func (s *Service) pollUntil(ctx context.Context, cond func() bool) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(s.cfg.reinitPollInterval()), ctx)
	return backoff.Retry(func() error {
		if cond() {
			return nil
		}
		return errNotYet
	}, b)
}
