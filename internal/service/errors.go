package service

import "errors"

// The error kinds of spec.md section 7. Each is a sentinel so callers can
// branch with errors.Is; wrapped context (%w) is added at the call site.
var (
	// ErrMap is FAIL_MAP: SHM init failure. Fatal; abort service startup.
	ErrMap = errors.New("service: FAIL_MAP")
	// ErrSize is FAIL_SIZE: region too small, or frameSize <
	// capture.GetMaxFrameSize(). Fatal for the tick or startup it occurs in.
	ErrSize = errors.New("service: FAIL_SIZE")
	// ErrRetries is FAIL_RETRIES: the capture loop's 2-try budget ran out
	// without a decisive status. As in original_source/host/Service.cpp's
	// own for(i=0;i<2;++i) loop, none of the real capture.Status values
	// ever reach the point that would consume a try, so this is currently
	// unreachable in captureWithRetries. Kept as a sentinel in case a
	// future status is added that does consume the budget.
	ErrRetries = errors.New("service: FAIL_RETRIES")
	// ErrReinit is FAIL_REINIT: capture.ReInitialize() returned an error.
	// Fatal for the tick; callers typically stop.
	ErrReinit = errors.New("service: FAIL_REINIT")
	// ErrCapture wraps a fatal capture.StatusError result for the tick.
	ErrCapture = errors.New("service: capture reported a fatal error")
	// ErrNotReady is returned by Initialize/Process when called out of
	// state-machine order.
	ErrNotReady = errors.New("service: not in a state that permits this call")
)
