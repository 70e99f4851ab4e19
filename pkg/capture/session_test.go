package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultSessionWatcherReportsSomeSession(t *testing.T) {
	w := NewDefaultSessionWatcher(10 * time.Millisecond)
	defer w.Close()

	// host.Users() may return nothing in a container sandbox; either way
	// CurrentSessionId must not panic and must be stable across reads.
	first := w.CurrentSessionId()
	time.Sleep(30 * time.Millisecond)
	second := w.CurrentSessionId()
	require.Equal(t, first, second)
}
