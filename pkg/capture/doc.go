// Package capture defines the capture-backend and session-detection
// interfaces the service loop drives, plus a name-based registry so
// concrete backends can be selected at startup without an import cycle
// back into internal/service.
package capture
