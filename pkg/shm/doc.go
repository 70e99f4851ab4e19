// Package shm implements the SHM capability (spec.md component C1): a
// mapped byte range, its size, and platform-specific mapping backends.
// It knows nothing about the header protocol carved out of that range —
// see package kvmfr for that.
package shm
