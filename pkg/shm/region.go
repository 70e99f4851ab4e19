// Package shm provides the SHM capability (spec.md component C1): mapping
// a shared-memory region and exposing its base pointer and size to the
// rest of the producer. Device enumeration and the concrete transport
// (an inter-VM shared-memory device, a POSIX shm_open file, ...) are
// platform-specific and live in the shm_*.go files; this file defines
// the capability surface everything else in the module depends on.
package shm

import "context"

// Region is the SHM capability consumed by the service loop (spec.md
// section 6): Initialize/GetSize/GetMemory/DeInitialize.
type Region interface {
	// Initialize maps or creates the backing region. Calling Initialize
	// on an already-initialized Region is undefined; callers must
	// DeInitialize first.
	Initialize(ctx context.Context) error
	// GetSize returns the mapped region's size in bytes. Valid only
	// after a successful Initialize.
	GetSize() int
	// GetMemory returns the mapped region as a byte slice. The slice is
	// only valid between Initialize and DeInitialize.
	GetMemory() []byte
	// DeInitialize unmaps the region. Safe to call more than once.
	DeInitialize() error
}

// Options configures a Region provider.
type Options struct {
	// Name identifies the shared-memory object (e.g. an ivshmem device
	// node, or the /dev/shm file name PosixRegion maps).
	Name string
	// Size is the region size in bytes. Required when Create is true.
	Size int
	// Create requests that the provider create the object if it does
	// not already exist, rather than only opening an existing one.
	Create bool
}
