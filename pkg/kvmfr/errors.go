package kvmfr

import "errors"

// Sentinel errors for the failure conditions in spec.md section 7.
var (
	// ErrRegionTooSmall is FAIL_SIZE for a region that cannot fit the
	// header, cursor area and at least one frame slot.
	ErrRegionTooSmall = errors.New("kvmfr: shared memory region too small")
	// ErrFrameTooLarge is FAIL_SIZE for a frame slot smaller than the
	// capture backend's maximum frame size.
	ErrFrameTooLarge = errors.New("kvmfr: frame slot smaller than capture's max frame size")
)
