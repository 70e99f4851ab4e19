package kvmfr

import "fmt"

// CursorCapacity is the fixed size of the cursor pixel area (spec.md
// section 3: "cursorCap = 1 MiB fixed").
const CursorCapacity = 1 << 20

// DefaultMaxFrames is MAX_FRAMES when the caller doesn't override it.
const DefaultMaxFrames = 2

// alignUp rounds x up to the next 128-byte boundary.
func alignUp(x uint64) uint64 { return (x + 0x7F) &^ 0x7F }

// alignDown rounds x down to the previous 128-byte boundary.
func alignDown(x uint64) uint64 { return x &^ 0x7F }

// Layout describes how a region of size Size is carved into the header,
// cursor area and frame ring (spec.md section 3).
type Layout struct {
	Size       uint64
	MaxFrames  int
	HeaderOff  uint64
	CursorOff  uint64
	CursorCap  uint64
	FramesOff  uint64
	FrameSize  uint64
	FrameOffs  []uint64 // per-slot data offset, len == MaxFrames
}

// ComputeLayout validates and derives the section offsets for a region of
// the given size. maxFrameSize is the capture backend's
// GetMaxFrameSize() and is used only for the FAIL_SIZE check (invariant 2).
func ComputeLayout(size uint64, maxFrames int, maxFrameSize uint64) (*Layout, error) {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	if size < uint64(HeaderSize) {
		return nil, fmt.Errorf("%w: region size %d smaller than header size %d", ErrRegionTooSmall, size, HeaderSize)
	}

	cursorOff := alignUp(uint64(HeaderSize))
	framesOff := alignUp(cursorOff + CursorCapacity)
	if framesOff > size {
		return nil, fmt.Errorf("%w: region size %d too small to fit header and cursor area (need %d)", ErrRegionTooSmall, size, framesOff)
	}

	frameSize := alignDown((size - framesOff) / uint64(maxFrames))
	if frameSize == 0 {
		return nil, fmt.Errorf("%w: region size %d leaves no room for any frame slot", ErrRegionTooSmall, size)
	}
	if maxFrameSize > 0 && frameSize < maxFrameSize {
		return nil, fmt.Errorf("%w: frame slot size %d smaller than capture's max frame size %d", ErrFrameTooLarge, frameSize, maxFrameSize)
	}

	offs := make([]uint64, maxFrames)
	for i := 0; i < maxFrames; i++ {
		offs[i] = framesOff + uint64(i)*frameSize
	}

	return &Layout{
		Size:      size,
		MaxFrames: maxFrames,
		HeaderOff: 0,
		CursorOff: cursorOff,
		CursorCap: CursorCapacity,
		FramesOff: framesOff,
		FrameSize: frameSize,
		FrameOffs: offs,
	}, nil
}

// SlotOffset returns the data offset of frame slot i.
func (l *Layout) SlotOffset(i int) uint64 { return l.FrameOffs[i] }
