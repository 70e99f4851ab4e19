// Package kvmfr defines the on-wire header protocol shared between the
// host-side frame producer and the guest-side consumer over a mapped
// shared-memory region. Every struct here is a fixed byte layout that may
// be read by a foreign process at any instant; all field accesses that
// participate in hand-off must go through the atomic helpers in flags.go
// rather than plain Go field assignment.
package kvmfr

import "encoding/binary"

// HeaderMagic is the fixed 8-byte tag stamped at offset 0 of the region.
var HeaderMagic = [8]byte{'K', 'V', 'M', 'F', 'R', '-', '-', '-'}

// ProtocolVersion is the wire version stamped by Initialize.
const ProtocolVersion uint32 = 3

// Global header flags (byte 0 of the flags field).
const (
	FlagRestart byte = 1 << iota // consumer -> producer: reset and republish
	FlagPaused                   // producer -> consumer: not currently publishing
)

// Frame descriptor flags.
const (
	FrameFlagUpdate byte = 1 << iota // hand-off token for the frame slot
)

// Cursor descriptor flags.
const (
	CursorFlagPos byte = 1 << iota
	CursorFlagShape
	CursorFlagVisible
	CursorFlagUpdate
)

// Frame type enum, mirrors what a capture backend reports via GetFrameType.
type FrameType uint32

const (
	FrameTypeInvalid FrameType = iota
	FrameTypeBGRA
	FrameTypeRGBA
	FrameTypeRGBA10
	FrameTypeYUV420
)

// Cursor type enum.
type CursorType uint32

const (
	CursorTypeColor CursorType = iota
	CursorTypeMonochrome
	CursorTypeMaskedColor
)

// Every flags byte below is followed by 3 reserved/padding bytes so that
// every multi-byte field that follows it lands on a natural 4-byte
// boundary — the same layout a C compiler produces for this struct without
// an explicit pack(1) pragma, and a real requirement here, not just
// tidiness: it gives every flags byte its own private 4-byte machine word,
// so the sub-word atomic trick in flags.go never shares a word with a
// plain (non-atomic) field write. See flags.go's package comment.
const (
	headerFixedSize = 8 + 4 + 4 + 4 // magic + version + hostID + (flags+pad)
	frameDescSize   = 4 + 4 + 4 + 4 + 4 + 4 + 4 // (flags+pad) + type/width/height/stride/pitch/dataPos
	cursorDescSize  = 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 // (flags+pad) + version/type/width/height/pitch/dataPos/x/y
	// HeaderSize is sizeof(Header) on the wire.
	HeaderSize = headerFixedSize + frameDescSize + cursorDescSize
)

// Byte offsets of each field within the mapped region.
const (
	offMagic    = 0
	offVersion  = offMagic + 8
	offHostID   = offVersion + 4
	offFlags    = offHostID + 4
	offFrame    = offFlags + 4
	offFrameEnd = offFrame + frameDescSize
	offCursor   = offFrameEnd

	// FrameDescriptor field offsets, relative to offFrame.
	fdFlags   = 0
	fdType    = fdFlags + 4
	fdWidth   = fdType + 4
	fdHeight  = fdWidth + 4
	fdStride  = fdHeight + 4
	fdPitch   = fdStride + 4
	fdDataPos = fdPitch + 4

	// CursorDescriptor field offsets, relative to offCursor.
	cdFlags   = 0
	cdVersion = cdFlags + 4
	cdType    = cdVersion + 4
	cdWidth   = cdType + 4
	cdHeight  = cdWidth + 4
	cdPitch   = cdHeight + 4
	cdDataPos = cdPitch + 4
	cdX       = cdDataPos + 4
	cdY       = cdX + 4
)

// Header is a view over the fixed-layout region header. It does not own
// the memory; Bind attaches it to a byte slice obtained from an shm.Region.
type Header struct {
	mem []byte
}

// Bind returns a Header view over mem, which must be at least HeaderSize
// bytes and must outlive the Header.
func Bind(mem []byte) *Header {
	if len(mem) < HeaderSize {
		panic("kvmfr: region too small for Header")
	}
	return &Header{mem: mem}
}

// Stamp writes the magic and version, zeroes both descriptors and clears
// RESTART and PAUSED. This is the "producer restarted" announcement described in
// spec.md section 3 (Lifecycle): it is called on every Initialize, telling
// any already-connected consumer to reset its state.
func (h *Header) Stamp() {
	copy(h.mem[offMagic:offMagic+8], HeaderMagic[:])
	binary.LittleEndian.PutUint32(h.mem[offVersion:], ProtocolVersion)
	for i := offFrame; i < offCursor+cursorDescSize; i++ {
		h.mem[i] = 0
	}
	h.ClearRestart()
	h.ClearPaused()
}

// Magic returns the 8 magic bytes currently stamped in the header.
func (h *Header) Magic() [8]byte {
	var m [8]byte
	copy(m[:], h.mem[offMagic:offMagic+8])
	return m
}

// Version returns the protocol version currently stamped in the header.
func (h *Header) Version() uint32 {
	return binary.LittleEndian.Uint32(h.mem[offVersion:])
}

// HostID returns the opaque host identifier. The core never writes this
// field after Initialize (spec.md invariant 6); it is set by the SHM
// provider.
func (h *Header) HostID() uint32 {
	return binary.LittleEndian.Uint32(h.mem[offHostID:])
}

// Frame returns a view over the embedded FrameDescriptor.
func (h *Header) Frame() *FrameDescriptor {
	return &FrameDescriptor{mem: h.mem[offFrame:offFrameEnd]}
}

// Cursor returns a view over the embedded CursorDescriptor.
func (h *Header) Cursor() *CursorDescriptor {
	return &CursorDescriptor{mem: h.mem[offCursor : offCursor+cursorDescSize]}
}

// FrameDescriptor is a view over the frame hand-off descriptor.
type FrameDescriptor struct{ mem []byte }

// Type returns the current frame pixel format.
func (f *FrameDescriptor) Type() FrameType {
	return FrameType(binary.LittleEndian.Uint32(f.mem[fdType:]))
}

// Width, Height, Stride, Pitch, DataPos read the corresponding descriptor
// fields. These must only be read by the producer while UPDATE == 0, or by
// the consumer while UPDATE == 1 (spec.md invariant 4).
func (f *FrameDescriptor) Width() uint32    { return binary.LittleEndian.Uint32(f.mem[fdWidth:]) }
func (f *FrameDescriptor) Height() uint32   { return binary.LittleEndian.Uint32(f.mem[fdHeight:]) }
func (f *FrameDescriptor) Stride() uint32   { return binary.LittleEndian.Uint32(f.mem[fdStride:]) }
func (f *FrameDescriptor) Pitch() uint32    { return binary.LittleEndian.Uint32(f.mem[fdPitch:]) }
func (f *FrameDescriptor) DataPos() uint32  { return binary.LittleEndian.Uint32(f.mem[fdDataPos:]) }

// SetFields overwrites every descriptor field except flags. Callers must
// only do this while UPDATE == 0 (i.e. before calling SetUpdate).
func (f *FrameDescriptor) SetFields(typ FrameType, width, height, stride, pitch, dataPos uint32) {
	binary.LittleEndian.PutUint32(f.mem[fdType:], uint32(typ))
	binary.LittleEndian.PutUint32(f.mem[fdWidth:], width)
	binary.LittleEndian.PutUint32(f.mem[fdHeight:], height)
	binary.LittleEndian.PutUint32(f.mem[fdStride:], stride)
	binary.LittleEndian.PutUint32(f.mem[fdPitch:], pitch)
	binary.LittleEndian.PutUint32(f.mem[fdDataPos:], dataPos)
}

// CursorDescriptor is a view over the cursor hand-off descriptor.
type CursorDescriptor struct{ mem []byte }

func (c *CursorDescriptor) Version() uint32 { return binary.LittleEndian.Uint32(c.mem[cdVersion:]) }
func (c *CursorDescriptor) Type() CursorType {
	return CursorType(binary.LittleEndian.Uint32(c.mem[cdType:]))
}
func (c *CursorDescriptor) Width() uint32   { return binary.LittleEndian.Uint32(c.mem[cdWidth:]) }
func (c *CursorDescriptor) Height() uint32  { return binary.LittleEndian.Uint32(c.mem[cdHeight:]) }
func (c *CursorDescriptor) Pitch() uint32   { return binary.LittleEndian.Uint32(c.mem[cdPitch:]) }
func (c *CursorDescriptor) DataPos() uint32 { return binary.LittleEndian.Uint32(c.mem[cdDataPos:]) }
func (c *CursorDescriptor) X() int32        { return int32(binary.LittleEndian.Uint32(c.mem[cdX:])) }
func (c *CursorDescriptor) Y() int32        { return int32(binary.LittleEndian.Uint32(c.mem[cdY:])) }

// SetPos writes the position fields. Callers must hold the descriptor's
// UPDATE == 0 window.
func (c *CursorDescriptor) SetPos(x, y int32) {
	binary.LittleEndian.PutUint32(c.mem[cdX:], uint32(x))
	binary.LittleEndian.PutUint32(c.mem[cdY:], uint32(y))
}

// SetShape writes the shape fields and bumps version. Callers must hold
// the descriptor's UPDATE == 0 window.
func (c *CursorDescriptor) SetShape(typ CursorType, width, height, pitch, dataPos uint32) {
	binary.LittleEndian.PutUint32(c.mem[cdVersion:], c.Version()+1)
	binary.LittleEndian.PutUint32(c.mem[cdType:], uint32(typ))
	binary.LittleEndian.PutUint32(c.mem[cdWidth:], width)
	binary.LittleEndian.PutUint32(c.mem[cdHeight:], height)
	binary.LittleEndian.PutUint32(c.mem[cdPitch:], pitch)
	binary.LittleEndian.PutUint32(c.mem[cdDataPos:], dataPos)
}
