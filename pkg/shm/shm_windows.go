//go:build windows

package shm

import (
	"context"
	"errors"
)

// PosixRegion is unavailable on Windows; a real host build would map the
// region through CreateFileMapping/MapViewOfFile against the ivshmem
// device instead. Out of scope here (spec.md section 1): the device
// enumeration and mapping backend is an external collaborator, specified
// only at the Region interface.
type PosixRegion struct{ opts Options }

func NewPosixRegion(opts Options) *PosixRegion { return &PosixRegion{opts: opts} }

func (r *PosixRegion) Initialize(ctx context.Context) error {
	return errors.New("shm: PosixRegion is not implemented on windows; wire a CreateFileMapping-backed Region")
}

func (r *PosixRegion) GetSize() int       { return 0 }
func (r *PosixRegion) GetMemory() []byte  { return nil }
func (r *PosixRegion) DeInitialize() error { return nil }
