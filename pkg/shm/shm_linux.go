//go:build linux

package shm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"

	"github.com/srediag/kvmfr-host/internal/klog"
)

var log = klog.New("shm")

// PosixRegion maps a POSIX shared-memory object under /dev/shm. This is
// the stand-in for the real inter-VM shared-memory device (spec.md's
// out-of-scope SHM provider): a host actually wired to an ivshmem device
// would mmap that device's file instead, but the Region interface and
// everything above it (layout, header protocol, frame ring, cursor pipe,
// service loop) are identical either way.
type PosixRegion struct {
	opts Options
	fd   int
	mem  []byte
}

// NewPosixRegion returns a Region backed by /dev/shm/<opts.Name>.
func NewPosixRegion(opts Options) *PosixRegion {
	return &PosixRegion{opts: opts, fd: -1}
}

func (r *PosixRegion) Initialize(ctx context.Context) error {
	if r.mem != nil {
		return fmt.Errorf("shm: region already initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	flags := unix.O_RDWR
	if r.opts.Create {
		flags |= unix.O_CREAT
	}
	shmPath := filepath.Join("/dev/shm", r.opts.Name)
	if r.opts.Create {
		if err := checkDevShmFree(uint64(r.opts.Size), shmPath); err != nil {
			return err
		}
	}
	fd, err := unix.Open(shmPath, flags, 0600)
	if err != nil {
		return fmt.Errorf("shm: open %s: %w", shmPath, err)
	}

	size := r.opts.Size
	if r.opts.Create {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return fmt.Errorf("shm: ftruncate %s to %d: %w", shmPath, size, err)
		}
	} else {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return fmt.Errorf("shm: fstat %s: %w", shmPath, err)
		}
		size = int(st.Size)
	}

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("shm: mmap %s (%d bytes): %w", shmPath, size, err)
	}

	r.fd = fd
	r.mem = mem
	log.Infof("mapped %s: %d bytes", shmPath, len(mem))
	return nil
}

// checkDevShmFree preflights a Create-mode Initialize against the free
// space of the tmpfs backing shmPath, so a too-large region fails with a
// clear error instead of an ENOSPC surfacing from Ftruncate deep inside
// the mmap call chain.
func checkDevShmFree(size uint64, shmPath string) error {
	st, err := disk.Usage(filepath.Dir(shmPath))
	if err != nil {
		// Non-fatal: some sandboxes don't expose /dev/shm as its own
		// mount, in which case there's nothing meaningful to check.
		log.Debugf("shm: disk.Usage(%s) unavailable, skipping preflight: %v", shmPath, err)
		return nil
	}
	if st.Free < size {
		return fmt.Errorf("shm: %d bytes requested but only %d free on %s", size, st.Free, filepath.Dir(shmPath))
	}
	return nil
}

func (r *PosixRegion) GetSize() int { return len(r.mem) }

func (r *PosixRegion) GetMemory() []byte { return r.mem }

func (r *PosixRegion) DeInitialize() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	if r.fd >= 0 {
		if cerr := unix.Close(r.fd); cerr != nil && err == nil {
			err = cerr
		}
		r.fd = -1
	}
	if r.opts.Create {
		if rerr := os.Remove(filepath.Join("/dev/shm", r.opts.Name)); rerr != nil && !os.IsNotExist(rerr) {
			log.Warnf("remove %s failed: %v", r.opts.Name, rerr)
		}
	}
	return err
}
