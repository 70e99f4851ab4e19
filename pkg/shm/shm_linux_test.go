//go:build linux

package shm

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPosixRegionCreateWriteReopen(t *testing.T) {
	if _, err := os.Stat("/dev/shm"); err != nil {
		t.Skip("/dev/shm not available in this environment")
	}
	name := fmt.Sprintf("kvmfr-host-test-%d", os.Getpid())

	writer := NewPosixRegion(Options{Name: name, Size: 8192, Create: true})
	if err := writer.Initialize(context.Background()); err != nil {
		t.Skipf("cannot map /dev/shm in this sandbox: %v", err)
	}
	defer func() { _ = writer.DeInitialize() }()

	mem := writer.GetMemory()
	require.Len(t, mem, 8192)
	copy(mem, []byte("hello kvmfr"))

	reader := NewPosixRegion(Options{Name: name})
	require.NoError(t, reader.Initialize(context.Background()))
	defer func() { _ = reader.DeInitialize() }()

	require.Equal(t, "hello kvmfr", string(reader.GetMemory()[:len("hello kvmfr")]))
	require.Equal(t, 8192, reader.GetSize())
}
