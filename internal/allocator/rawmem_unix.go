//go:build unix

package allocator

import (
	"os"

	"golang.org/x/sys/unix"
)

// unixRawProvider backs arenas with anonymous mmap regions, mirroring the
// teacher's per-OS syscall split in internal/runtime/asyncio
// (zerocopy_unix_file.go vs zerocopy_windows_file.go).
type unixRawProvider struct{}

func newRawProvider() rawProvider { return unixRawProvider{} }

func (unixRawProvider) acquire(size uintptr) ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	return buf, nil
}

func (unixRawProvider) release(buf []byte) {
	if len(buf) == 0 {
		return
	}

	_ = unix.Munmap(buf)
}

func rawPageSize() int {
	return os.Getpagesize()
}
