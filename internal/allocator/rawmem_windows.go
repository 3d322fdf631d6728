//go:build windows

package allocator

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsRawProvider backs arenas with VirtualAlloc/VirtualFree regions,
// mirroring the teacher's windows-side syscall files
// (iocp_poller_windows.go, zerocopy_windows_file.go).
type windowsRawProvider struct{}

func newRawProvider() rawProvider { return windowsRawProvider{} }

func (windowsRawProvider) acquire(size uintptr) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func (windowsRawProvider) release(buf []byte) {
	if len(buf) == 0 {
		return
	}

	addr := uintptr(unsafe.Pointer(&buf[0]))
	_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}

func rawPageSize() int {
	return 4096
}
