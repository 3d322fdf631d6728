package allocator

import (
	"fmt"
	"unsafe"
)

// global mirrors the teacher's GlobalRuntime pattern (runtime.go):
// a single process-wide Allocator reached through package-level
// convenience functions, for callers that want to avoid threading an
// *Allocator through every call site. There is no GC, StringPool or
// SlicePool here — this allocator never collects or interns (spec.md's
// Non-goals).
var global *Allocator

// Initialize installs the process-wide Allocator used by Alloc/Free/
// OccupiedBytes. Calling it again replaces the previous instance without
// closing it; callers that need the old instance's memory released must
// Close it themselves first.
func Initialize(opts ...Option) error {
	a := New(opts...)
	if a == nil {
		return fmt.Errorf("allocator: failed to initialize global instance")
	}

	global = a

	return nil
}

// Alloc allocates size bytes at WordAlignment through the global Allocator.
// It panics if Initialize has not been called, the same way a caller
// dereferencing a nil *Allocator would.
func Alloc(size uintptr) unsafe.Pointer {
	return global.Allocate(size, 0)
}

// AllocAligned allocates size bytes aligned to alignment through the
// global Allocator.
func AllocAligned(size, alignment uintptr) unsafe.Pointer {
	return global.Allocate(size, alignment)
}

// Free releases a pointer obtained from Alloc/AllocAligned.
func Free(ptr unsafe.Pointer) {
	global.Deallocate(ptr)
}

// OccupiedBytes reports the global Allocator's live byte count.
func OccupiedBytes() uintptr {
	return global.OccupiedBytes()
}

// Shutdown closes the global Allocator and clears it.
func Shutdown() {
	if global != nil {
		global.Close()
		global = nil
	}
}
