package allocator

import (
	"fmt"
	"runtime"
	"time"
	"unsafe"
)

// leakRecord is one live allocation's bookkeeping, adapted from the
// teacher's AllocationInfo — minus its mutex-guarded map, since an
// Allocator is single-threaded by contract (spec.md §5).
type leakRecord struct {
	size       uintptr
	timestamp  int64
	stackTrace []uintptr
}

// LeakInfo describes one allocation still live when CheckLeaks is called.
type LeakInfo struct {
	Pointer    unsafe.Pointer
	Size       uintptr
	Timestamp  int64
	StackTrace []uintptr
}

// leakLedger is the EnableLeakCheck bookkeeping of spec.md §7's debug-build
// invariant checks, adapted from the teacher's SystemAllocatorImpl
// leak-tracking path (activeAllocations + CheckLeaks/FormatLeaks).
type leakLedger struct {
	live map[unsafe.Pointer]*leakRecord
}

func newLeakLedger() *leakLedger {
	return &leakLedger{live: make(map[unsafe.Pointer]*leakRecord)}
}

func (l *leakLedger) record(ptr unsafe.Pointer, size uintptr) {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])

	l.live[ptr] = &leakRecord{
		size:       size,
		timestamp:  time.Now().UnixNano(),
		stackTrace: append([]uintptr(nil), pcs[:n]...),
	}
}

func (l *leakLedger) forget(ptr unsafe.Pointer) {
	delete(l.live, ptr)
}

// CheckLeaks returns every allocation still outstanding. Call it just
// before Close to catch callers that never freed what they allocated.
func (a *Allocator) CheckLeaks() []LeakInfo {
	if a.leaks == nil {
		return nil
	}

	leaks := make([]LeakInfo, 0, len(a.leaks.live))

	for ptr, rec := range a.leaks.live {
		leaks = append(leaks, LeakInfo{
			Pointer:    ptr,
			Size:       rec.size,
			Timestamp:  rec.timestamp,
			StackTrace: rec.stackTrace,
		})
	}

	return leaks
}

// FormatLeaks renders leaks for a human, resolving stack traces back to
// file:line the way the teacher's FormatLeaks does.
func FormatLeaks(leaks []LeakInfo) string {
	if len(leaks) == 0 {
		return "no leaked allocations"
	}

	result := fmt.Sprintf("detected %d leaked allocations:\n", len(leaks))

	for i, leak := range leaks {
		result += fmt.Sprintf("  leak %d: %d bytes at %p\n", i+1, leak.Size, leak.Pointer)

		if len(leak.StackTrace) > 0 {
			result += "    stack trace:\n"
			frames := runtime.CallersFrames(leak.StackTrace)

			for {
				frame, more := frames.Next()
				result += fmt.Sprintf("      %s:%d %s\n", frame.File, frame.Line, frame.Function)

				if !more {
					break
				}
			}
		}
	}

	return result
}
