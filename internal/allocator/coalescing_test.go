package allocator

import (
	"testing"
	"unsafe"
)

func TestCoalescingPoolAllocFreeMergesNeighbours(t *testing.T) {
	a := New(WithScheme(SchemeCoalescing))
	defer a.Close()

	const n = 64

	held := make([]unsafe.Pointer, 0, n)

	for i := 0; i < n; i++ {
		ptr := a.Allocate(128, 0)
		if ptr == nil {
			t.Fatalf("Allocate failed on iteration %d", i)
		}

		held = append(held, ptr)
	}

	if got := a.OccupiedBytes(); got != n*128 {
		t.Fatalf("OccupiedBytes() = %d, want %d", got, n*128)
	}

	for _, ptr := range held {
		a.Deallocate(ptr)
	}

	if got := a.OccupiedBytes(); got != 0 {
		t.Fatalf("OccupiedBytes() after freeing everything = %d, want 0", got)
	}

	// Freed 128-byte blocks must coalesce back into larger free chunks: a
	// 512-byte request, larger than any single freed block, should still
	// be servable from existing pages, without the pool needing to grow.
	pagesBefore := len(a.coalescing.pages)

	big := a.Allocate(512, 0)
	if big == nil {
		t.Fatal("allocation failed after coalescing should have reassembled free chunks")
	}

	if len(a.coalescing.pages) > pagesBefore {
		t.Fatal("coalescing pool grew a new page instead of reusing a merged free chunk")
	}

	a.Deallocate(big)
}

func TestCoalescingPoolSplitLeavesUsableResidual(t *testing.T) {
	a := New(WithScheme(SchemeCoalescing))
	defer a.Close()

	small := a.Allocate(64, 0)
	if small == nil {
		t.Fatal("small allocation failed")
	}

	other := a.Allocate(64, 0)
	if other == nil {
		t.Fatal("second small allocation failed")
	}

	a.Deallocate(small)
	a.Deallocate(other)
}
