package allocator

import (
	"testing"
	"unsafe"
)

func TestAllocateDeallocateRoundTrip(t *testing.T) {
	a := New()
	defer a.Close()

	ptr := a.Allocate(48, 0)
	if ptr == nil {
		t.Fatal("Allocate(48, 0) returned nil")
	}

	data := unsafe.Slice((*byte)(ptr), 48)
	for i := range data {
		data[i] = byte(i)
	}

	for i := range data {
		if data[i] != byte(i) {
			t.Fatalf("data corruption at byte %d", i)
		}
	}

	if got := a.OccupiedBytes(); got != 48 {
		t.Fatalf("OccupiedBytes() = %d, want 48", got)
	}

	a.Deallocate(ptr)

	if got := a.OccupiedBytes(); got != 0 {
		t.Fatalf("OccupiedBytes() after Deallocate = %d, want 0", got)
	}
}

func TestAllocateAlignment(t *testing.T) {
	a := New()
	defer a.Close()

	for _, align := range []uintptr{16, 32, 64, 128} {
		ptr := a.Allocate(8, align)
		if ptr == nil {
			t.Fatalf("Allocate(8, %d) returned nil", align)
		}

		if uintptr(ptr)%align != 0 {
			t.Fatalf("Allocate(8, %d) returned misaligned pointer %p", align, ptr)
		}

		a.Deallocate(ptr)
	}
}

func TestAllocateNonPow2AlignmentRoundsUp(t *testing.T) {
	a := New()
	defer a.Close()

	// 24 is not a power of two; spec.md §7 says round up rather than error.
	ptr := a.Allocate(8, 24)
	if ptr == nil {
		t.Fatal("Allocate(8, 24) returned nil")
	}

	if uintptr(ptr)%32 != 0 {
		t.Fatalf("Allocate(8, 24) did not round alignment up to 32: got %p", ptr)
	}

	a.Deallocate(ptr)
}

func TestAllocateZeroSize(t *testing.T) {
	a := New()
	defer a.Close()

	// spec.md §8: size == 0 is implementation-defined — this allocator
	// resolves it to a unique, non-overlapping, non-null address rather
	// than null (see Allocate's doc comment).
	p1 := a.Allocate(0, 0)
	if p1 == nil {
		t.Fatal("Allocate(0, 0) returned nil; expected a unique non-null address")
	}

	p2 := a.Allocate(0, 0)
	if p2 == nil {
		t.Fatal("second Allocate(0, 0) returned nil")
	}

	if p1 == p2 {
		t.Fatal("two live zero-size allocations returned the same address")
	}

	if uintptr(p1)%a.config.WordAlignment != 0 {
		t.Fatalf("Allocate(0, 0) returned misaligned pointer %p", p1)
	}

	a.Deallocate(p1)
	a.Deallocate(p2)

	if got := a.OccupiedBytes(); got != 0 {
		t.Fatalf("OccupiedBytes() after freeing both zero-size allocations = %d, want 0", got)
	}
}

func TestDeallocateNilIsNoop(t *testing.T) {
	a := New()
	defer a.Close()

	a.Deallocate(nil) // must not panic
}

func TestDirectPathForOversizeRequests(t *testing.T) {
	a := New(WithMaxDirectSize(4096))
	defer a.Close()

	ptr := a.Allocate(1<<20, 0)
	if ptr == nil {
		t.Fatal("oversize Allocate returned nil")
	}

	h := headerOf(ptr)
	if h.direct != 1 {
		t.Fatal("oversize allocation was not routed through the direct path")
	}

	a.Deallocate(ptr)
}

func TestManySmallAllocationsAcrossClasses(t *testing.T) {
	a := New()
	defer a.Close()

	sizes := []uintptr{8, 24, 63, 64, 100, 4096, 5000}

	var ptrs []unsafe.Pointer

	for _, size := range sizes {
		for i := 0; i < 100; i++ {
			ptr := a.Allocate(size, 0)
			if ptr == nil {
				t.Fatalf("Allocate(%d) failed on iteration %d", size, i)
			}

			ptrs = append(ptrs, ptr)
		}
	}

	for _, ptr := range ptrs {
		a.Deallocate(ptr)
	}

	if got := a.OccupiedBytes(); got != 0 {
		t.Fatalf("OccupiedBytes() after freeing every allocation = %d, want 0", got)
	}
}

func TestLeakCheck(t *testing.T) {
	a := New(WithLeakCheck(true))
	defer a.Close()

	p1 := a.Allocate(32, 0)
	p2 := a.Allocate(32, 0)

	if leaks := a.CheckLeaks(); len(leaks) != 2 {
		t.Fatalf("CheckLeaks() = %d entries, want 2", len(leaks))
	}

	a.Deallocate(p1)

	if leaks := a.CheckLeaks(); len(leaks) != 1 {
		t.Fatalf("CheckLeaks() after one free = %d entries, want 1", len(leaks))
	}

	a.Deallocate(p2)

	if leaks := a.CheckLeaks(); len(leaks) != 0 {
		t.Fatalf("CheckLeaks() after freeing everything = %d entries, want 0", len(leaks))
	}
}

func TestOccupiedBytesDisabledReturnsZero(t *testing.T) {
	a := New(WithOccupiedTracking(false))
	defer a.Close()

	ptr := a.Allocate(64, 0)
	if ptr == nil {
		t.Fatal("Allocate failed")
	}

	if got := a.OccupiedBytes(); got != 0 {
		t.Fatalf("OccupiedBytes() with tracking disabled = %d, want 0", got)
	}

	a.Deallocate(ptr)
}
