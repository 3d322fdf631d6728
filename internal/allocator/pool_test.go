package allocator

import (
	"errors"
	"testing"
	"unsafe"
)

type poolSlot struct {
	ar   *arena
	cell uint32
	ptr  unsafe.Pointer
}

func TestPoolGrowsAndReleasesArenas(t *testing.T) {
	a := New(WithInitialArenaCapacity(4), WithMaxArenaCapacity(64))
	defer a.Close()

	p := a.classes.ensure(classShift(64), func() *pool { return newPool(classShift(64), 64, a) })

	var held []poolSlot

	// Exhaust the first arena (capacity 4) and force a grow.
	for i := 0; i < 5; i++ {
		ptr, ar, cell, ok := p.alloc(32, 0)
		if !ok {
			t.Fatalf("pool.alloc failed on iteration %d", i)
		}

		held = append(held, poolSlot{ar: ar, cell: cell, ptr: ptr})
	}

	if len(p.arenas) < 2 {
		t.Fatalf("pool did not grow a second arena: have %d", len(p.arenas))
	}

	// Free everything back; the pool should release arenas down to one.
	for _, s := range held {
		p.free(s.ar, s.cell)
	}

	if len(p.arenas) == 0 {
		t.Fatal("pool released every arena; it should retain at least one")
	}
}

// failAfterNProvider lets a test simulate the OS refusing further memory
// after the first N acquisitions succeed (spec.md §4.2's "if the OS
// refuses, set a full flag and return null").
type failAfterNProvider struct {
	inner     rawProvider
	remaining int
}

func (f *failAfterNProvider) acquire(size uintptr) ([]byte, error) {
	if f.remaining <= 0 {
		return nil, errExhaustedForTest
	}

	f.remaining--

	return f.inner.acquire(size)
}

func (f *failAfterNProvider) release(buf []byte) { f.inner.release(buf) }

var errExhaustedForTest = errors.New("simulated OS exhaustion")

func TestPoolFullStickyFlag(t *testing.T) {
	a := New(WithInitialArenaCapacity(1))
	defer a.Close()

	a.raw = &failAfterNProvider{inner: newRawProvider(), remaining: 1}

	p := a.classes.ensure(classShift(32), func() *pool { return newPool(classShift(32), 32, a) })

	// First allocation grows and fills the only arena the fake provider
	// will hand out.
	_, ar, cell, ok := p.alloc(8, 0)
	if !ok {
		t.Fatal("first alloc failed")
	}

	// The provider now refuses every further acquisition, simulating OS
	// exhaustion: the pool should go sticky-full instead of retrying.
	if _, _, _, ok := p.alloc(8, 0); ok {
		t.Fatal("alloc succeeded after the raw provider started refusing")
	}

	if !p.fullSticky {
		t.Fatal("pool did not set fullSticky after OS exhaustion")
	}

	p.free(ar, cell)

	if p.fullSticky {
		t.Fatal("fullSticky was not cleared after a free")
	}
}
