package allocator

import (
	"unsafe"

	allocerrors "github.com/aantropov/memalloc/internal/errors"
)

// BumpArena is a bump-pointer scratch allocator: one raw-acquired region,
// a watermark, no individual frees. It is adapted from the teacher's
// ArenaAllocatorImpl, backed by the same rawProvider the main Allocator
// uses instead of a bare make([]byte, size), and with its mutex dropped
// to match this package's single-threaded contract (spec.md §5).
type BumpArena struct {
	raw     rawProvider
	buf     []byte
	current uintptr
	align   uintptr
}

// NewBumpArena reserves a size-byte scratch region.
func NewBumpArena(size uintptr, alignment uintptr) (*BumpArena, error) {
	if size == 0 {
		return nil, allocerrors.Exhausted(0, 0)
	}

	raw := newRawProvider()

	buf, err := raw.acquire(pageRoundUp(size))
	if err != nil {
		return nil, err
	}

	if alignment == 0 {
		alignment = 8
	}

	return &BumpArena{raw: raw, buf: buf, align: alignment}, nil
}

// Alloc aligns the watermark to the arena's alignment, bumps it by size and
// returns a pointer to the bytes it reserved, or nil if the arena has no
// room left.
func (b *BumpArena) Alloc(size uintptr) unsafe.Pointer {
	return b.AllocAligned(size, b.align)
}

// AllocAligned is Alloc with an explicit, possibly coarser alignment.
func (b *BumpArena) AllocAligned(size, alignment uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	start := alignUp(b.current, alignment)
	end := start + size

	if end > uintptr(len(b.buf)) {
		return nil
	}

	b.current = end

	return unsafe.Pointer(&b.buf[start])
}

// AllocString copies s into the arena and returns a pointer to the copy.
func (b *BumpArena) AllocString(s string) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}

	ptr := b.Alloc(uintptr(len(s)))
	if ptr == nil {
		return nil
	}

	dst := unsafe.Slice((*byte)(ptr), len(s))
	copy(dst, s)

	return ptr
}

// AllocSlice reserves room for count elements of elementSize bytes apiece.
func (b *BumpArena) AllocSlice(elementSize uintptr, count int) unsafe.Pointer {
	if count <= 0 {
		return nil
	}

	return b.Alloc(elementSize * uintptr(count))
}

// Used reports how much of the arena the watermark has consumed.
func (b *BumpArena) Used() uintptr { return b.current }

// Available reports how much room remains before the watermark.
func (b *BumpArena) Available() uintptr { return uintptr(len(b.buf)) - b.current }

// Reset rewinds the watermark to the start, making the whole region
// available again without releasing it back to the OS.
func (b *BumpArena) Reset() { b.current = 0 }

// BumpArenaState is a saved watermark, for SaveState/RestoreState.
type BumpArenaState struct {
	current uintptr
}

// SaveState captures the current watermark.
func (b *BumpArena) SaveState() BumpArenaState {
	return BumpArenaState{current: b.current}
}

// RestoreState rewinds to a previously saved watermark. Restoring to a
// watermark past the current one is ignored. A state records only the
// watermark, not the BumpArena it came from.
func (b *BumpArena) RestoreState(state BumpArenaState) {
	if state.current <= b.current {
		b.current = state.current
	}
}

// SubArena carves a nested BumpArena out of this one's remaining space. It
// shares this arena's backing region rather than acquiring its own, so it
// is released only when the parent is.
func (b *BumpArena) SubArena(size uintptr) (*BumpArena, bool) {
	ptr := b.Alloc(size)
	if ptr == nil {
		return nil, false
	}

	buf := unsafe.Slice((*byte)(ptr), size)

	return &BumpArena{raw: nil, buf: buf, align: b.align}, true
}

// Close releases the arena's raw region. SubArenas created from it must
// not be used afterward.
func (b *BumpArena) Close() {
	if b.raw != nil {
		b.raw.release(b.buf)
	}

	b.buf = nil
}
