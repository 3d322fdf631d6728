package allocator

import "math/bits"

// alignUp rounds size up to the next multiple of alignment, which must be a
// power of two. alignment == 0 is treated as "no rounding".
func alignUp(size, alignment uintptr) uintptr {
	if alignment == 0 {
		return size
	}

	return (size + alignment - 1) &^ (alignment - 1)
}

// isPow2 reports whether v is a nonzero power of two.
func isPow2(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

// nextPow2 rounds v up to the next power of two (v itself if already one).
// Grounded in flier-goutil/pkg/arena/alloc.go's suggestSizeLog, which uses
// the same bits.Len trick to "snap to the next power of two".
func nextPow2(v uintptr) uintptr {
	if v <= 1 {
		return 1
	}

	return uintptr(1) << bits.Len(uint(v-1))
}

// classShift returns k = ⌈log2(v)⌉ for a power-of-two v, i.e. the exponent
// such that 1<<k == v.
func classShift(v uintptr) int {
	return bits.Len(uint(v)) - 1
}

// classify implements spec.md §3/§4.1's rounding rule. The returned slot
// size is the TOTAL per-slot footprint a pool reserves — header, payload and
// worst-case alignment slack together — not just the caller's payload, so
// that a pool never needs to special-case where within a slot the header and
// user pointer land (see arena.alloc). The requested size is bumped to the
// next multiple of the alignment, headerSize and one alignment's worth of
// slack are added to cover the header ever occupying space before the
// aligned user pointer, and the result is rounded up to a power of two
// bounded below by minBlock.
func classify(size, alignment, minBlock uintptr) (shift int, rounded uintptr) {
	needed := headerSize + alignUp(size, alignment)
	if alignment > 0 {
		needed += alignment
	}

	if needed < minBlock {
		needed = minBlock
	}

	rounded = nextPow2(needed)

	return classShift(rounded), rounded
}

// sizeClasses is the dynamic sequence of §4.6: a slice indexed by class
// shift, grown with nil sentinels for classes that have never been
// instantiated. The first allocation for a class creates its pool lazily.
type sizeClasses struct {
	pools []*pool
}

// at returns the pool for shift, or nil if it has never been instantiated.
func (sc *sizeClasses) at(shift int) *pool {
	if shift < 0 || shift >= len(sc.pools) {
		return nil
	}

	return sc.pools[shift]
}

// ensure grows the vector so index shift is addressable, filling the gap
// with nil sentinels, and returns the (possibly freshly created) pool.
func (sc *sizeClasses) ensure(shift int, create func() *pool) *pool {
	if shift >= len(sc.pools) {
		grown := make([]*pool, shift+1)
		copy(grown, sc.pools)
		sc.pools = grown
	}

	if sc.pools[shift] == nil {
		sc.pools[shift] = create()
	}

	return sc.pools[shift]
}

// all returns every instantiated (non-nil) pool, used for teardown and
// occupancy accounting.
func (sc *sizeClasses) all() []*pool {
	out := make([]*pool, 0, len(sc.pools))

	for _, p := range sc.pools {
		if p != nil {
			out = append(out, p)
		}
	}

	return out
}
