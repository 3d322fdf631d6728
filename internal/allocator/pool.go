package allocator

import "unsafe"

// pool is the size-class pool of spec.md §3/§4.2: the set of arenas
// serving one size class, plus the bookkeeping needed to pick which arena
// serves the next allocation and when an empty arena goes back to the OS.
type pool struct {
	classShift   int
	blockSize    uintptr
	scheme       Scheme
	arenas       []*arena
	currentIdx   int
	nextCapacity uint32
	fullSticky   bool

	owner *Allocator
}

func newPool(shift int, blockSize uintptr, owner *Allocator) *pool {
	return &pool{
		classShift:   shift,
		blockSize:    blockSize,
		scheme:       owner.config.Scheme,
		nextCapacity: owner.config.InitialArenaCapacity,
		owner:        owner,
	}
}

// alloc serves one slot from this pool, growing a new arena if every
// existing one is full (spec.md §4.2's "allocate from pool"). align must be
// the same resolved (nonzero, power-of-two) alignment classify used to size
// this pool's slots.
func (p *pool) alloc(requestedSize, align uintptr) (unsafe.Pointer, *arena, uint32, bool) {
	if a, idx := p.currentArena(); a != nil && !a.full() {
		ptr, ok := a.alloc(requestedSize, align)
		if ok {
			p.currentIdx = idx
			return ptr, a, headerOf(ptr).cell, true
		}
	}

	// Head-ward search over the rest of the chain, bounded by its length
	// (spec.md §4.2).
	for i, a := range p.arenas {
		if i == p.currentIdx {
			continue
		}

		if !a.full() {
			ptr, ok := a.alloc(requestedSize, align)
			if ok {
				p.currentIdx = i
				return ptr, a, headerOf(ptr).cell, true
			}
		}
	}

	if p.fullSticky {
		return nil, nil, 0, false
	}

	a, ok := p.grow()
	if !ok {
		p.fullSticky = true
		return nil, nil, 0, false
	}

	ptr, ok := a.alloc(requestedSize, align)
	if !ok {
		// A brand new arena failing its first allocation means the
		// requested block is larger than the class itself serves;
		// this should not happen for correctly-classified callers.
		return nil, nil, 0, false
	}

	return ptr, a, headerOf(ptr).cell, true
}

func (p *pool) currentArena() (*arena, int) {
	if p.currentIdx < 0 || p.currentIdx >= len(p.arenas) {
		return nil, -1
	}

	return p.arenas[p.currentIdx], p.currentIdx
}

// grow allocates a new arena with double the previous capacity (spec.md
// §3: "grows geometrically... 1, 2, 4, ... up to a per-pool cap") and
// links it at the head of the chain.
func (p *pool) grow() (*arena, bool) {
	cap := p.nextCapacity
	if cap == 0 {
		cap = p.owner.config.InitialArenaCapacity
	}

	id := p.owner.nextArenaID()

	a, err := newArena(id, p, p.blockSize, cap, p.scheme, p.owner.raw)
	if err != nil {
		return nil, false
	}

	p.arenas = append([]*arena{a}, p.arenas...)
	p.currentIdx = 0
	p.owner.registerArena(a)

	next := uint64(cap) * 2
	if max := uint64(p.owner.config.MaxArenaCapacity); next > max {
		next = max
	}

	p.nextCapacity = uint32(next)

	return a, true
}

// free returns a slot to its arena, then applies spec.md §4.2's post-free
// policy: promote the freed-into arena for locality, clear the class's
// sticky-full flag, and release the arena to the OS if it is now fully
// empty and eligible.
func (p *pool) free(a *arena, cell uint32) {
	a.free(cell)

	p.fullSticky = false

	idx := p.indexOf(a)
	if idx >= 0 {
		p.currentIdx = idx
	}

	if a.empty() && p.eligibleForRelease(a) {
		p.releaseArena(idx)
	}
}

// eligibleForRelease implements spec.md §3's lifecycle rule: an arena may
// be released only when fully empty AND (the pool retains at least one
// other arena of that class OR its footprint exceeds the configured
// threshold).
func (p *pool) eligibleForRelease(a *arena) bool {
	if len(p.arenas) > 1 {
		return true
	}

	return a.footprint() >= p.owner.config.ReleaseFootprintThreshold
}

func (p *pool) indexOf(a *arena) int {
	for i, x := range p.arenas {
		if x == a {
			return i
		}
	}

	return -1
}

func (p *pool) releaseArena(idx int) {
	if idx < 0 || idx >= len(p.arenas) {
		return
	}

	a := p.arenas[idx]
	p.owner.unregisterArena(a)
	a.destroy(p.owner.raw)

	p.arenas = append(p.arenas[:idx], p.arenas[idx+1:]...)
	if p.currentIdx >= len(p.arenas) {
		p.currentIdx = len(p.arenas) - 1
	}
}

// destroyAll tears down every arena in this pool; called once on
// Allocator teardown (spec.md §5's resource-scoping requirement).
func (p *pool) destroyAll() {
	for _, a := range p.arenas {
		p.owner.unregisterArena(a)
		a.destroy(p.owner.raw)
	}

	p.arenas = nil
}

// occupiedBlocks returns the number of slots currently held by callers.
// OccupiedBytes() does not use it; it sums requested sizes directly.
func (p *pool) occupiedBlocks() uint32 {
	var n uint32

	for _, a := range p.arenas {
		n += a.capacity - a.freeCount
	}

	return n
}

// footprint sums the raw byte size backing every arena in this pool, used
// for the benchmark harness's overhead accounting (spec.md §6).
func (p *pool) footprint() uintptr {
	var total uintptr

	for _, a := range p.arenas {
		total += a.footprint()
	}

	return total
}
