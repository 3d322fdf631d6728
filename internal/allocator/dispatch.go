// Package allocator implements a general-purpose, single-threaded dynamic
// memory allocator: size-class segregation, per-arena slot tracking via a
// free-list or hierarchical bitmap, dynamic arena growth, and O(1)
// deallocation via a pointer→owner lookup. It is not safe for concurrent
// use on the same Allocator instance (spec.md §5); callers needing
// multi-threaded use should hold one Allocator per goroutine/thread or
// provide external mutual exclusion.
package allocator

import (
	"unsafe"

	"github.com/aantropov/memalloc/internal/xdebug"
)

// directInfo records the bookkeeping an OS-direct (oversize) allocation
// needs that would not otherwise fit in the 16-byte slot header: the raw,
// page-rounded length munmap/VirtualFree needs back, and the caller's
// requested size for OccupiedBytes accounting.
type directInfo struct {
	base    uintptr
	rawLen  uintptr
	reqSize uintptr
}

// Allocator is the dispatch layer of spec.md §4.1: it classifies a request
// into a size-class pool or the OS-direct path, and routes Deallocate back
// to the right owner via the pointer lookup or the header's direct flag.
type Allocator struct {
	config *Config
	raw    rawProvider

	classes     sizeClasses
	coalescing  *coalescingPool
	cpages      map[arenaID]*cpage
	lookup      *pointerLookup
	registry    map[arenaID]*arena
	nextID      arenaID
	occupied    uintptr
	directSizes map[unsafe.Pointer]directInfo

	leaks *leakLedger

	ownerGoID int64
}

// New builds an Allocator. Per spec.md §5, the returned value must not be
// shared across goroutines without external synchronization; in debug
// builds the creating goroutine is remembered and asserted on every
// Allocate and Deallocate.
func New(opts ...Option) *Allocator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	a := &Allocator{
		config:      cfg,
		raw:         newRawProvider(),
		lookup:      newPointerLookup(),
		registry:    make(map[arenaID]*arena),
		nextID:      1, // 0 is reserved as "no candidate" in pointerLookup
		directSizes: make(map[unsafe.Pointer]directInfo),
		ownerGoID:   xdebug.GoID(),
	}

	if cfg.Scheme == SchemeCoalescing {
		a.cpages = make(map[arenaID]*cpage)
		a.coalescing = newCoalescingPool(a)
	}

	if cfg.EnableLeakCheck {
		a.leaks = newLeakLedger()
	}

	return a
}

func (a *Allocator) checkSingleThreaded() {
	xdebug.Assert(xdebug.GoID() == a.ownerGoID,
		"Allocator used from goroutine %d but owned by %d (single-threaded contract, spec.md §5)",
		xdebug.GoID(), a.ownerGoID)
}

// Allocate returns an address whose integer value is a multiple of
// alignment (or WordAlignment when alignment == 0), at which at least size
// bytes may be read and written, or nil when the OS denies further memory
// (spec.md §4.1). It never blocks.
//
// size == 0 resolves to spec.md §8's "unique non-overlapping address"
// choice rather than null: it is classified and served like any other
// request (landing in the smallest size class, or its own OS-direct region
// past MaxDirectSize), giving back a live, distinct, correctly-aligned
// pointer that Deallocate accepts like any other. No byte of it may be
// read or written.
func (a *Allocator) Allocate(size, alignment uintptr) unsafe.Pointer {
	a.checkSingleThreaded()

	if alignment != 0 && !isPow2(alignment) {
		// spec.md §7: round up rather than silently misalign.
		alignment = nextPow2(alignment)
	}

	align := alignment
	if align == 0 {
		align = a.config.WordAlignment
	}

	shift, rounded := classify(size, align, a.config.MinBlock)

	var ptr unsafe.Pointer

	if rounded > a.config.MaxDirectSize {
		ptr = a.allocateDirect(size, align)
	} else if a.coalescing != nil {
		ptr = a.coalescing.alloc(size, align)
	} else {
		ptr = a.allocateFromClass(shift, rounded, size, align)
	}

	if ptr == nil {
		return nil
	}

	if a.config.TrackOccupied {
		a.occupied += size
	}

	if a.leaks != nil {
		a.leaks.record(ptr, size)
	}

	return ptr
}

func (a *Allocator) allocateFromClass(shift int, rounded, requestedSize, align uintptr) unsafe.Pointer {
	p := a.classes.ensure(shift, func() *pool { return newPool(shift, rounded, a) })

	ptr, _, _, ok := p.alloc(requestedSize, align)
	if !ok {
		return nil
	}

	return ptr
}

func (a *Allocator) allocateDirect(size, align uintptr) unsafe.Pointer {
	total := pageRoundUp(headerSize + size + align)

	buf, err := a.raw.acquire(total)
	if err != nil {
		return nil
	}

	base := uintptr(unsafe.Pointer(&buf[0]))
	userStart := alignUp(base+headerSize, align)

	h := (*header)(unsafe.Pointer(userStart - headerSize))
	h.direct = 1
	h.arenaID = 0
	h.cell = 0
	h.size = 0

	ptr := unsafe.Pointer(userStart)
	a.directSizes[ptr] = directInfo{base: base, rawLen: total, reqSize: size}

	return ptr
}

// Deallocate releases the slot or region containing address, a no-op for
// nil (spec.md §4.1). address must have come from this Allocator and not
// yet be freed; double-free is undefined per spec.md §7.
func (a *Allocator) Deallocate(address unsafe.Pointer) {
	a.checkSingleThreaded()

	if address == nil {
		return
	}

	h := headerOf(address)

	if h.direct == 1 {
		a.deallocateDirect(address)
		return
	}

	if a.coalescing != nil {
		a.deallocateCoalescing(address)
		return
	}

	a.deallocatePooled(address, h)
}

func (a *Allocator) deallocateDirect(address unsafe.Pointer) {
	info, ok := a.directSizes[address]
	xdebug.Assert(ok, "Deallocate: direct pointer %p has no recorded size (double free or foreign pointer)", address)

	if !ok {
		return
	}

	delete(a.directSizes, address)

	if a.config.TrackOccupied {
		a.occupied -= info.reqSize
	}

	if a.leaks != nil {
		a.leaks.forget(address)
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(info.base)), info.rawLen)
	a.raw.release(buf)
}

// deallocateCoalescing routes a free back to its owning page, recovered
// in O(1) via the header's arenaID, mirroring deallocatePooled's trust of
// the header over a scanning search.
func (a *Allocator) deallocateCoalescing(address unsafe.Pointer) {
	h := headerOf(address)

	pg, ok := a.cpages[arenaID(h.arenaID)]
	xdebug.Assert(ok, "Deallocate: %p does not resolve to a live page (double free or foreign pointer)", address)

	if !ok {
		return
	}

	if a.config.TrackOccupied {
		a.occupied -= uintptr(h.size)
	}

	if a.leaks != nil {
		a.leaks.forget(address)
	}

	a.coalescing.free(pg, h)
}

func (a *Allocator) deallocatePooled(address unsafe.Pointer, h *header) {
	_, ar, cell, ok := a.resolveOwner(address, h)
	xdebug.Assert(ok, "Deallocate: %p does not resolve to a live arena (double free or foreign pointer)", address)

	if !ok {
		return
	}

	if a.config.TrackOccupied {
		a.occupied -= uintptr(h.size)
	}

	if a.leaks != nil {
		a.leaks.forget(address)
	}

	ar.owner.free(ar, cell)
}

// resolveOwner recovers the arena owning address. It trusts the header's
// arenaID when present (the common, fast case) and falls back to the
// pointer→owner lookup's two-candidate probe otherwise, per spec.md §4.5.
func (a *Allocator) resolveOwner(address unsafe.Pointer, h *header) (arenaID, *arena, uint32, bool) {
	addr := uintptr(address)

	if ar, ok := a.registry[arenaID(h.arenaID)]; ok && ar.contains(addr) {
		return ar.id, ar, h.cell, true
	}

	c1, c2 := a.lookup.candidates(addr)
	for _, id := range [2]arenaID{c1, c2} {
		if id == 0 {
			continue
		}

		if ar, ok := a.registry[id]; ok && ar.contains(addr) {
			return id, ar, h.cell, true
		}
	}

	return 0, nil, 0, false
}

// OccupiedBytes returns the sum of live user-requested sizes (spec.md §6's
// optional metric). This implementation tracks it precisely rather than
// returning 0; see DESIGN.md for the Open Question resolution.
func (a *Allocator) OccupiedBytes() uintptr {
	if !a.config.TrackOccupied {
		return 0
	}

	return a.occupied
}

// FootprintBytes returns the total raw bytes currently reserved from the
// OS across every pool, coalescing page and direct region — always ≥
// OccupiedBytes(), the gap being the benchmark harness's overhead metric
// (spec.md §6).
func (a *Allocator) FootprintBytes() uintptr {
	var total uintptr

	for _, p := range a.classes.all() {
		total += p.footprint()
	}

	if a.coalescing != nil {
		total += a.coalescing.footprint()
	}

	for _, info := range a.directSizes {
		total += info.rawLen
	}

	return total
}

// Close releases every arena and raw region this Allocator holds. No
// allocation made before Close survives it (spec.md §5's resource scoping).
func (a *Allocator) Close() {
	for _, p := range a.classes.all() {
		p.destroyAll()
	}

	if a.coalescing != nil {
		a.coalescing.destroyAll()
	}

	for _, info := range a.directSizes {
		buf := unsafe.Slice((*byte)(unsafe.Pointer(info.base)), info.rawLen)
		a.raw.release(buf)
	}

	a.directSizes = make(map[unsafe.Pointer]directInfo)
	a.registry = make(map[arenaID]*arena)
	a.occupied = 0
}

func (a *Allocator) nextArenaID() arenaID {
	id := a.nextID
	a.nextID++

	return id
}

func (a *Allocator) registerArena(ar *arena) {
	a.registry[ar.id] = ar
	a.lookup.insert(ar)
}

func (a *Allocator) unregisterArena(ar *arena) {
	a.lookup.remove(ar)
	delete(a.registry, ar.id)
}
