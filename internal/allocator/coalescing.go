package allocator

import "unsafe"

// noChunk marks an absent prev/next/prevFree/nextFree link, mirroring the
// contest source's InvalidIndexUINT64 sentinel (original_source's
// AlexeyAntropov.h), scaled down to uint32 offsets since a single page
// never exceeds 4 GiB.
const noChunk = ^uint32(0)

// chunkHeader is the intrusive, coalescing free-list header of spec.md
// §4.4: prev/next walk every chunk in address order (for coalescing),
// prevFree/nextFree thread only the free ones (for first-fit), size is the
// payload size excluding this header, isFree distinguishes the two.
type chunkHeader struct {
	prev, next         uint32
	prevFree, nextFree uint32
	size               uint32
	isFree             uint32
}

const chunkHeaderSize = unsafe.Sizeof(chunkHeader{})

// minSplitResidual is spec.md §4.4's "header + 255 bytes": a chunk is only
// split on allocation if the leftover is large enough to be useful on its
// own.
const minSplitResidual = chunkHeaderSize + 255

// cpage is one page of the alternative arena model: a contiguous,
// raw-acquired region segmented into chunks by chunkHeader (spec.md §4.4).
type cpage struct {
	id        arenaID
	buf       []byte
	begin     uintptr
	end       uintptr
	firstFree uint32 // offset of the first free chunk (largest-first)
	occupied  uintptr
}

func newCPage(id arenaID, size uintptr, raw rawProvider) (*cpage, error) {
	buf, err := raw.acquire(pageRoundUp(size))
	if err != nil {
		return nil, err
	}

	p := &cpage{id: id, buf: buf}
	p.begin = uintptr(unsafe.Pointer(&buf[0]))
	p.end = p.begin + uintptr(len(buf))

	root := p.header(0)
	*root = chunkHeader{
		prev: noChunk, next: noChunk,
		prevFree: noChunk, nextFree: noChunk,
		size:   uint32(uintptr(len(buf)) - chunkHeaderSize),
		isFree: 1,
	}
	p.firstFree = 0

	return p, nil
}

func (p *cpage) header(offset uint32) *chunkHeader {
	return (*chunkHeader)(unsafe.Pointer(&p.buf[offset]))
}

func (p *cpage) payload(offset uint32) unsafe.Pointer {
	return unsafe.Pointer(&p.buf[uintptr(offset)+chunkHeaderSize])
}

func (p *cpage) contains(addr uintptr) bool {
	return addr >= p.begin && addr < p.end
}

func (p *cpage) footprint() uintptr { return uintptr(len(p.buf)) }

func (p *cpage) empty() bool { return p.occupied == 0 }

// alloc performs the first-fit walk of spec.md §4.4 over the free list
// (kept size-descending, so first-fit here also tends to pick the
// largest available chunk first), splitting the chunk when the residual
// clears minSplitResidual. It returns the chunk's offset alongside its
// payload so the caller can stash it for O(1) release.
func (p *cpage) alloc(size uintptr) (unsafe.Pointer, uint32, bool) {
	off := p.firstFree

	for off != noChunk {
		h := p.header(off)
		if uintptr(h.size) >= size {
			p.takeChunk(off, size)
			p.occupied += uintptr(h.size)

			return p.payload(off), off, true
		}

		off = h.nextFree
	}

	return nil, 0, false
}

func (p *cpage) takeChunk(off uint32, size uintptr) {
	h := p.header(off)

	residual := uintptr(h.size) - size
	if residual >= minSplitResidual {
		newOff := off + uint32(chunkHeaderSize+size)
		newHeader := p.header(newOff)

		*newHeader = chunkHeader{
			prev: off, next: h.next,
			size:   uint32(residual - chunkHeaderSize),
			isFree: 1,
		}

		if h.next != noChunk {
			p.header(h.next).prev = newOff
		}

		h.next = newOff
		h.size = uint32(size)

		p.replaceInFreeList(off, newOff)
	} else {
		p.unlinkFree(off)
	}

	h.isFree = 0
}

// free returns the chunk at offset to the free list (inserted so the list
// stays size-descending, per spec.md §4.4) and merges with free
// neighbours on either side.
func (p *cpage) free(off uint32) {
	h := p.header(off)
	h.isFree = 1
	p.occupied -= uintptr(h.size)

	p.insertFree(off)

	if h.prev != noChunk && p.header(h.prev).isFree == 1 {
		off = p.mergeWithPrev(h.prev, off)
		h = p.header(off)
	}

	if h.next != noChunk && p.header(h.next).isFree == 1 {
		p.mergeWithNext(off, h.next)
	}
}

// mergeWithPrev absorbs the chunk at off into the free chunk at prevOff,
// returning prevOff as the surviving chunk.
func (p *cpage) mergeWithPrev(prevOff, off uint32) uint32 {
	prev := p.header(prevOff)
	cur := p.header(off)

	p.unlinkFree(off)
	p.unlinkFree(prevOff)

	prev.size += uint32(chunkHeaderSize) + cur.size
	prev.next = cur.next

	if cur.next != noChunk {
		p.header(cur.next).prev = prevOff
	}

	p.insertFree(prevOff)

	return prevOff
}

func (p *cpage) mergeWithNext(off, nextOff uint32) {
	h := p.header(off)
	next := p.header(nextOff)

	p.unlinkFree(off)
	p.unlinkFree(nextOff)

	h.size += uint32(chunkHeaderSize) + next.size
	h.next = next.next

	if next.next != noChunk {
		p.header(next.next).prev = off
	}

	p.insertFree(off)
}

// insertFree threads off into the free list, keeping it size-descending at
// the head (spec.md §4.4).
func (p *cpage) insertFree(off uint32) {
	h := p.header(off)

	var prevFree uint32 = noChunk
	cur := p.firstFree

	for cur != noChunk && p.header(cur).size >= h.size {
		prevFree = cur
		cur = p.header(cur).nextFree
	}

	h.prevFree = prevFree
	h.nextFree = cur

	if cur != noChunk {
		p.header(cur).prevFree = off
	}

	if prevFree == noChunk {
		p.firstFree = off
	} else {
		p.header(prevFree).nextFree = off
	}
}

func (p *cpage) unlinkFree(off uint32) {
	h := p.header(off)

	if h.prevFree != noChunk {
		p.header(h.prevFree).nextFree = h.nextFree
	} else {
		p.firstFree = h.nextFree
	}

	if h.nextFree != noChunk {
		p.header(h.nextFree).prevFree = h.prevFree
	}

	h.prevFree, h.nextFree = noChunk, noChunk
}

// replaceInFreeList swaps a chunk's free-list position for its successor
// after a split (the original chunk is no longer free; the residual is).
func (p *cpage) replaceInFreeList(oldOff, newOff uint32) {
	old := p.header(oldOff)
	newH := p.header(newOff)

	newH.prevFree = old.prevFree
	newH.nextFree = old.nextFree

	if old.prevFree != noChunk {
		p.header(old.prevFree).nextFree = newOff
	} else {
		p.firstFree = newOff
	}

	if old.nextFree != noChunk {
		p.header(old.nextFree).prevFree = newOff
	}

	old.prevFree, old.nextFree = noChunk, noChunk
}

func (p *cpage) destroy(raw rawProvider) {
	raw.release(p.buf)
	p.buf = nil
}

// coalescingPool is the alternative whole-allocator arena model of spec.md
// §4.4, selected via Config.Scheme = SchemeCoalescing. It has no size
// classes: every request walks the first page with a large-enough chunk,
// growing a new page (geometrically, like the slot-arena pools) when none
// fits.
type coalescingPool struct {
	owner        *Allocator
	pages        []*cpage
	nextCapacity uintptr
}

func newCoalescingPool(owner *Allocator) *coalescingPool {
	return &coalescingPool{
		owner:        owner,
		nextCapacity: uintptr(owner.config.InitialArenaCapacity) * 64,
	}
}

// alloc carves a slot header (the same 16-byte header the size-class path
// uses, so Deallocate can dispatch on it uniformly) out of a chunk big
// enough for header + size + alignment slack, mirroring allocateDirect's
// header-placement arithmetic.
func (cp *coalescingPool) alloc(size, align uintptr) unsafe.Pointer {
	needed := headerSize + size + align

	for _, pg := range cp.pages {
		if ptr, off, ok := pg.alloc(needed); ok {
			return cp.place(pg, ptr, off, size, align)
		}
	}

	pg, ok := cp.grow(needed)
	if !ok {
		return nil
	}

	ptr, off, ok := pg.alloc(needed)
	if !ok {
		return nil
	}

	return cp.place(pg, ptr, off, size, align)
}

func (cp *coalescingPool) place(pg *cpage, chunkPtr unsafe.Pointer, off uint32, size, align uintptr) unsafe.Pointer {
	userStart := alignUp(uintptr(chunkPtr)+headerSize, align)

	h := (*header)(unsafe.Pointer(userStart - headerSize))
	h.direct = 0
	h.arenaID = uint32(pg.id)
	h.cell = off
	h.size = uint32(size)

	return unsafe.Pointer(userStart)
}

func (cp *coalescingPool) grow(minSize uintptr) (*cpage, bool) {
	size := cp.nextCapacity
	if size < minSize+chunkHeaderSize {
		size = minSize + chunkHeaderSize
	}

	id := cp.owner.nextArenaID()

	pg, err := newCPage(id, size, cp.owner.raw)
	if err != nil {
		return nil, false
	}

	cp.pages = append(cp.pages, pg)
	cp.owner.cpages[id] = pg

	cp.nextCapacity *= 2
	if max := uintptr(cp.owner.config.MaxArenaCapacity) * 64; cp.nextCapacity > max {
		cp.nextCapacity = max
	}

	return pg, true
}

// free returns the slot at h back to pg, then applies the same
// fully-empty-page release policy the size-class pools use (spec.md §3,
// applied to the page model).
func (cp *coalescingPool) free(pg *cpage, h *header) {
	pg.free(h.cell)

	if pg.empty() && (len(cp.pages) > 1 || pg.footprint() >= cp.owner.config.ReleaseFootprintThreshold) {
		cp.releasePage(pg)
	}
}

func (cp *coalescingPool) releasePage(pg *cpage) {
	for i, x := range cp.pages {
		if x == pg {
			cp.pages = append(cp.pages[:i], cp.pages[i+1:]...)
			break
		}
	}

	delete(cp.owner.cpages, pg.id)
	pg.destroy(cp.owner.raw)
}

// footprint sums the raw byte size backing every page, used for the
// benchmark harness's overhead accounting (spec.md §6).
func (cp *coalescingPool) footprint() uintptr {
	var total uintptr

	for _, pg := range cp.pages {
		total += pg.footprint()
	}

	return total
}

func (cp *coalescingPool) destroyAll() {
	for _, pg := range cp.pages {
		delete(cp.owner.cpages, pg.id)
		pg.destroy(cp.owner.raw)
	}

	cp.pages = nil
}
