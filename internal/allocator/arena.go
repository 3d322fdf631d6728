package allocator

import (
	"unsafe"

	allocerrors "github.com/aantropov/memalloc/internal/errors"
	"github.com/aantropov/memalloc/internal/xdebug"
)

// arenaID is an index handle into the allocator's arena registry — spec.md
// §9 asks for index handles in place of raw cyclic pointers between slot,
// arena and pool, so a slot header never stores more than a small integer.
type arenaID uint32

// arena is the fixed-capacity slab of spec.md §4.3: a contiguous
// raw-acquired region hosting capacity slots of blockSize bytes apiece and
// an "all free" free set. Each slot's header is written lazily by alloc,
// once the caller's alignment is known.
type arena struct {
	id        arenaID
	owner     *pool
	buf       []byte
	blockSize uintptr
	capacity  uint32
	freeCount uint32
	begin     uintptr
	end       uintptr

	// Free-set representation — exactly one of these is non-nil,
	// matching the Config.Scheme the owning pool was built with
	// (spec.md §4.2's scheme table).
	freeStack []uint32
	bitmap    *bitmapTree
}

// newArena carves capacity slots of blockSize bytes out of one raw-acquired
// region, per spec.md §4.3. blockSize is the TOTAL per-slot footprint
// computed by classify — header, payload and worst-case alignment slack
// together — so every slot has room for its header to land wherever the
// caller's requested alignment puts the user pointer (see arena.alloc).
func newArena(id arenaID, owner *pool, blockSize uintptr, capacity uint32, scheme Scheme, raw rawProvider) (*arena, error) {
	total := blockSize * uintptr(capacity)

	buf, err := raw.acquire(pageRoundUp(total))
	if err != nil {
		return nil, allocerrors.Exhausted(classShift(blockSize), total)
	}

	a := &arena{
		id:        id,
		owner:     owner,
		buf:       buf,
		blockSize: blockSize,
		capacity:  capacity,
		freeCount: capacity,
	}
	a.begin = uintptr(unsafe.Pointer(&buf[0]))
	a.end = a.begin + total

	switch scheme {
	case SchemeBitmap:
		a.bitmap = newBitmapTree(int(capacity))
	default: // SchemeIndexStack
		a.freeStack = make([]uint32, capacity)
		for i := range a.freeStack {
			a.freeStack[i] = uint32(i)
		}
	}

	return a, nil
}

func (a *arena) slotStride() uintptr {
	return a.blockSize
}

// full reports that no slot in this arena is free.
func (a *arena) full() bool { return a.freeCount == 0 }

// empty reports that every slot in this arena is free.
func (a *arena) empty() bool { return a.freeCount == a.capacity }

// contains reports whether addr lies inside this arena's raw region,
// satisfying spec.md §4.5's validation step for the pointer→owner lookup.
func (a *arena) contains(addr uintptr) bool {
	return addr >= a.begin && addr < a.end
}

// alloc returns the next free slot's user address, or ok == false when the
// arena is full (spec.md §4.3's "busy" signal). The slot was sized by
// classify to hold headerSize + size + align worth of worst-case slack, so
// the aligned user pointer and its preceding header always fit inside it
// regardless of where within the slot alignUp lands them.
func (a *arena) alloc(requestedSize, align uintptr) (unsafe.Pointer, bool) {
	cell, ok := a.acquireCell()
	if !ok {
		return nil, false
	}

	a.freeCount--

	slotStart := uintptr(unsafe.Pointer(&a.buf[uintptr(cell)*a.slotStride()]))
	userStart := alignUp(slotStart+headerSize, align)

	h := (*header)(unsafe.Pointer(userStart - headerSize))
	h.direct = 0
	h.arenaID = uint32(a.id)
	h.cell = cell
	h.size = uint32(requestedSize)

	return unsafe.Pointer(userStart), true
}

func (a *arena) acquireCell() (uint32, bool) {
	if a.bitmap != nil {
		idx, ok := a.bitmap.acquire()
		return uint32(idx), ok
	}

	n := len(a.freeStack)
	if n == 0 {
		return 0, false
	}

	cell := a.freeStack[n-1]
	a.freeStack = a.freeStack[:n-1]

	return cell, true
}

// free releases the slot identified by cell, per spec.md §4.3's contract
// that address must have come from this arena and still be live.
func (a *arena) free(cell uint32) {
	xdebug.Assert(cell < a.capacity, "free: cell %d out of range for capacity %d", cell, a.capacity)

	if a.bitmap != nil {
		a.bitmap.release(int(cell))
	} else {
		a.freeStack = append(a.freeStack, cell)
	}

	a.freeCount++
}

// footprint is the raw byte size backing this arena, used to decide
// whether a fully-empty arena clears spec.md §3's release threshold.
func (a *arena) footprint() uintptr {
	return uintptr(len(a.buf))
}

// destroy releases the arena's raw region back to the OS exactly once.
func (a *arena) destroy(raw rawProvider) {
	raw.release(a.buf)
	a.buf = nil
}
