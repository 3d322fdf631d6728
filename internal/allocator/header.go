package allocator

import "unsafe"

// header is the fixed-size per-slot prefix described in spec.md §3: each
// returned address is immediately preceded by one of these. Per spec.md
// §9's design note it stores index handles, never raw pointers — arenaID
// indexes into the allocator's arena registry, and the owning pool is
// reached in O(1) through arena.owner rather than duplicated here.
//
// The direct flag implements spec.md §4.1's strategy 1 for telling
// OS-direct allocations apart from pool-owned ones on free: every pointer
// this package returns, large or small, is preceded by a header.
type header struct {
	direct  uint32 // 1 if this is an OS-direct (oversize) allocation
	arenaID uint32 // owning arena, valid when direct == 0
	cell    uint32 // slot index / free-list cell, valid when direct == 0
	size    uint32 // direct: 0 (sizes live in Allocator.directSizes); pool: caller-requested size
}

// headerSize is ≤16 bytes on 64-bit targets, as required by spec.md §3.
const headerSize = unsafe.Sizeof(header{})

// headerOf recovers the header immediately preceding a user address.
func headerOf(userPtr unsafe.Pointer) *header {
	return (*header)(unsafe.Pointer(uintptr(userPtr) - headerSize))
}
