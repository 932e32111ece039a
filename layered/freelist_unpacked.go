package layered

import "unsafe"

// Unpacked free list (spec §4.4): used when block_size < page_size. A
// freed block's first word holds the successor block's address; the head
// holds the most recently freed block. This is a simplified cousin of the
// teacher's in-page `node{prev, next}` list (cznic-memory/memory.go,
// Free/UnsafeFree) — the teacher keeps a doubly linked list so it can
// detect "every slot in this page is now free" and unmap the whole page;
// sub-page blocks here never get decommitted individually (spec §3/§4.6),
// so only a `next` pointer is needed.

func pushUnpacked(l *LayerState, addr uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = l.freeHead
	l.freeHead = addr
}

// popUnpacked removes and returns the block at the head of the free
// list. Callers must check l.freeHead != 0 first.
func popUnpacked(l *LayerState) uintptr {
	ret := l.freeHead
	l.freeHead = *(*uintptr)(unsafe.Pointer(ret))
	return ret
}
