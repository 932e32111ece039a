package layered

import (
	"unsafe"

	"github.com/memlayer/memlayer/internal/vmm"
)

// Packed free list (spec §4.4): used when block_size >= page_size. Free
// blocks are grouped into page-sized free-list nodes living in place
// inside one of the freed blocks of the layer:
//
//	word 0: pointer to successor node (older node), or 0
//	word 1: link count k
//	words 2..2+k-1: freed-block pointers
//
// Nothing in the teacher plays this role — cznic-memory never lets a
// single allocation reach page size without going straight to its
// one-mmap-per-block path, which has no free list at all (it unmaps
// immediately). This is new code, grounded on the *shape* of the
// teacher's in-place header living inside the mapped region it
// describes, generalized to a node that tracks many freed blocks at
// once instead of one page's bump/used counters.

const wordSize = unsafe.Sizeof(uintptr(0))

func nodeWord(node uintptr, i uintptr) *uintptr {
	return (*uintptr)(unsafe.Pointer(node + i*wordSize))
}

// nodeCapacity is the maximum number of freed-block pointers a single
// page-sized node can hold: (page_size / word_size) - 2.
func nodeCapacity(pageSize uintptr) uintptr {
	return pageSize/wordSize - 2
}

// pushPacked inserts a freed block into the layer's packed free list
// (spec §4.4 "Push").
func pushPacked(l *LayerState, pageSize, spot uintptr) error {
	head := l.freeHead
	full := head != 0 && *nodeWord(head, 1) >= nodeCapacity(pageSize)

	if head == 0 || full {
		// Promote spot to be the new head node: its first page becomes
		// the node header and must stay committed read/write for the
		// node's life; the remainder of its block is returned to the OS.
		if err := vmm.Commit(spot, pageSize); err != nil {
			return err
		}
		*nodeWord(spot, 0) = head
		*nodeWord(spot, 1) = 0
		if rest := l.blockSize - pageSize; rest > 0 {
			if err := vmm.Decommit(spot+pageSize, rest); err != nil {
				return err
			}
		}
		l.freeHead = spot
		head = spot
	} else {
		// spot is an ordinary freed entry, not a node: it holds no
		// header, so its entire block is returned to the OS (spec §3/§4.6
		// "free blocks in packed layers occupy zero physical pages").
		if err := vmm.Decommit(spot, l.blockSize); err != nil {
			return err
		}
	}

	k := *nodeWord(head, 1)
	*nodeWord(head, 2+k) = spot
	*nodeWord(head, 1) = k + 1
	return nil
}

// popPacked removes and returns the most recently freed block tracked by
// the head node (spec §4.4 "Pop"). Callers must check l.freeHead != 0
// first.
func popPacked(l *LayerState, pageSize uintptr) (uintptr, error) {
	head := l.freeHead
	k := *nodeWord(head, 1)
	spot := *nodeWord(head, 2+k-1)
	k--
	*nodeWord(head, 1) = k

	if k == 0 {
		oldHead := head
		l.freeHead = *nodeWord(oldHead, 0)
		if err := vmm.Decommit(oldHead, pageSize); err != nil {
			return 0, err
		}
	}
	return spot, nil
}
