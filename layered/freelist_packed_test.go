package layered

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// TestPackedFreeListNodeRollover covers spec §8 scenario 5: pushing more
// than (page_size/word_size)-2 frees into the same packed layer forces a
// new head node, and popping back through that many frees eventually
// decommits the old head node's page, observable as the very next
// allocate reusing that node's own address (the node's own block is
// always its own first recorded entry and its last popped one, so its
// retirement and its reuse happen in the same pop — see
// freelist_packed.go).
func TestPackedFreeListNodeRollover(t *testing.T) {
	a := newTestAllocator(t)

	const blockSize = 4096 // layer 6 in testOptions: packed (>= page size)
	warm, err := a.Allocate(blockSize)
	require.NoError(t, err)
	require.NoError(t, a.Free(warm)) // forces ensureInit so a.pageSize is set

	nodeCap := int(nodeCapacity(a.pageSize))
	n := nodeCap + 5 // enough to roll over into a second node

	ptrs := make([]unsafe.Pointer, n)
	for i := range ptrs {
		p, err := a.Allocate(blockSize)
		require.NoError(t, err)
		ptrs[i] = p
	}

	// Free in allocation order: ptrs[0] promotes as the first node and
	// records itself as its own first entry; subsequent frees fill it up
	// to nodeCap entries; the (nodeCap+1)-th free promotes ptrs[nodeCap]
	// as a second, newer head node.
	for _, p := range ptrs {
		require.NoError(t, a.Free(p))
	}

	// Popping back exactly the second node's entries (5 of them) via
	// plain allocate must return, last, the second node's own address —
	// the first entry it ever recorded, and the one whose pop coincides
	// with the node's retirement.
	secondNodeEntries := n - nodeCap
	popped := make([]unsafe.Pointer, secondNodeEntries)
	for i := range popped {
		p, err := a.Allocate(blockSize)
		require.NoError(t, err)
		popped[i] = p
	}
	require.Equal(t, ptrs[nodeCap], popped[len(popped)-1])

	for _, p := range popped {
		require.NoError(t, a.Free(p))
	}
}
