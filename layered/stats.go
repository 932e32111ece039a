package layered

import (
	"unsafe"

	"github.com/memlayer/memlayer/internal/vmm"
)

// LayerStats is a read-only snapshot of one layer's bookkeeping.
type LayerStats struct {
	BlockSize uintptr
	InUse     uintptr
	BumpIndex uintptr
	Capacity  uintptr
}

// Stats is a point-in-time, lock-protected snapshot of the allocator's
// state (SPEC_FULL supplement 1), grounded on the teacher's own
// allocs/mmaps/bytes bookkeeping fields, which cznic-memory's own tests
// read directly to assert the allocator returned to a clean state.
type Stats struct {
	Initialized bool
	Layers      []LayerStats

	// TotalPhysicalMemory is the host's installed RAM, queried via
	// vmm.TotalPhysicalMemory (spec §6's "query total physical memory"
	// OS primitive). Zero if the platform has no implementation.
	TotalPhysicalMemory uint64
}

// Stats returns a snapshot of the allocator's current layer bookkeeping.
func (a *Allocator) Stats() Stats {
	a.mu.lock()
	defer a.mu.unlock()

	st := Stats{Initialized: a.initialized}
	st.Layers = make([]LayerStats, len(a.layers))
	for i := range a.layers {
		l := &a.layers[i]
		st.Layers[i] = LayerStats{
			BlockSize: l.blockSize,
			InUse:     l.inUse,
			BumpIndex: l.bumpIndex,
			Capacity:  l.capacity,
		}
	}
	if total, err := vmm.TotalPhysicalMemory(); err == nil {
		st.TotalPhysicalMemory = total
	}
	return st
}

// BlockSize returns the fixed block size of the layer containing p. p
// must be a live pointer returned by Allocate or Reallocate.
func (a *Allocator) BlockSize(p unsafe.Pointer) uintptr {
	a.mu.lock()
	defer a.mu.unlock()
	idx := a.geometry().ForAddr(a.base, uintptr(p))
	return a.layers[idx].blockSize
}
