// Package sizeclass implements the size-class arithmetic of spec §4.2:
// mapping a requested byte count to a layer index and block size, and
// recovering a layer index purely from a pointer's address, with no side
// table (spec §9 "Pointer-derived type information").
package sizeclass

import "github.com/cznic/mathutil"

// Geometry is the layer partitioning derived from the allocator's
// compile-time configuration: LayerCount layers, each spanning LayerSpan
// bytes, layer i holding blocks of exactly 2^(i+sMin) bytes where sMin is
// log2(MinBlockSize).
type Geometry struct {
	MinBlockSize uintptr
	LayerSpan    uintptr
	LayerCount   int
}

// ceilLog2 returns ceil(log2(n)) for n >= 1, following the same
// "round up, take bit length of n-1" shape as the teacher's
// mathutil.BitLen(roundup(size, mallocAllign)-1) call.
func ceilLog2(n uintptr) uint {
	if n <= 1 {
		return 0
	}
	return uint(mathutil.BitLen(int(n - 1)))
}

func (g Geometry) sMin() uint { return ceilLog2(g.MinBlockSize) }

// ForSize computes the destination layer and block size for a request of
// n bytes (spec §4.1 "allocate(n)"): req = max(n, min_block_size),
// rounded up to the next power of two. ok is false when the resulting
// block size exceeds the layer span (the maximum block size, spec §6).
func (g Geometry) ForSize(n uintptr) (layer int, blockSize uintptr, ok bool) {
	req := n
	if req < g.MinBlockSize {
		req = g.MinBlockSize
	}
	if req > g.LayerSpan {
		return 0, 0, false
	}
	b := ceilLog2(req)
	blockSize = uintptr(1) << b
	return int(b - g.sMin()), blockSize, true
}

// ForAddr recovers the layer index of a live pointer from its address
// alone: layer_index = (p - base) / M.
func (g Geometry) ForAddr(base, p uintptr) int {
	return int((p - base) / g.LayerSpan)
}

// BlockSize returns the fixed block size of layer i: 2^(i+sMin).
func (g Geometry) BlockSize(layer int) uintptr {
	return uintptr(1) << (uint(layer) + g.sMin())
}

// Capacity returns the number of blocks layer i can hold: LayerSpan /
// BlockSize(i).
func (g Geometry) Capacity(layer int) uintptr {
	return g.LayerSpan / g.BlockSize(layer)
}
