// Package layered implements a general-purpose dynamic memory allocator
// backed entirely by OS virtual-memory primitives. A fixed-size
// contiguous reservation is partitioned into per-size-class layers; each
// layer hands out blocks via a bump pointer backed by a free list, and
// reallocation above a configurable threshold moves page-table mappings
// instead of copying bytes. See spec.md / SPEC_FULL.md for the full
// design.
package layered

import (
	"fmt"
	"unsafe"

	"github.com/memlayer/memlayer/internal/vmm"
	"github.com/memlayer/memlayer/sizeclass"
)

// Allocator is a single allocator instance (spec §2 models this as a
// process-wide singleton; see Default below for that shape, and New for
// the explicit-handle alternative the spec's design notes call out as an
// equivalent local refactor). Its zero value is not ready for use — call
// New, or use Default.
type Allocator struct {
	opts Options

	mu spinlock

	initialized bool
	base        uintptr
	pageSize    uintptr
	layers      []LayerState

	// remapOK tracks whether the host's remap-without-unmap primitive
	// is usable. It starts optimistic and is latched false forever on
	// the first failure (spec §9 "detect availability at build or
	// runtime"; once false, MEMCPY_THRESHOLD is effectively infinite).
	remapOK bool
}

// New constructs an Allocator, validating the five compile-time tunables
// for mutual consistency (spec §6). The reservation itself is not made
// until the first Allocate/Reallocate/Free call (spec §4.5).
func New(opts Options) (*Allocator, error) {
	o := opts.withDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Allocator{opts: o, remapOK: true}, nil
}

// Default is the process-wide singleton used by the package-level
// Allocate/Reallocate/Free functions (spec §2).
var Default = &Allocator{opts: DefaultOptions(), remapOK: true}

// Allocate is Default.Allocate.
func Allocate(n uintptr) (unsafe.Pointer, error) { return Default.Allocate(n) }

// Reallocate is Default.Reallocate.
func Reallocate(p unsafe.Pointer, n uintptr) (unsafe.Pointer, error) {
	return Default.Reallocate(p, n)
}

// Free is Default.Free.
func Free(p unsafe.Pointer) error { return Default.Free(p) }

func (a *Allocator) geometry() sizeclass.Geometry {
	return sizeclass.Geometry{
		MinBlockSize: a.opts.MinBlockSize,
		LayerSpan:    a.opts.LayerSpan,
		LayerCount:   a.opts.LayerCount,
	}
}

// ensureInit performs the lazy, at-most-once reservation of spec §4.5.
// Caller must hold a.mu.
func (a *Allocator) ensureInit() error {
	if a.initialized {
		return nil
	}

	base, err := vmm.Reserve(a.opts.Reservation)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	pageSize := vmm.PageSize()
	geo := a.geometry()
	layers := make([]LayerState, a.opts.LayerCount)
	for i := range layers {
		layers[i].init(base+uintptr(i)*a.opts.LayerSpan, geo.BlockSize(i), geo.Capacity(i), pageSize)
	}

	a.base = base
	a.pageSize = pageSize
	a.layers = layers
	a.initialized = true
	return nil
}

// Allocate computes the size class for n, obtains a block from that
// layer, commits its backing pages read/write, and returns its address
// (spec §4.1 "allocate(n)"). It returns ErrTooLarge if n exceeds the
// largest size class, ErrInitFailed if lazy initialization has never
// succeeded, and ErrLayerFull if the size class is exhausted.
func (a *Allocator) Allocate(n uintptr) (unsafe.Pointer, error) {
	done := traceEnter("Allocate(%#x)", n)
	a.mu.lock()
	defer a.mu.unlock()
	p, err := a.allocateLocked(n)
	done(fmt.Sprintf("%p, %v", p, err))
	return p, err
}

func (a *Allocator) allocateLocked(n uintptr) (unsafe.Pointer, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}

	geo := a.geometry()
	layerIdx, blockSize, ok := geo.ForSize(n)
	if !ok {
		return nil, ErrTooLarge
	}

	l := &a.layers[layerIdx]
	addr, err := l.getSpot(a.pageSize)
	if err != nil {
		return nil, err
	}

	if err := vmm.Commit(addr, blockSize); err != nil {
		return nil, err
	}
	l.inUse++
	return unsafe.Pointer(addr), nil
}

// Free returns p to its layer's free list (spec §4.1 "free(p)"). p must
// have been returned by Allocate or Reallocate on this Allocator; freeing
// any other pointer, double-freeing, or using p afterwards is undefined,
// matching a general-purpose allocator's usual contract (spec §7).
func (a *Allocator) Free(p unsafe.Pointer) error {
	done := traceEnter("Free(%p)", p)
	a.mu.lock()
	defer a.mu.unlock()
	err := a.freeLocked(uintptr(p))
	done(fmt.Sprintf("%v", err))
	return err
}

func (a *Allocator) freeLocked(addr uintptr) error {
	if addr == 0 || !a.initialized {
		return nil
	}
	l := &a.layers[a.geometry().ForAddr(a.base, addr)]
	if err := l.putSpot(a.pageSize, addr); err != nil {
		return err
	}
	l.inUse--
	return nil
}

// Reallocate resizes p to n bytes (spec §4.1 "reallocate(p, n)"). A nil p
// behaves as Allocate(n). Otherwise the old size class is recovered from
// p's address alone; if n maps to that same class, p is returned
// unchanged. Otherwise a block is obtained from the new size class, the
// contents are transferred by copy or by remap depending on the
// destination block size versus MemcpyThreshold, and p is freed.
func (a *Allocator) Reallocate(p unsafe.Pointer, n uintptr) (unsafe.Pointer, error) {
	done := traceEnter("Reallocate(%p, %#x)", p, n)
	a.mu.lock()
	defer a.mu.unlock()

	var (
		result unsafe.Pointer
		err    error
	)
	if p == nil {
		result, err = a.allocateLocked(n)
	} else {
		result, err = a.reallocateLocked(uintptr(p), n)
	}
	done(fmt.Sprintf("%p, %v", result, err))
	return result, err
}

func (a *Allocator) reallocateLocked(oldAddr, n uintptr) (unsafe.Pointer, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}

	geo := a.geometry()
	oldLayerIdx := geo.ForAddr(a.base, oldAddr)
	oldBlockSize := a.layers[oldLayerIdx].blockSize

	newLayerIdx, newBlockSize, ok := geo.ForSize(n)
	if !ok {
		return nil, ErrTooLarge
	}

	if newLayerIdx == oldLayerIdx {
		return unsafe.Pointer(oldAddr), nil
	}

	dst := &a.layers[newLayerIdx]
	newAddr, err := dst.getSpot(a.pageSize)
	if err != nil {
		return nil, err
	}

	if newBlockSize < a.opts.MemcpyThreshold {
		err = a.transferCopy(newAddr, oldAddr, oldBlockSize, newBlockSize)
	} else {
		err = a.transferRemap(newAddr, oldAddr, oldBlockSize, newBlockSize)
	}
	if err != nil {
		return nil, err
	}
	dst.inUse++

	if err := a.freeLocked(oldAddr); err != nil {
		return nil, err
	}
	return unsafe.Pointer(newAddr), nil
}

// transferCopy commits the whole destination block and byte-copies the
// leading min(oldSize, newSize) bytes from src: the whole old block when
// growing, and only what fits when shrinking, so nothing past the
// destination block is written. This preserves contents up to the
// smaller of the old and new sizes (spec §4.1).
func (a *Allocator) transferCopy(dst, src, oldSize, newSize uintptr) error {
	if err := vmm.Commit(dst, newSize); err != nil {
		return err
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	dstBuf := unsafe.Slice((*byte)(unsafe.Pointer(dst)), int(n))
	srcBuf := unsafe.Slice((*byte)(unsafe.Pointer(src)), int(n))
	copy(dstBuf, srcBuf)
	return nil
}

// transferRemap moves the virtual-to-physical mapping of [src,
// src+oldSize) onto dst without unmapping src, commits the remainder of
// dst beyond oldSize, and re-commits src so the subsequent free of the
// old address operates on valid pages (spec §4.1). If the host has no
// usable remap-without-unmap primitive, it falls back to a copy and
// disables remap for the remaining lifetime of the Allocator.
func (a *Allocator) transferRemap(dst, src, oldSize, newSize uintptr) error {
	if a.remapOK {
		ok, err := vmm.Remap(src, oldSize, dst)
		if err != nil {
			return err
		}
		if ok {
			if rest := newSize - oldSize; rest > 0 {
				if err := vmm.Commit(dst+oldSize, rest); err != nil {
					return err
				}
			}
			return vmm.Commit(src, oldSize)
		}
		a.remapOK = false
	}
	return a.transferCopy(dst, src, oldSize, newSize)
}
