package layered

import (
	"fmt"

	"github.com/memlayer/memlayer/internal/vmm"
)

// Compile-time configuration (spec §6). The defaults match the spec's
// design points exactly: a 35 TiB reservation split into 35 layers of
// 1 TiB each, minimum block 64 B, reallocation switches from copy to
// remap at 8 MiB.
const (
	DefaultMinBlockSize    = 1 << 6  // 64 B, s_min = 6
	DefaultLayerSpan       = 1 << 40 // M, 1 TiB
	DefaultLayerCount      = 35      // L
	DefaultReservation     = DefaultLayerCount * DefaultLayerSpan
	DefaultMemcpyThreshold = 8 << 20 // 8 MiB
)

// Options holds the five tunables of spec §6. The teacher's Allocator has
// no configuration surface at all (everything is a package const); this
// repo keeps the tunables as compile-time defaults but exposes them as a
// struct so tests can shrink the reservation instead of mapping 35 TiB of
// address space per test case.
type Options struct {
	MinBlockSize    uintptr
	LayerSpan       uintptr
	LayerCount      int
	Reservation     uintptr
	MemcpyThreshold uintptr
}

// DefaultOptions returns the spec's design-point configuration.
func DefaultOptions() Options {
	return Options{
		MinBlockSize:    DefaultMinBlockSize,
		LayerSpan:       DefaultLayerSpan,
		LayerCount:      DefaultLayerCount,
		Reservation:     DefaultReservation,
		MemcpyThreshold: DefaultMemcpyThreshold,
	}
}

// withDefaults fills any zero field from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinBlockSize == 0 {
		o.MinBlockSize = d.MinBlockSize
	}
	if o.LayerSpan == 0 {
		o.LayerSpan = d.LayerSpan
	}
	if o.LayerCount == 0 {
		o.LayerCount = d.LayerCount
	}
	if o.Reservation == 0 {
		o.Reservation = d.Reservation
	}
	if o.MemcpyThreshold == 0 {
		o.MemcpyThreshold = d.MemcpyThreshold
	}
	return o
}

// isPowerOfTwo reports whether n is an exact power of two.
func isPowerOfTwo(n uintptr) bool { return n != 0 && n&(n-1) == 0 }

// validate enforces spec §6's mutual-consistency rule: min_block_size =
// 2^s_min, M = 2^(s_min+L-1), V >= L*M.
func (o Options) validate() error {
	if !isPowerOfTwo(o.MinBlockSize) {
		return fmt.Errorf("layered: MinBlockSize %d is not a power of two", o.MinBlockSize)
	}
	if !isPowerOfTwo(o.LayerSpan) {
		return fmt.Errorf("layered: LayerSpan %d is not a power of two", o.LayerSpan)
	}
	if o.LayerCount <= 0 {
		return fmt.Errorf("layered: LayerCount %d must be positive", o.LayerCount)
	}
	wantSpan := o.MinBlockSize << uint(o.LayerCount-1)
	if wantSpan != o.LayerSpan {
		return fmt.Errorf("layered: LayerSpan %d inconsistent with MinBlockSize %d and LayerCount %d (want %d)",
			o.LayerSpan, o.MinBlockSize, o.LayerCount, wantSpan)
	}
	if o.Reservation < uintptr(o.LayerCount)*o.LayerSpan {
		return fmt.Errorf("layered: Reservation %d smaller than LayerCount*LayerSpan %d",
			o.Reservation, uintptr(o.LayerCount)*o.LayerSpan)
	}
	if pageSize := vmm.PageSize(); o.MemcpyThreshold <= pageSize {
		return fmt.Errorf("layered: MemcpyThreshold %d must exceed page size %d", o.MemcpyThreshold, pageSize)
	}
	return nil
}
