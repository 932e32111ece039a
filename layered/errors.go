package layered

import "errors"

// The three failure kinds of spec §7. All are returned inline rather than
// panicked; the teacher follows the same discipline (mmap0/unmap errors
// bubble up as plain `error` values, never a panic for a recoverable
// condition).
var (
	// ErrInitFailed reports that the lazy one-time reservation (spec
	// §4.5) could not be created, e.g. the OS rejected the mmap. The
	// allocator remains uninitialized and every subsequent Allocate or
	// Reallocate call will retry initialization.
	ErrInitFailed = errors.New("layered: reservation initialization failed")

	// ErrTooLarge reports that a requested size exceeds the largest
	// size class (the per-layer span M).
	ErrTooLarge = errors.New("layered: requested size exceeds maximum block size")

	// ErrLayerFull reports that a size class's layer has no free-list
	// entries and its bump index has reached capacity (spec §4.3 "the
	// layer full check"). Exhaustion is reported, never corrupts state.
	ErrLayerFull = errors.New("layered: size class layer exhausted")
)
