// Package vmm is the thin virtual-memory wrapper the layered allocator
// calls into. It exposes exactly four capabilities plus two queries:
// reserve a contiguous region without backing, commit a sub-range with
// read/write protection, decommit a sub-range, remap a committed
// sub-range to a new address without unmapping the source, and query
// page size / total physical memory. Nothing above this package knows
// which OS it is running on.
package vmm

import "errors"

// ErrUnsupported is returned by queries or primitives that have no
// implementation on the current platform.
var ErrUnsupported = errors.New("vmm: unsupported on this platform")
