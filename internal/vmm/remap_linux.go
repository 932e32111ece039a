//go:build linux

package vmm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Remap moves the mapping [oldAddr, oldAddr+oldSize) to newAddr without
// unmapping the source (spec §4.1, §6, §9 "Remap-without-unmap
// primitive"). ok is false when the kernel rejects MREMAP_DONTUNMAP
// (pre-5.7, or a sandboxed seccomp profile) — callers must fall back to
// a copy in that case, and should treat the failure as sticky for the
// lifetime of the process.
//
// golang.org/x/sys/unix exports the MREMAP_DONTUNMAP flag value but no
// destination-address-aware wrapper around mremap(2) itself, so the
// syscall is issued directly below, the same way other retrieved example
// code (dsmmcken-dh-cli's uffd_linux.go) calls unix.Syscall6 for ioctls
// that have no dedicated Go wrapper.
func Remap(oldAddr, oldSize, newAddr uintptr) (ok bool, err error) {
	flags := uintptr(unix.MREMAP_MAYMOVE | unix.MREMAP_FIXED | unix.MREMAP_DONTUNMAP)
	r, _, errno := unix.Syscall6(unix.SYS_MREMAP, oldAddr, oldSize, oldSize, flags, newAddr, 0)
	if errno != 0 {
		return false, nil
	}
	if r != newAddr {
		return false, fmt.Errorf("vmm: mremap landed at %#x, wanted %#x", r, newAddr)
	}
	return true, nil
}
