// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

// Modifications (c) 2024 The Memlayer Authors.

package vmm

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Reserve maps size bytes of address space with no access permissions
// and no physical backing (spec §4.5 "reserves V bytes of virtual space
// with no protection"). The returned base is page-aligned by
// construction of mmap.
func Reserve(size uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE|mmapExtraFlags)
	if err != nil {
		return 0, fmt.Errorf("vmm: reserve %d bytes: %w", size, err)
	}
	if len(b) == 0 {
		return 0, fmt.Errorf("vmm: reserve %d bytes: empty mapping", size)
	}

	base := uintptr(unsafe.Pointer(&b[0]))
	if base&uintptr(osPageMask()) != 0 {
		panic("vmm: reservation not page-aligned")
	}
	return base, nil
}

// Commit grants read/write access to the pages covering [addr, addr+size);
// the range is widened outward to page boundaries, so sub-page blocks may
// be passed as is. Commit is idempotent: committing an already-committed
// range is a no-op error-wise.
func Commit(addr, size uintptr) error {
	start := addr &^ osPageMask()
	end := (addr + size + osPageMask()) &^ osPageMask()
	b := addrSlice(start, end-start)
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("vmm: commit %#x (%d bytes): %w", addr, size, err)
	}
	return nil
}

// Decommit releases the physical backing of [addr, addr+size) and drops
// its protection to none, keeping the virtual reservation intact.
func Decommit(addr, size uintptr) error {
	b := addrSlice(addr, size)
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmm: decommit madvise %#x (%d bytes): %w", addr, size, err)
	}
	if err := unix.Mprotect(b, unix.PROT_NONE); err != nil {
		return fmt.Errorf("vmm: decommit mprotect %#x (%d bytes): %w", addr, size, err)
	}
	return nil
}

// PageSize reports the host's page size.
func PageSize() uintptr { return uintptr(os.Getpagesize()) }

func osPageMask() uintptr { return PageSize() - 1 }

func addrSlice(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}
