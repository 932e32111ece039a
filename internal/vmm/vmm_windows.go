// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2024 The Memlayer Authors.

package vmm

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/windows"
)

var pageSize = uintptr(os.Getpagesize())

// handles maps a reservation's base address back to the file-mapping
// handle CreateFileMappingW produced for it, mirroring the teacher's
// handleMap global (mmap_windows.go) — x/sys/windows still requires the
// handle to call UnmapViewOfFile/CloseHandle, it just replaces the raw
// syscall package with the maintained wrapper.
var (
	handlesMu sync.Mutex
	handles   = map[uintptr]windows.Handle{}
)

// Reserve asks Windows for a private, committed-on-demand view large
// enough to hold size bytes, then immediately drops it to PAGE_NOACCESS
// so it behaves like a POSIX PROT_NONE reservation (spec §4.5).
func Reserve(size uintptr) (uintptr, error) {
	maxSizeHigh := uint32(uint64(size) >> 32)
	maxSizeLow := uint32(uint64(size) & 0xFFFFFFFF)
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, maxSizeHigh, maxSizeLow, nil)
	if err != nil {
		return 0, fmt.Errorf("vmm: CreateFileMapping %d bytes: %w", size, err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, size)
	if err != nil {
		windows.CloseHandle(h)
		return 0, fmt.Errorf("vmm: MapViewOfFile %d bytes: %w", size, err)
	}

	if addr&(pageSize-1) != 0 {
		panic("vmm: reservation not page-aligned")
	}

	var old uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_NOACCESS, &old); err != nil {
		windows.UnmapViewOfFile(addr)
		windows.CloseHandle(h)
		return 0, fmt.Errorf("vmm: protect-none %d bytes: %w", size, err)
	}

	handlesMu.Lock()
	handles[addr] = h
	handlesMu.Unlock()
	return addr, nil
}

// Commit grants read/write access to [addr, addr+size).
func Commit(addr, size uintptr) error {
	var old uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_READWRITE, &old); err != nil {
		return fmt.Errorf("vmm: commit %#x (%d bytes): %w", addr, size, err)
	}
	return nil
}

// Decommit releases the physical backing of [addr, addr+size) and drops
// its protection to none.
func Decommit(addr, size uintptr) error {
	if err := windows.VirtualUnlock(addr, size); err != nil && err != windows.ERROR_NOT_LOCKED {
		return fmt.Errorf("vmm: decommit unlock %#x (%d bytes): %w", addr, size, err)
	}
	var old uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_NOACCESS, &old); err != nil {
		return fmt.Errorf("vmm: decommit protect-none %#x (%d bytes): %w", addr, size, err)
	}
	return nil
}

// PageSize reports the host's page size.
func PageSize() uintptr { return pageSize }
