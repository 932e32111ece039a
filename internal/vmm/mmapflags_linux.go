//go:build linux

package vmm

import "golang.org/x/sys/unix"

// Linux lets an anonymous PROT_NONE reservation skip overcommit accounting
// entirely; other unix-family kernels have no equivalent flag, so it is
// zero there (mmapflags_bsd.go).
const mmapExtraFlags = unix.MAP_NORESERVE
