//go:build linux

package vmm

import "golang.org/x/sys/unix"

// TotalPhysicalMemory reports the host's total installed RAM in bytes.
// The core only uses this for the diagnostic Stats() snapshot (spec §6
// lists it as a capability, not a hot-path dependency).
func TotalPhysicalMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}
