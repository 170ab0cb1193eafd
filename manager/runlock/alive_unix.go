// +build !windows

package runlock

import (
	"golang.org/x/sys/unix"
)

// ProcessAlive returns true if a process with this pid is running
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(pid, 0)
	// EPERM means it exists, we're just not allowed to signal it
	return err == nil || err == unix.EPERM
}
