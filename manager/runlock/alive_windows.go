// +build windows

package runlock

import (
	"golang.org/x/sys/windows"
)

const (
	processQueryLimitedInformation = 0x1000
	stillActive                    = 259
)

// ProcessAlive returns true if a process with this pid is running
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	h, err := windows.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	err = windows.GetExitCodeProcess(h, &code)
	if err != nil {
		return false
	}
	return code == stillActive
}
