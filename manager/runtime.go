package manager

import (
	"fmt"
	"runtime"
)

// Runtime describes an os-arch combo in a convenient way
type Runtime struct {
	Platform string `json:"platform"`
	Is64     bool   `json:"is64"`
}

func (r *Runtime) String() string {
	var arch string
	if r.Is64 {
		arch = "64-bit"
	} else {
		arch = "32-bit"
	}
	return fmt.Sprintf("%s %s", arch, r.Platform)
}

var cachedRuntime *Runtime

// CurrentRuntime returns the platform the launcher is running on
func CurrentRuntime() *Runtime {
	if cachedRuntime != nil {
		return cachedRuntime
	}

	var platform string
	switch runtime.GOOS {
	case "windows":
		platform = "windows"
	case "darwin":
		platform = "osx"
	default:
		platform = runtime.GOOS
	}

	cachedRuntime = &Runtime{
		Platform: platform,
		Is64:     runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64",
	}
	return cachedRuntime
}
