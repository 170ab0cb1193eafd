// +build !windows,!darwin

package config

import (
	"os"
	"path/filepath"
)

// e.g. `~/.config/oblauncher`
func GetAppDataPath(appName string) (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(os.Getenv("HOME"), ".config")
	}

	return filepath.Join(configHome, appName), nil
}
