// +build darwin

package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// e.g. `~/Library/Application Support/oblauncher`
func GetAppDataPath(appName string) (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.New("$HOME is not set")
	}

	return filepath.Join(home, "Library", "Application Support", appName), nil
}
