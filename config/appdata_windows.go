// +build windows

package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// `%APPDATA%\oblauncher` aka `C:\Users\foobar\AppData\Roaming\oblauncher`
func GetAppDataPath(appName string) (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		return "", errors.New("%APPDATA% is not set")
	}
	return filepath.Join(appData, appName), nil
}
