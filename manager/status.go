package manager

import (
	"path/filepath"

	"github.com/itchio/wharf/state"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/receipt"
	"github.com/oaiba/oblauncher/store"
)

type Status string

const (
	// No install root was ever chosen
	StatusNoInstallPath Status = "no_install_path"
	// The game's install record is missing or unreadable
	StatusNotInstalled Status = "not_installed"
	// The game's install record was read successfully
	StatusInstalled Status = "installed"
)

// GameStatus is computed on demand and never cached.
type GameStatus struct {
	Status Status `json:"status"`
	// Only set when Status is StatusInstalled
	Version string `json:"version,omitempty"`
	// Only set when Status is StatusInstalled
	Path string `json:"path,omitempty"`
}

// GameDir returns the absolute folder a game is installed to
// under an install root. Relative roots are resolved against the
// working directory.
func GameDir(installRoot string, gameID string) string {
	if absRoot, err := filepath.Abs(installRoot); err == nil {
		installRoot = absRoot
	}
	return filepath.Join(installRoot, gameID)
}

// Checker determines whether games are installed, and at which version.
type Checker struct {
	Store store.Store

	// Optional, receives the reason a game is considered not installed
	Consumer *state.Consumer
}

// CheckStatus never fails: anything going wrong while reading
// the install record means the game needs to be (re)installed.
func (c *Checker) CheckStatus(gameID string) GameStatus {
	installRoot := store.GetInstallPath(c.Store)
	if installRoot == "" {
		return GameStatus{Status: StatusNoInstallPath}
	}

	if !catalog.IsValidID(gameID) {
		c.debugf("%q is not a valid game id", gameID)
		return GameStatus{Status: StatusNotInstalled}
	}

	gameDir := GameDir(installRoot, gameID)
	r, err := receipt.Read(gameDir)
	if err != nil {
		c.debugf("%s is not installed: %s", gameID, err.Error())
		return GameStatus{Status: StatusNotInstalled}
	}

	return GameStatus{
		Status:  StatusInstalled,
		Version: r.Version,
		Path:    gameDir,
	}
}

func (c *Checker) debugf(format string, args ...interface{}) {
	if c.Consumer != nil {
		c.Consumer.Debugf(format, args...)
	}
}
