// Package launcher starts installed games with the platform's
// default handler for their executable.
package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/itchio/wharf/state"
	"github.com/pkg/errors"
	"github.com/skratchdot/open-golang/open"
)

// NotFoundError is returned when a game's executable is missing
type NotFoundError struct {
	Path string
}

func (nfe *NotFoundError) Error() string {
	return fmt.Sprintf("game executable not found at (%s)", nfe.Path)
}

// InvalidExecutableError is returned when an executable path is absolute
// or points outside of the game's folder.
type InvalidExecutableError struct {
	Executable string
}

func (iee *InvalidExecutableError) Error() string {
	return fmt.Sprintf("executable (%s) must be relative to the game folder", iee.Executable)
}

// Opener hands a file over to the operating system
type Opener interface {
	Open(path string) error
}

type defaultOpener struct{}

func (defaultOpener) Open(path string) error {
	return open.Start(path)
}

// DefaultOpener opens files with the platform's default handler
// (xdg-open, open, or start).
var DefaultOpener Opener = defaultOpener{}

type Launcher struct {
	// Defaults to DefaultOpener
	Opener Opener
	// Optional
	Consumer *state.Consumer
}

// Launch opens gamePath/executable. It does not wait for the game
// to exit, nor report whether it crashed later on.
func (l *Launcher) Launch(gamePath string, executable string) error {
	fullPath, err := ResolveExecutable(gamePath, executable)
	if err != nil {
		return err
	}

	stats, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Path: fullPath}
		}
		return errors.WithStack(err)
	}
	if stats.IsDir() {
		return &NotFoundError{Path: fullPath}
	}

	opener := l.Opener
	if opener == nil {
		opener = DefaultOpener
	}

	if l.Consumer != nil {
		l.Consumer.Infof("Launching (%s)", fullPath)
	}
	err = opener.Open(fullPath)
	if err != nil {
		return errors.Wrapf(err, "opening (%s)", fullPath)
	}
	return nil
}

// ResolveExecutable joins gamePath and executable, refusing
// executables that would end up outside of gamePath.
func ResolveExecutable(gamePath string, executable string) (string, error) {
	slashed := strings.Replace(executable, "\\", "/", -1)
	if slashed == "" || strings.HasPrefix(slashed, "/") || filepath.IsAbs(executable) || filepath.VolumeName(executable) != "" {
		return "", &InvalidExecutableError{Executable: executable}
	}

	fullPath := filepath.Join(gamePath, filepath.FromSlash(slashed))
	rel, err := filepath.Rel(filepath.Clean(gamePath), fullPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &InvalidExecutableError{Executable: executable}
	}
	return fullPath, nil
}
