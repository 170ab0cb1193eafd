package mansion

import (
	"os"

	"github.com/mattn/go-isatty"
)

// IsTerminal returns true if stderr, where progress is drawn, is a terminal
func IsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
