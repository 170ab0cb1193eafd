package filtering

import (
	"path"
	"strings"
)

// IgnoredPaths lists names of files and folders that are never
// extracted from game archives. They're matched against every
// component of an entry's path.
var IgnoredPaths = []string{
	".DS_Store",
	"__MACOSX",
	"._*",
	"Thumbs.db",
	"desktop.ini",
	// holds the install lock, must not be clobbered by archive contents
	".oblauncher",
}

// FilterEntry returns false for archive entries which
// should just be skipped.
func FilterEntry(name string) bool {
	name = strings.Replace(name, "\\", "/", -1)
	for _, component := range strings.Split(name, "/") {
		if component == "" {
			continue
		}
		for _, pattern := range IgnoredPaths {
			match, _ := path.Match(pattern, component)
			if match {
				return false
			}
		}
	}

	return true
}
