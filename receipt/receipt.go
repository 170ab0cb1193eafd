package receipt

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/dchest/safefile"
	"github.com/pkg/errors"
)

// FileName is the name of the record written at the root of every install folder
const FileName = "game-info.json"

// A Record describes what was installed to a specific folder.
//
// It is written at the very end of a successful install, and is the
// only thing used to decide whether a game is installed or not.
type Record struct {
	// The version of the game installed at this location
	Version string `json:"version"`
}

// Read returns the record found in installFolder. A missing,
// unreadable or malformed record is an error.
func Read(installFolder string) (*Record, error) {
	contents, err := ioutil.ReadFile(Path(installFolder))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var r *Record
	err = json.Unmarshal(contents, &r)
	if err != nil {
		return nil, errors.Wrap(err, "decoding install record")
	}
	if r == nil {
		return nil, errors.New("install record is null")
	}

	return r, nil
}

// Write atomically replaces the record in installFolder, so readers
// either see the previous record (or none) or the complete new one.
func (r *Record) Write(installFolder string) error {
	contents, err := json.Marshal(r)
	if err != nil {
		return errors.WithStack(err)
	}

	err = safefile.WriteFile(Path(installFolder), contents, 0644)
	if err != nil {
		return errors.Wrap(err, "writing install record")
	}
	return nil
}

// Remove deletes the record from installFolder, if any
func Remove(installFolder string) error {
	err := os.Remove(Path(installFolder))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing install record")
	}
	return nil
}

func Path(installFolder string) string {
	return filepath.Join(installFolder, FileName)
}
