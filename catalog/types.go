package catalog

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// GameDescriptor is the static metadata describing one installable game.
// Descriptors come from the catalog and are never mutated afterwards.
type GameDescriptor struct {
	// Unique, stable identifier, also used as the install folder name
	ID string `json:"id"`
	// Human-friendly name
	Name string `json:"name"`
	// Where the zip archive for this game can be downloaded from
	DownloadURL string `json:"downloadUrl"`
	// Version recorded after a successful install
	Version string `json:"version"`
	// Path of the executable, relative to the install folder
	Executable string `json:"executable"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// IsValidID returns true if id can be safely used as a single
// path element under an install root.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

func (g GameDescriptor) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.ID, validation.Required, validation.Match(idPattern)),
		validation.Field(&g.Name, validation.Required),
		validation.Field(&g.DownloadURL, validation.Required, httpURLRule{}),
		validation.Field(&g.Version, validation.Required),
		validation.Field(&g.Executable, validation.Required, relativePathRule{}),
	)
}

func (g *GameDescriptor) String() string {
	return fmt.Sprintf("%s (%s) v%s", g.Name, g.ID, g.Version)
}

type httpURLRule struct{}

func (httpURLRule) Validate(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL")
	}
	if u.Host == "" {
		return fmt.Errorf("must have a host")
	}
	return nil
}

type relativePathRule struct{}

func (relativePathRule) Validate(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	if filepath.IsAbs(s) || strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) {
		return fmt.Errorf("must be relative to the install folder")
	}
	clean := filepath.ToSlash(filepath.Clean(s))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("must stay inside the install folder")
	}
	return nil
}
