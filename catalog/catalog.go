package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/itchio/wharf/state"
	"github.com/pkg/errors"
)

// catalogs are small, anything bigger than that is not one
const maxCatalogSize = 16 * 1024 * 1024

// A Source supplies the list of installable games. Every call
// to Fetch re-reads the underlying file or endpoint.
type Source interface {
	Fetch(ctx context.Context) ([]*GameDescriptor, error)
	String() string
}

// FetchError is returned when the catalog is unreachable or malformed
type FetchError struct {
	Source string
	Err    error
}

func (fe *FetchError) Error() string {
	return fmt.Sprintf("could not fetch catalog from %s: %s", fe.Source, fe.Err.Error())
}

func (fe *FetchError) Cause() error {
	return fe.Err
}

// FileSource reads the catalog from a local JSON file
type FileSource struct {
	Path string
}

var _ Source = (*FileSource)(nil)

func (fs *FileSource) Fetch(ctx context.Context) ([]*GameDescriptor, error) {
	f, err := os.Open(fs.Path)
	if err != nil {
		return nil, &FetchError{Source: fs.String(), Err: err}
	}
	defer f.Close()

	games, err := Parse(f)
	if err != nil {
		return nil, &FetchError{Source: fs.String(), Err: err}
	}
	return games, nil
}

func (fs *FileSource) String() string {
	return fmt.Sprintf("file (%s)", fs.Path)
}

// HTTPSource downloads the catalog from a remote endpoint
type HTTPSource struct {
	URL    string
	Client *http.Client
}

var _ Source = (*HTTPSource)(nil)

func (hs *HTTPSource) Fetch(ctx context.Context) ([]*GameDescriptor, error) {
	games, err := hs.fetch(ctx)
	if err != nil {
		return nil, &FetchError{Source: hs.String(), Err: err}
	}
	return games, nil
}

func (hs *HTTPSource) fetch(ctx context.Context) ([]*GameDescriptor, error) {
	client := hs.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequest("GET", hs.URL, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, errors.Errorf("HTTP %s", res.Status)
	}

	return Parse(res.Body)
}

func (hs *HTTPSource) String() string {
	return fmt.Sprintf("url (%s)", hs.URL)
}

// Parse decodes and validates a JSON catalog. A single invalid
// descriptor makes the whole catalog invalid.
func Parse(r io.Reader) ([]*GameDescriptor, error) {
	var games []*GameDescriptor
	err := json.NewDecoder(io.LimitReader(r, maxCatalogSize)).Decode(&games)
	if err != nil {
		return nil, errors.Wrap(err, "decoding catalog")
	}
	if games == nil {
		return nil, errors.New("catalog is null")
	}

	seen := make(map[string]bool)
	for i, g := range games {
		if g == nil {
			return nil, errors.Errorf("catalog entry %d is null", i)
		}
		err := g.Validate()
		if err != nil {
			return nil, errors.Wrapf(err, "catalog entry %d (%q)", i, g.ID)
		}
		if seen[g.ID] {
			return nil, errors.Errorf("catalog entry %d: duplicate id %q", i, g.ID)
		}
		seen[g.ID] = true
	}

	return games, nil
}

// FetchCatalog is the boundary around a Source: any failure is logged
// and collapses to a nil catalog, the caller shows an empty state.
func FetchCatalog(ctx context.Context, source Source, consumer *state.Consumer) (games []*GameDescriptor) {
	if consumer == nil {
		consumer = &state.Consumer{}
	}

	defer func() {
		if r := recover(); r != nil {
			consumer.Warnf("Fetching catalog panicked: %v", r)
			games = nil
		}
	}()

	games, err := source.Fetch(ctx)
	if err != nil {
		consumer.Warnf("%+v", err)
		return nil
	}

	consumer.Debugf("Fetched %d games from %s", len(games), source)
	return games
}

// Find returns the game with the given id, or nil
func Find(games []*GameDescriptor, id string) *GameDescriptor {
	for _, g := range games {
		if g.ID == id {
			return g
		}
	}
	return nil
}
