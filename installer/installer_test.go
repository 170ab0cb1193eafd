package installer_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itchio/wharf/wtest"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/installer"
	"github.com/oaiba/oblauncher/manager"
	"github.com/oaiba/oblauncher/receipt"
	"github.com/oaiba/oblauncher/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		wtest.Must(t, err)
		_, err = w.Write([]byte(content))
		wtest.Must(t, err)
	}
	wtest.Must(t, zw.Close())
	return buf.Bytes()
}

type fixture struct {
	root    string
	tempDir string
	store   *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	dir, err := ioutil.TempDir("", "installer-test")
	wtest.Must(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	f := &fixture{
		root:    filepath.Join(dir, "games"),
		tempDir: filepath.Join(dir, "tmp"),
		store:   store.NewMemoryStore(),
	}
	wtest.Must(t, f.store.Set(store.KeyInstallPath, f.root))
	return f
}

func (f *fixture) params(game *catalog.GameDescriptor) *installer.Params {
	return &installer.Params{
		Game:        game,
		InstallRoot: f.root,
		TempDir:     f.tempDir,
		HTTPClient:  http.DefaultClient,
		UserAgent:   "oblauncher/test",
	}
}

func (f *fixture) status(gameID string) manager.GameStatus {
	checker := &manager.Checker{Store: f.store}
	return checker.CheckStatus(gameID)
}

func serveBytes(payload []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		w.Write(payload)
	}))
}

func game(url string, version string) *catalog.GameDescriptor {
	return &catalog.GameDescriptor{
		ID:          "space-pirates",
		Name:        "Space Pirates",
		DownloadURL: url,
		Version:     version,
		Executable:  "bin/pirates.exe",
	}
}

func TestPerformInstallsGame(t *testing.T) {
	f := newFixture(t)
	ts := serveBytes(makeZip(t, map[string]string{
		"bin/pirates.exe": "MZ",
		"data/ships.json": "[]",
		"README.txt":      "arr",
	}))
	defer ts.Close()

	var events []installer.ProgressEvent
	res, err := installer.Perform(context.Background(), f.params(game(ts.URL+"/pirates.zip", "1.0.0")), func(ev installer.ProgressEvent) {
		events = append(events, ev)
	})
	wtest.Must(t, err)

	gameDir := filepath.Join(f.root, "space-pirates")
	absDir, err := filepath.Abs(gameDir)
	wtest.Must(t, err)
	assert.EqualValues(t, absDir, res.Path)
	assert.EqualValues(t, "1.0.0", res.Version)

	bs, err := ioutil.ReadFile(filepath.Join(gameDir, "bin", "pirates.exe"))
	wtest.Must(t, err)
	assert.EqualValues(t, "MZ", string(bs))

	st := f.status("space-pirates")
	assert.EqualValues(t, manager.StatusInstalled, st.Status)
	assert.EqualValues(t, "1.0.0", st.Version)

	_, err = os.Stat(filepath.Join(f.tempDir, "space-pirates.zip"))
	assert.True(t, os.IsNotExist(err), "downloaded archive should be cleaned up")

	if assert.NotEmpty(t, events) {
		last := 0.0
		for _, ev := range events {
			assert.EqualValues(t, "space-pirates", ev.GameID)
			assert.True(t, ev.Progress >= last)
			assert.True(t, ev.Progress >= 0 && ev.Progress <= 100)
			last = ev.Progress
		}
		assert.EqualValues(t, 100.0, events[len(events)-1].Progress)
	}
}

func TestPerformUpdateOverwrites(t *testing.T) {
	f := newFixture(t)

	v1 := serveBytes(makeZip(t, map[string]string{"bin/pirates.exe": "v1"}))
	defer v1.Close()
	_, err := installer.Perform(context.Background(), f.params(game(v1.URL, "1.0.0")), nil)
	wtest.Must(t, err)

	v2 := serveBytes(makeZip(t, map[string]string{"bin/pirates.exe": "v2"}))
	defer v2.Close()
	_, err = installer.Perform(context.Background(), f.params(game(v2.URL, "2.0.0")), nil)
	wtest.Must(t, err)

	st := f.status("space-pirates")
	assert.EqualValues(t, manager.StatusInstalled, st.Status)
	assert.EqualValues(t, "2.0.0", st.Version)

	bs, err := ioutil.ReadFile(filepath.Join(f.root, "space-pirates", "bin", "pirates.exe"))
	wtest.Must(t, err)
	assert.EqualValues(t, "v2", string(bs))
}

func TestPerformDownloadFailure(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := installer.Perform(context.Background(), f.params(game(ts.URL, "1.0.0")), nil)
	assert.Error(t, err)
	_, ok := err.(*installer.DownloadError)
	assert.True(t, ok, "expected DownloadError, got %T", err)

	assert.EqualValues(t, manager.StatusNotInstalled, f.status("space-pirates").Status)
	_, statErr := os.Stat(receipt.Path(filepath.Join(f.root, "space-pirates")))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPerformCorruptArchive(t *testing.T) {
	f := newFixture(t)
	ts := serveBytes([]byte("this is definitely not a zip file"))
	defer ts.Close()

	_, err := installer.Perform(context.Background(), f.params(game(ts.URL, "1.0.0")), nil)
	assert.Error(t, err)
	_, ok := err.(*installer.ExtractionError)
	assert.True(t, ok, "expected ExtractionError, got %T", err)

	assert.EqualValues(t, manager.StatusNotInstalled, f.status("space-pirates").Status)

	_, statErr := os.Stat(filepath.Join(f.tempDir, "space-pirates.zip"))
	assert.True(t, os.IsNotExist(statErr), "archive should be removed on failure")
}

func TestPerformFailedUpdateIsNotInstalled(t *testing.T) {
	f := newFixture(t)

	v1 := serveBytes(makeZip(t, map[string]string{"bin/pirates.exe": "v1"}))
	defer v1.Close()
	_, err := installer.Perform(context.Background(), f.params(game(v1.URL, "1.0.0")), nil)
	wtest.Must(t, err)
	assert.EqualValues(t, manager.StatusInstalled, f.status("space-pirates").Status)

	broken := serveBytes([]byte("nope"))
	defer broken.Close()
	_, err = installer.Perform(context.Background(), f.params(game(broken.URL, "2.0.0")), nil)
	assert.Error(t, err)

	assert.EqualValues(t, manager.StatusNotInstalled, f.status("space-pirates").Status)
}

func TestPerformInvalidGame(t *testing.T) {
	f := newFixture(t)

	_, err := installer.Perform(context.Background(), f.params(nil), nil)
	assert.Error(t, err)

	g := game("ftp://example.org/game.zip", "1.0.0")
	_, err = installer.Perform(context.Background(), f.params(g), nil)
	assert.Error(t, err)

	g = game("http://example.org/game.zip", "1.0.0")
	g.ID = "../escape"
	_, err = installer.Perform(context.Background(), f.params(g), nil)
	assert.Error(t, err)
}

func TestPerformUnknownSize(t *testing.T) {
	f := newFixture(t)
	payload := makeZip(t, map[string]string{"bin/pirates.exe": "MZ"})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		half := len(payload) / 2
		w.Write(payload[:half])
		w.(http.Flusher).Flush()
		w.Write(payload[half:])
	}))
	defer ts.Close()

	var events []installer.ProgressEvent
	_, err := installer.Perform(context.Background(), f.params(game(ts.URL, "1.0.0")), func(ev installer.ProgressEvent) {
		events = append(events, ev)
	})
	wtest.Must(t, err)

	if assert.NotEmpty(t, events) {
		for _, ev := range events {
			assert.True(t, ev.Indeterminate)
			assert.EqualValues(t, 0, ev.Progress)
		}
	}
	assert.EqualValues(t, manager.StatusInstalled, f.status("space-pirates").Status)
}

func TestTaskEvents(t *testing.T) {
	f := newFixture(t)
	ts := serveBytes(makeZip(t, map[string]string{"bin/pirates.exe": "MZ"}))
	defer ts.Close()

	task := installer.Start(context.Background(), f.params(game(ts.URL, "1.0.0")))
	assert.NotEmpty(t, task.ID)

	var completes []*installer.CompleteEvent
	var progresses int
	for ev := range task.Events() {
		switch ev.Type {
		case installer.EventProgress:
			assert.Empty(t, completes, "no progress after complete")
			progresses++
		case installer.EventComplete:
			completes = append(completes, ev.Complete)
		}
	}

	assert.True(t, progresses > 0)
	if assert.Len(t, completes, 1) {
		c := completes[0]
		assert.True(t, c.Success)
		assert.EqualValues(t, "space-pirates", c.GameID)
		assert.NotEmpty(t, c.Path)
		assert.Empty(t, c.Error)
	}

	assert.EqualValues(t, completes[0], task.Wait())
}

func TestTaskFailureEvent(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	task := installer.Start(context.Background(), f.params(game(ts.URL, "1.0.0")))
	c := task.Wait()
	assert.False(t, c.Success)
	assert.Contains(t, c.Error, "500")
	assert.Empty(t, c.Path)
}

func TestTaskCancel(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	task := installer.Start(context.Background(), f.params(game(ts.URL, "1.0.0")))

	// wait until the download has actually started
	select {
	case ev := <-task.Events():
		assert.EqualValues(t, installer.EventProgress, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first progress event")
	}

	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cancelled task")
	}

	c := task.Wait()
	assert.False(t, c.Success)
	assert.Contains(t, c.Error, "cancelled")
	assert.EqualValues(t, manager.StatusNotInstalled, f.status("space-pirates").Status)
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, installer.IsCancelled(errors.WithStack(context.Canceled)))
	assert.False(t, installer.IsCancelled(errors.New("disk full")))
}

func TestPerformRelativeInstallRoot(t *testing.T) {
	f := newFixture(t)
	ts := serveBytes(makeZip(t, map[string]string{"bin/pirates.exe": "MZ"}))
	defer ts.Close()

	wd, err := os.Getwd()
	wtest.Must(t, err)
	relRoot, err := filepath.Rel(wd, f.root)
	wtest.Must(t, err)
	wtest.Must(t, f.store.Set(store.KeyInstallPath, relRoot))

	params := f.params(game(ts.URL, "1.0.0"))
	params.InstallRoot = relRoot
	res, err := installer.Perform(context.Background(), params, nil)
	wtest.Must(t, err)
	assert.True(t, filepath.IsAbs(res.Path))

	st := f.status("space-pirates")
	assert.EqualValues(t, manager.StatusInstalled, st.Status)
	assert.EqualValues(t, res.Path, st.Path)
}

func TestTaskConnectionDropped(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, bufrw, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()

		// promise a megabyte, hang up after 4KiB
		bufrw.WriteString("HTTP/1.1 200 OK\r\n")
		bufrw.WriteString("Content-Type: application/zip\r\n")
		bufrw.WriteString("Content-Length: 1048576\r\n")
		bufrw.WriteString("\r\n")
		bufrw.Write(bytes.Repeat([]byte{'P'}, 4096))
		bufrw.Flush()
	}))
	defer ts.Close()

	task := installer.Start(context.Background(), f.params(game(ts.URL, "1.0.0")))

	var completes []*installer.CompleteEvent
	for ev := range task.Events() {
		if ev.Type == installer.EventComplete {
			completes = append(completes, ev.Complete)
		}
	}

	if assert.Len(t, completes, 1) {
		c := completes[0]
		assert.False(t, c.Success)
		assert.NotEmpty(t, c.Error)
		assert.Empty(t, c.Path)
	}

	assert.EqualValues(t, manager.StatusNotInstalled, f.status("space-pirates").Status)
	_, statErr := os.Stat(receipt.Path(filepath.Join(f.root, "space-pirates")))
	assert.True(t, os.IsNotExist(statErr), "no install record on failure")
	_, statErr = os.Stat(filepath.Join(f.tempDir, "space-pirates.zip"))
	assert.True(t, os.IsNotExist(statErr), "archive should be removed on failure")
}

func TestTaskEventsWithoutReader(t *testing.T) {
	f := newFixture(t)

	noise := make([]byte, 256*1024)
	rand.New(rand.NewSource(0xfeed)).Read(noise)
	payload := makeZip(t, map[string]string{
		"bin/pirates.exe": "MZ",
		"data/noise.bin":  string(noise),
	})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		for i := 0; i < len(payload); i += 1024 {
			end := i + 1024
			if end > len(payload) {
				end = len(payload)
			}
			w.Write(payload[i:end])
			w.(http.Flusher).Flush()
		}
	}))
	defer ts.Close()

	task := installer.Start(context.Background(), f.params(game(ts.URL, "1.0.0")))

	// nobody reads until the install is over
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("install blocked on an unread event stream")
	}

	var events []installer.Event
	for ev := range task.Events() {
		events = append(events, ev)
	}

	assert.True(t, len(events) <= 64)
	if !assert.NotEmpty(t, events) {
		return
	}
	last := events[len(events)-1]
	assert.EqualValues(t, installer.EventComplete, last.Type)
	assert.True(t, last.Complete.Success)

	progress := 0.0
	for _, ev := range events[:len(events)-1] {
		assert.EqualValues(t, installer.EventProgress, ev.Type)
		assert.True(t, ev.Progress.Progress >= progress)
		progress = ev.Progress.Progress
	}
}
