package endpoints_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/itchio/wharf/wtest"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/endpoints"
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/manager"
	"github.com/oaiba/oblauncher/store"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	method string
	params json.RawMessage
}

type clientHandler struct {
	notifs chan notification
}

func (ch *clientHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if !req.Notif {
		conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "client has no methods"})
		return
	}
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}
	ch.notifs <- notification{method: req.Method, params: params}
}

// waitFor returns the first notification with the given method,
// skipping (and returning) everything received before it.
func (ch *clientHandler) waitFor(t *testing.T, method string) (notification, []notification) {
	var skipped []notification
	timeout := time.After(10 * time.Second)
	for {
		select {
		case n := <-ch.notifs:
			if n.method == method {
				return n, skipped
			}
			skipped = append(skipped, n)
		case <-timeout:
			t.Fatalf("timed out waiting for %s notification", method)
		}
	}
}

type fakeOpener struct {
	lock   sync.Mutex
	opened []string
}

func (fo *fakeOpener) Open(path string) error {
	fo.lock.Lock()
	defer fo.lock.Unlock()
	fo.opened = append(fo.opened, path)
	return nil
}

type harness struct {
	dir      string
	store    *store.MemoryStore
	opener   *fakeOpener
	services *launcherd.Services
	conn     *jsonrpc2.Conn
	handler  *clientHandler
}

func newServices(t *testing.T) (*launcherd.Services, string) {
	dir, err := ioutil.TempDir("", "endpoints-test")
	wtest.Must(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	return &launcherd.Services{
		Store:      store.NewMemoryStore(),
		Catalog:    &catalog.FileSource{Path: filepath.Join(dir, "games.json")},
		HTTPClient: http.DefaultClient,
		UserAgent:  "oblauncher/test",
		TempDir:    filepath.Join(dir, "tmp"),
		Opener:     &fakeOpener{},
	}, dir
}

func connect(t *testing.T, rwc net.Conn) (*jsonrpc2.Conn, *clientHandler) {
	ch := &clientHandler{notifs: make(chan notification, 1024)}
	conn := jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(rwc, launcherd.LFObjectCodec{}), ch)
	t.Cleanup(func() { conn.Close() })
	return conn, ch
}

// newStdioHarness serves the router over an in-memory pipe, like the
// stdio transport would.
func newStdioHarness(t *testing.T) *harness {
	services, dir := newServices(t)

	serverSide, clientSide := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := launcherd.NewServer("")
	router := endpoints.NewRouter(services, "test")
	go s.ServeStdio(ctx, router, serverSide)

	conn, ch := connect(t, clientSide)
	return &harness{
		dir:      dir,
		store:    services.Store.(*store.MemoryStore),
		opener:   services.Opener.(*fakeOpener),
		services: services,
		conn:     conn,
		handler:  ch,
	}
}

func (h *harness) call(method string, params interface{}, result interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.conn.Call(ctx, method, params, result)
}

func rpcCode(t *testing.T, err error) int64 {
	require.Error(t, err)
	je, ok := err.(*jsonrpc2.Error)
	require.True(t, ok, "expected *jsonrpc2.Error, got %T (%v)", err, err)
	return je.Code
}

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

func TestStore(t *testing.T) {
	h := newStdioHarness(t)

	var getRes launcherd.StoreGetResult
	wtest.Must(t, h.call("Store.Get", &launcherd.StoreGetParams{Key: "installPath"}, &getRes))
	assert.Nil(t, getRes.Value)

	wtest.Must(t, h.conn.Notify(context.Background(), "Store.Set", &launcherd.StoreSetNotification{
		Key:   "installPath",
		Value: "/games",
	}))

	wtest.Must(t, h.call("Store.Get", &launcherd.StoreGetParams{Key: "installPath"}, &getRes))
	if assert.NotNil(t, getRes.Value) {
		assert.EqualValues(t, "/games", *getRes.Value)
	}

	err := h.call("Store.Get", &launcherd.StoreGetParams{}, &getRes)
	assert.EqualValues(t, jsonrpc2.CodeInvalidParams, rpcCode(t, err))
}

func TestCatalogFetch(t *testing.T) {
	h := newStdioHarness(t)
	catalogPath := filepath.Join(h.dir, "games.json")

	var res launcherd.CatalogFetchResult
	wtest.Must(t, h.call("Catalog.Fetch", &launcherd.CatalogFetchParams{}, &res))
	assert.Nil(t, res.Games, "missing catalog is reported as null")

	wtest.Must(t, ioutil.WriteFile(catalogPath, []byte(`[{"id":"moon-rover","name":"Moon Rover","downloadUrl":"http://example.org/moon.zip","version":"0.9","executable":"MoonRover.exe"}]`), 0644))
	wtest.Must(t, h.call("Catalog.Fetch", &launcherd.CatalogFetchParams{}, &res))
	if assert.Len(t, res.Games, 1) {
		assert.EqualValues(t, "moon-rover", res.Games[0].ID)
	}

	// not cached
	wtest.Must(t, ioutil.WriteFile(catalogPath, []byte(`{"not": "a list"}`), 0644))
	res = launcherd.CatalogFetchResult{}
	wtest.Must(t, h.call("Catalog.Fetch", &launcherd.CatalogFetchParams{}, &res))
	assert.Nil(t, res.Games)
}

func TestCheckStatus(t *testing.T) {
	h := newStdioHarness(t)

	var res launcherd.GameCheckStatusResult
	wtest.Must(t, h.call("Game.CheckStatus", &launcherd.GameCheckStatusParams{GameID: "moon-rover"}, &res))
	assert.EqualValues(t, manager.StatusNoInstallPath, res.Status)

	wtest.Must(t, h.store.Set(store.KeyInstallPath, filepath.Join(h.dir, "games")))
	wtest.Must(t, h.call("Game.CheckStatus", &launcherd.GameCheckStatusParams{GameID: "moon-rover"}, &res))
	assert.EqualValues(t, manager.StatusNotInstalled, res.Status)
}

func TestInstallAndLaunch(t *testing.T) {
	h := newStdioHarness(t)
	installRoot := filepath.Join(h.dir, "games")
	wtest.Must(t, h.store.Set(store.KeyInstallPath, installRoot))

	payload := makeZip(t, map[string]string{"MoonRover.exe": "MZ"})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		w.Write(payload)
	}))
	defer ts.Close()

	game := &catalog.GameDescriptor{
		ID:          "moon-rover",
		Name:        "Moon Rover",
		DownloadURL: ts.URL + "/moon.zip",
		Version:     "0.9",
		Executable:  "MoonRover.exe",
	}

	var installRes launcherd.GameInstallResult
	wtest.Must(t, h.call("Game.Install", &launcherd.GameInstallParams{Game: game}, &installRes))
	assert.NotEmpty(t, installRes.TaskID)

	n, skipped := h.handler.waitFor(t, "Game.InstallComplete")
	var complete launcherd.GameInstallCompleteNotification
	wtest.Must(t, json.Unmarshal(n.params, &complete))
	assert.True(t, complete.Success, "install failed: %s", complete.Error)
	assert.EqualValues(t, installRes.TaskID, complete.TaskID)
	assert.EqualValues(t, "moon-rover", complete.GameID)

	lastProgress := -1.0
	for _, s := range skipped {
		if s.method != "Game.DownloadProgress" {
			continue
		}
		var p launcherd.GameDownloadProgressNotification
		wtest.Must(t, json.Unmarshal(s.params, &p))
		assert.EqualValues(t, installRes.TaskID, p.TaskID)
		assert.True(t, p.Progress >= lastProgress)
		lastProgress = p.Progress
	}

	var status launcherd.GameCheckStatusResult
	wtest.Must(t, h.call("Game.CheckStatus", &launcherd.GameCheckStatusParams{GameID: "moon-rover"}, &status))
	assert.EqualValues(t, manager.StatusInstalled, status.Status)
	assert.EqualValues(t, "0.9", status.Version)

	var launchRes launcherd.GameLaunchResult
	wtest.Must(t, h.call("Game.Launch", &launcherd.GameLaunchParams{GamePath: status.Path, Executable: "MoonRover.exe"}, &launchRes))
	assert.EqualValues(t, []string{filepath.Join(status.Path, "MoonRover.exe")}, h.opener.opened)

	err := h.call("Game.Launch", &launcherd.GameLaunchParams{GamePath: status.Path, Executable: "Missing.exe"}, &launchRes)
	assert.EqualValues(t, launcherd.CodeLaunchNotFound, rpcCode(t, err))
	assert.Contains(t, err.Error(), "Missing.exe")
	assert.Len(t, h.opener.opened, 1)

	err = h.call("Game.Launch", &launcherd.GameLaunchParams{GamePath: status.Path, Executable: "../escape.exe"}, &launchRes)
	assert.EqualValues(t, launcherd.CodeInvalidExecutable, rpcCode(t, err))
}

func TestInstallFailure(t *testing.T) {
	h := newStdioHarness(t)
	wtest.Must(t, h.store.Set(store.KeyInstallPath, filepath.Join(h.dir, "games")))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	game := &catalog.GameDescriptor{
		ID:          "moon-rover",
		Name:        "Moon Rover",
		DownloadURL: ts.URL,
		Version:     "0.9",
		Executable:  "MoonRover.exe",
	}

	var installRes launcherd.GameInstallResult
	wtest.Must(t, h.call("Game.Install", &launcherd.GameInstallParams{Game: game}, &installRes))

	n, _ := h.handler.waitFor(t, "Game.InstallComplete")
	var complete launcherd.GameInstallCompleteNotification
	wtest.Must(t, json.Unmarshal(n.params, &complete))
	assert.False(t, complete.Success)
	assert.Contains(t, complete.Error, "403")
	assert.Empty(t, complete.Path)
}

func TestInstallRequiresInstallPath(t *testing.T) {
	h := newStdioHarness(t)

	game := &catalog.GameDescriptor{
		ID:          "moon-rover",
		Name:        "Moon Rover",
		DownloadURL: "http://example.org/moon.zip",
		Version:     "0.9",
		Executable:  "MoonRover.exe",
	}

	var installRes launcherd.GameInstallResult
	err := h.call("Game.Install", &launcherd.GameInstallParams{Game: game}, &installRes)
	assert.EqualValues(t, launcherd.CodeNoInstallPath, rpcCode(t, err))

	err = h.call("Game.Install", &launcherd.GameInstallParams{}, &installRes)
	assert.EqualValues(t, jsonrpc2.CodeInvalidParams, rpcCode(t, err))
}

func TestCancelUnknownInstall(t *testing.T) {
	h := newStdioHarness(t)

	var res launcherd.GameCancelInstallResult
	wtest.Must(t, h.call("Game.CancelInstall", &launcherd.GameCancelInstallParams{TaskID: "nope"}, &res))
	assert.False(t, res.OK)
}

func TestMethodNotFound(t *testing.T) {
	h := newStdioHarness(t)

	var res interface{}
	err := h.call("Game.Uninstall", map[string]interface{}{}, &res)
	assert.EqualValues(t, jsonrpc2.CodeMethodNotFound, rpcCode(t, err))
}

func TestTCPAuthentication(t *testing.T) {
	services, _ := newServices(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	wtest.Must(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := launcherd.NewServer("hunter2")
	go s.ServeTCP(ctx, launcherd.ServeTCPParams{
		Handler:   endpoints.NewRouter(services, "test"),
		Listener:  listener,
		KeepAlive: true,
	})

	tcpConn, err := net.Dial("tcp", listener.Addr().String())
	wtest.Must(t, err)
	conn, _ := connect(t, tcpConn)

	call := func(method string, params interface{}, result interface{}) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return conn.Call(ctx, method, params, result)
	}

	var getRes launcherd.StoreGetResult
	err = call("Store.Get", &launcherd.StoreGetParams{Key: "installPath"}, &getRes)
	assert.EqualValues(t, jsonrpc2.CodeInvalidRequest, rpcCode(t, err))

	var authRes launcherd.MetaAuthenticateResult
	err = call("Meta.Authenticate", &launcherd.MetaAuthenticateParams{Secret: "wrong"}, &authRes)
	assert.EqualValues(t, jsonrpc2.CodeInvalidRequest, rpcCode(t, err))

	wtest.Must(t, call("Meta.Authenticate", &launcherd.MetaAuthenticateParams{Secret: "hunter2"}, &authRes))
	assert.True(t, authRes.OK)

	wtest.Must(t, call("Store.Get", &launcherd.StoreGetParams{Key: "installPath"}, &getRes))
	assert.Nil(t, getRes.Value)
}

func TestAuthenticateOverStdio(t *testing.T) {
	h := newStdioHarness(t)

	var authRes launcherd.MetaAuthenticateResult
	err := h.call("Meta.Authenticate", &launcherd.MetaAuthenticateParams{Secret: "whatever"}, &authRes)
	assert.Error(t, err)
}
