package mansion_test

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/itchio/wharf/wtest"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/mansion"
	"github.com/oaiba/oblauncher/store"
	"github.com/stretchr/testify/assert"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

func newContext(t *testing.T) (*mansion.Context, string) {
	dir, err := ioutil.TempDir("", "mansion-test")
	wtest.Must(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	ctx := mansion.NewContext(kingpin.New("oblauncher", "test"))
	ctx.Version = "1.2.3"
	t.Cleanup(ctx.Close)
	return ctx, dir
}

func TestUserAgent(t *testing.T) {
	ctx, _ := newContext(t)
	assert.EqualValues(t, "oblauncher/1.2.3", ctx.UserAgent())

	ctx.Version = "head"
	ctx.Commit = "abcdef"
	ctx.UserAgentAddition = "electron"
	assert.EqualValues(t, "oblauncher/abcdef electron", ctx.UserAgent())

	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	res, err := ctx.HTTPClient.Get(ts.URL)
	wtest.Must(t, err)
	res.Body.Close()
	assert.EqualValues(t, ctx.UserAgent(), gotUA)
}

func TestExplicitConfigMustExist(t *testing.T) {
	ctx, dir := newContext(t)
	ctx.ConfigPath = filepath.Join(dir, "nope.toml")

	_, err := ctx.Config()
	assert.Error(t, err)
}

func TestCatalogSourceFromConfig(t *testing.T) {
	ctx, dir := newContext(t)
	ctx.ConfigPath = filepath.Join(dir, "launcher.toml")
	wtest.Must(t, ioutil.WriteFile(ctx.ConfigPath, []byte("[catalog]\nurl = \"https://example.org/games.json\"\n"), 0644))

	source, err := ctx.CatalogSource()
	wtest.Must(t, err)
	hs, ok := source.(*catalog.HTTPSource)
	if assert.True(t, ok, "expected HTTPSource, got %T", source) {
		assert.EqualValues(t, "https://example.org/games.json", hs.URL)
		assert.Equal(t, ctx.HTTPClient, hs.Client)
	}
}

func TestStoreOverride(t *testing.T) {
	ctx, dir := newContext(t)
	ctx.ConfigPath = filepath.Join(dir, "launcher.toml")
	wtest.Must(t, ioutil.WriteFile(ctx.ConfigPath, []byte("store_path = \"/this/should/not/be/used.db\"\n"), 0644))
	ctx.StorePath = filepath.Join(dir, "settings.db")

	s, err := ctx.Store()
	wtest.Must(t, err)
	wtest.Must(t, s.Set(store.KeyInstallPath, "/games"))

	again, err := ctx.Store()
	wtest.Must(t, err)
	assert.EqualValues(t, "/games", store.GetInstallPath(again))

	_, err = os.Stat(ctx.StorePath)
	assert.NoError(t, err)
}
