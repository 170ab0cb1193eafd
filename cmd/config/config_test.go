package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/itchio/wharf/wtest"
	"github.com/oaiba/oblauncher/cmd/config"
	"github.com/oaiba/oblauncher/store"
	"github.com/stretchr/testify/assert"
)

func TestSetInstallPath(t *testing.T) {
	dir, err := ioutil.TempDir("", "config-cmd-test")
	wtest.Must(t, err)
	defer os.RemoveAll(dir)

	s := store.NewMemoryStore()
	target := filepath.Join(dir, "some", "games")

	absDir, err := config.SetInstallPath(s, target)
	wtest.Must(t, err)
	assert.True(t, filepath.IsAbs(absDir))
	assert.EqualValues(t, absDir, store.GetInstallPath(s))

	stats, err := os.Stat(absDir)
	wtest.Must(t, err)
	assert.True(t, stats.IsDir())
}
