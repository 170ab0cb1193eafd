package config

import (
	"os"
	"path/filepath"

	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/mansion"
	"github.com/oaiba/oblauncher/store"
	"github.com/pkg/errors"
)

var getArgs = struct {
	key *string
}{}

var setArgs = struct {
	key   *string
	value *string
}{}

var installPathArgs = struct {
	dir *string
}{}

func Register(ctx *mansion.Context) {
	cmd := ctx.App.Command("config", "Read or change launcher settings")

	{
		get := cmd.Command("get", "Print a setting")
		getArgs.key = get.Arg("key", "Name of the setting, e.g. installPath").Required().String()
		ctx.Register(get, doGet)
	}

	{
		set := cmd.Command("set", "Change a setting")
		setArgs.key = set.Arg("key", "Name of the setting, e.g. installPath").Required().String()
		setArgs.value = set.Arg("value", "New value of the setting").Required().String()
		ctx.Register(set, doSet)
	}

	{
		installPath := cmd.Command("install-path", "Choose the folder games are installed to")
		installPathArgs.dir = installPath.Arg("dir", "Folder to install games to, created if needed").Required().String()
		ctx.Register(installPath, doInstallPath)
	}
}

type GetResult struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

func doGet(ctx *mansion.Context) {
	s := ctx.MustStore()

	value, ok, err := s.Get(*getArgs.key)
	ctx.Must(err)

	res := GetResult{Key: *getArgs.key}
	if ok {
		res.Value = &value
	}

	comm.ResultOrPrint(res, func() {
		if !ok {
			comm.Statf("%s is not set", res.Key)
			return
		}
		comm.Logf("%s", value)
	})
}

func doSet(ctx *mansion.Context) {
	s := ctx.MustStore()
	ctx.Must(s.Set(*setArgs.key, *setArgs.value))
	comm.Statf("%s set to %q", *setArgs.key, *setArgs.value)
}

func doInstallPath(ctx *mansion.Context) {
	dir, err := SetInstallPath(ctx.MustStore(), *installPathArgs.dir)
	ctx.Must(err)
	comm.Statf("Games will be installed to (%s)", dir)
}

// SetInstallPath stores dir, as an absolute path, as the install root.
// The folder is created if needed.
func SetInstallPath(s store.Store, dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}

	err = os.MkdirAll(absDir, 0755)
	if err != nil {
		return "", errors.WithMessage(err, "creating install folder")
	}

	err = s.Set(store.KeyInstallPath, absDir)
	if err != nil {
		return "", err
	}
	return absDir, nil
}
