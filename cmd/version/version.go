package version

import (
	"time"

	"github.com/oaiba/oblauncher/buildinfo"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/mansion"
)

func Register(ctx *mansion.Context) {
	cmd := ctx.App.Command("version", "Prints the current version of oblauncher")
	ctx.Register(cmd, do)
}

type VersionData struct {
	Version       string     `json:"version"`
	BuiltAt       *time.Time `json:"builtAt"`
	Commit        string     `json:"commit"`
	VersionString string     `json:"versionString"`
}

func do(ctx *mansion.Context) {
	comm.ResultOrPrint(VersionData{
		Version:       buildinfo.Version,
		BuiltAt:       buildinfo.BuildTime(),
		Commit:        buildinfo.Commit,
		VersionString: buildinfo.VersionString,
	}, func() {
		comm.Logf("%s", buildinfo.VersionString)
	})
}
