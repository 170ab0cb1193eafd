package main

import (
	"log"
	"os"

	"github.com/oaiba/oblauncher/buildinfo"
	"github.com/oaiba/oblauncher/cmd/catalog"
	"github.com/oaiba/oblauncher/cmd/config"
	"github.com/oaiba/oblauncher/cmd/daemon"
	"github.com/oaiba/oblauncher/cmd/install"
	"github.com/oaiba/oblauncher/cmd/launch"
	"github.com/oaiba/oblauncher/cmd/status"
	"github.com/oaiba/oblauncher/cmd/version"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/mansion"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New("oblauncher", "Browse, install and launch games from a catalog")
)

var appArgs = struct {
	json       *bool
	quiet      *bool
	verbose    *bool
	timestamps *bool
	noProgress *bool
	configPath *string
	storePath  *string
	userAgent  *string
}{
	app.Flag("json", "Enable machine-readable JSON-lines output").Short('j').Bool(),
	app.Flag("quiet", "Hide progress indicators & other extra info").Short('q').Bool(),
	app.Flag("verbose", "Display as much extra info as possible").Short('v').Bool(),
	app.Flag("timestamps", "Prefix all output by timestamps (for logging purposes)").Bool(),
	app.Flag("no-progress", "Doesn't show progress bars").Bool(),
	app.Flag("config", "Path to the launcher's TOML config file").String(),
	app.Flag("store", "Path to the settings database, overrides the config").String(),
	app.Flag("user-agent", "Extra text to add to our user agent").Hidden().String(),
}

func main() {
	ctx := mansion.NewContext(app)

	catalog.Register(ctx)
	status.Register(ctx)
	config.Register(ctx)
	install.Register(ctx)
	launch.Register(ctx)
	daemon.Register(ctx)
	version.Register(ctx)

	app.HelpFlag.Short('h')
	app.Version(buildinfo.VersionString)
	app.VersionFlag.Short('V')

	cmd, err := app.Parse(os.Args[1:])
	if *appArgs.timestamps {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	} else {
		log.SetFlags(0)
	}

	if *appArgs.quiet {
		*appArgs.noProgress = true
	}
	if !mansion.IsTerminal() {
		*appArgs.noProgress = true
	}

	ctx.JSON = *appArgs.json
	ctx.Quiet = *appArgs.quiet
	ctx.Verbose = *appArgs.verbose
	ctx.ConfigPath = *appArgs.configPath
	ctx.StorePath = *appArgs.storePath
	ctx.UserAgentAddition = *appArgs.userAgent
	ctx.Version = buildinfo.Version
	ctx.VersionString = buildinfo.VersionString
	ctx.Commit = buildinfo.Commit

	comm.Configure(*appArgs.noProgress, *appArgs.quiet, *appArgs.verbose, *appArgs.json, false)

	fullCmd := kingpin.MustParse(cmd, err)
	do, ok := ctx.Commands[fullCmd]
	if !ok {
		kingpin.Fatalf("Unknown command %s", fullCmd)
	}

	defer ctx.Close()
	do(ctx)
}
