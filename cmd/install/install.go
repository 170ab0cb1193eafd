package install

import (
	"context"
	"os"
	"os/signal"

	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/installer"
	"github.com/oaiba/oblauncher/mansion"
	"github.com/oaiba/oblauncher/store"
	"github.com/pkg/errors"
)

var args = struct {
	gameID      *string
	installPath *string
}{}

func Register(ctx *mansion.Context) {
	cmd := ctx.App.Command("install", "Download and install a game from the catalog")
	args.gameID = cmd.Arg("gameId", "Identifier of the game, as found in the catalog").Required().String()
	args.installPath = cmd.Flag("install-path", "Install root to use instead of the stored one").String()
	ctx.Register(cmd, do)
}

func do(ctx *mansion.Context) {
	ctx.Must(Do(ctx, *args.gameID, *args.installPath))
}

func Do(ctx *mansion.Context, gameID string, installRoot string) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}

	if installRoot == "" {
		installRoot = store.GetInstallPath(ctx.MustStore())
	}
	if installRoot == "" {
		return errors.New("No install path chosen, use `oblauncher config install-path <dir>` first")
	}

	source, err := ctx.CatalogSource()
	if err != nil {
		return err
	}

	consumer := comm.NewStateConsumer()
	games := catalog.FetchCatalog(context.Background(), source, consumer)
	if games == nil {
		return errors.Errorf("Could not read the catalog from %s", source)
	}
	game := catalog.Find(games, gameID)
	if game == nil {
		return errors.Errorf("No game with id %q in the catalog", gameID)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		select {
		case <-interrupts:
			comm.Warnf("Interrupted, cancelling install...")
			cancel()
		case <-cancelCtx.Done():
		}
	}()

	comm.Opf("Installing %s (%s) to (%s)", game.Name, game.Version, installRoot)
	comm.StartProgress()
	res, err := installer.Perform(cancelCtx, &installer.Params{
		Game:        game,
		InstallRoot: installRoot,
		TempDir:     cfg.TempDir,
		HTTPClient:  ctx.HTTPClient,
		UserAgent:   ctx.UserAgent(),
		Consumer:    consumer,
	}, nil)
	comm.EndProgress()

	complete := installer.CompleteEventFor(game.ID, res, err)
	if err != nil {
		if installer.IsCancelled(err) {
			return errors.New(complete.Error)
		}
		return err
	}

	comm.ResultOrPrint(complete, func() {
		comm.Statf("Installed %s %s to (%s)", game.Name, res.Version, res.Path)
	})
	return nil
}
