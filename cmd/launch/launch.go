package launch

import (
	"context"

	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/launcher"
	"github.com/oaiba/oblauncher/manager"
	"github.com/oaiba/oblauncher/mansion"
	"github.com/pkg/errors"
)

var args = struct {
	gameID *string
}{}

func Register(ctx *mansion.Context) {
	cmd := ctx.App.Command("launch", "Launch an installed game")
	args.gameID = cmd.Arg("gameId", "Identifier of the game, as found in the catalog").Required().String()
	ctx.Register(cmd, do)
}

func do(ctx *mansion.Context) {
	ctx.Must(Do(ctx, *args.gameID))
}

func Do(ctx *mansion.Context, gameID string) error {
	consumer := comm.NewStateConsumer()

	checker := &manager.Checker{
		Store:    ctx.MustStore(),
		Consumer: consumer,
	}
	st := checker.CheckStatus(gameID)
	if st.Status != manager.StatusInstalled {
		return errors.Errorf("%s is not installed (%s)", gameID, st.Status)
	}

	source, err := ctx.CatalogSource()
	if err != nil {
		return err
	}
	games := catalog.FetchCatalog(context.Background(), source, consumer)
	game := catalog.Find(games, gameID)
	if game == nil {
		return errors.Errorf("No game with id %q in the catalog", gameID)
	}

	l := &launcher.Launcher{Consumer: consumer}
	err = l.Launch(st.Path, game.Executable)
	if err != nil {
		return err
	}

	comm.Statf("Launched %s %s", game.Name, st.Version)
	return nil
}
