package status

import (
	"context"
	"sync"

	"github.com/fatih/color"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/manager"
	"github.com/oaiba/oblauncher/mansion"
	"github.com/oaiba/oblauncher/store"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var args = struct {
	gameID *string
	all    *bool
}{}

func Register(ctx *mansion.Context) {
	cmd := ctx.App.Command("status", "Show whether a game is installed, and at which version")
	args.gameID = cmd.Arg("gameId", "Identifier of the game, as found in the catalog").String()
	args.all = cmd.Flag("all", "Show the status of every game in the catalog").Bool()
	ctx.Register(cmd, do)
}

func do(ctx *mansion.Context) {
	s := ctx.MustStore()

	if *args.all {
		source, err := ctx.CatalogSource()
		ctx.Must(err)

		games := catalog.FetchCatalog(context.Background(), source, comm.NewStateConsumer())
		if games == nil {
			comm.Dief("Could not read the catalog from %s", source)
		}

		entries, err := CheckAll(s, games)
		ctx.Must(err)
		comm.ResultOrPrint(entries, func() {
			PrintTable(entries)
		})
		return
	}

	if *args.gameID == "" {
		comm.Dief("Either a game id or --all is required")
	}

	checker := &manager.Checker{
		Store:    s,
		Consumer: comm.NewStateConsumer(),
	}
	st := checker.CheckStatus(*args.gameID)
	comm.ResultOrPrint(st, func() {
		switch st.Status {
		case manager.StatusInstalled:
			comm.Statf("%s: %s (version %s) at (%s)", *args.gameID, Colorize(st.Status), st.Version, st.Path)
		default:
			comm.Statf("%s: %s", *args.gameID, Colorize(st.Status))
		}
	})
}

type Entry struct {
	Game   *catalog.GameDescriptor `json:"game"`
	Status manager.GameStatus      `json:"status"`
}

// CheckAll computes the status of every game concurrently,
// results are in catalog order.
func CheckAll(s store.Store, games []*catalog.GameDescriptor) ([]*Entry, error) {
	checker := &manager.Checker{Store: s}

	entries := make([]*Entry, len(games))
	var lock sync.Mutex

	var g errgroup.Group
	for i, game := range games {
		i, game := i, game
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("checking %s: %v", game.ID, r)
				}
			}()

			st := checker.CheckStatus(game.ID)
			lock.Lock()
			entries[i] = &Entry{Game: game, Status: st}
			lock.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func PrintTable(entries []*Entry) {
	comm.Table([]string{"ID", "Name", "Latest", "Status", "Installed"}, func(table *tablewriter.Table) {
		for _, e := range entries {
			table.Append([]string{
				e.Game.ID,
				e.Game.Name,
				e.Game.Version,
				Colorize(e.Status.Status),
				e.Status.Version,
			})
		}
	})
}

func Colorize(st manager.Status) string {
	switch st {
	case manager.StatusInstalled:
		return color.GreenString(string(st))
	case manager.StatusNoInstallPath:
		return color.RedString(string(st))
	default:
		return color.YellowString(string(st))
	}
}
