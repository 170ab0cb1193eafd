package catalog

import (
	"context"

	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/cmd/status"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/mansion"
)

func Register(ctx *mansion.Context) {
	cmd := ctx.App.Command("catalog", "List the games available for install")
	ctx.Register(cmd, do)
}

func do(ctx *mansion.Context) {
	source, err := ctx.CatalogSource()
	ctx.Must(err)

	comm.Opf("Fetching catalog from %s", source)
	games := catalog.FetchCatalog(context.Background(), source, comm.NewStateConsumer())
	if games == nil {
		comm.Warnf("No games could be listed")
		comm.Result(nil)
		return
	}

	entries, err := status.CheckAll(ctx.MustStore(), games)
	ctx.Must(err)

	comm.ResultOrPrint(entries, func() {
		if len(entries) == 0 {
			comm.Statf("The catalog is empty")
			return
		}
		status.PrintTable(entries)
	})
}
