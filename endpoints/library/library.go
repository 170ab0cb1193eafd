package library

import (
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/launcherd/messages"
)

func Register(router *launcherd.Router) {
	messages.CatalogFetch.Register(router, CatalogFetch)
}

// CatalogFetch reads the catalog from its source every time it's called.
// Concurrent calls share a single read.
func CatalogFetch(rc *launcherd.RequestContext, params launcherd.CatalogFetchParams) (*launcherd.CatalogFetchResult, error) {
	source := rc.Services.Catalog
	if source == nil {
		rc.Consumer.Warnf("No catalog source configured")
		return &launcherd.CatalogFetchResult{}, nil
	}

	v, _, _ := rc.Group.Do("catalog", func() (interface{}, error) {
		return catalog.FetchCatalog(rc.Ctx, source, rc.Consumer), nil
	})
	games, _ := v.([]*catalog.GameDescriptor)

	return &launcherd.CatalogFetchResult{
		Games: games,
	}, nil
}
