// Package endpoints wires every launcherd method to its implementation.
package endpoints

import (
	"github.com/oaiba/oblauncher/endpoints/games"
	"github.com/oaiba/oblauncher/endpoints/library"
	"github.com/oaiba/oblauncher/endpoints/meta"
	"github.com/oaiba/oblauncher/endpoints/settings"
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/launcherd/messages"
)

func NewRouter(services *launcherd.Services, version string) *launcherd.Router {
	router := launcherd.NewRouter(services)
	router.Version = version

	meta.Register(router)
	library.Register(router)
	settings.Register(router)
	games.Register(router)

	messages.EnsureAllRequests(router)

	return router
}
