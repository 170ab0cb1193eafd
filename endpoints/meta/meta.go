package meta

import (
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/launcherd/messages"
	"github.com/pkg/errors"
)

func Register(router *launcherd.Router) {
	messages.MetaAuthenticate.Register(router, func(rc *launcherd.RequestContext, params launcherd.MetaAuthenticateParams) (*launcherd.MetaAuthenticateResult, error) {
		return nil, errors.Errorf("Meta.Authenticate not needed (and not valid) for your current transport")
	})
}
