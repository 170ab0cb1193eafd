package games

import (
	"github.com/oaiba/oblauncher/launcher"
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/launcherd/messages"
	"github.com/oaiba/oblauncher/manager"
)

func Register(router *launcherd.Router) {
	messages.GameCheckStatus.Register(router, CheckStatus)
	messages.GameInstall.Register(router, Install)
	messages.GameCancelInstall.Register(router, CancelInstall)
	messages.GameLaunch.Register(router, Launch)
}

func CheckStatus(rc *launcherd.RequestContext, params launcherd.GameCheckStatusParams) (*launcherd.GameCheckStatusResult, error) {
	checker := &manager.Checker{
		Store:    rc.Services.Store,
		Consumer: rc.Consumer,
	}
	status := checker.CheckStatus(params.GameID)
	return &status, nil
}

func Launch(rc *launcherd.RequestContext, params launcherd.GameLaunchParams) (*launcherd.GameLaunchResult, error) {
	l := &launcher.Launcher{
		Opener:   rc.Services.Opener,
		Consumer: rc.Consumer,
	}

	err := l.Launch(params.GamePath, params.Executable)
	if err != nil {
		return nil, err
	}
	return &launcherd.GameLaunchResult{}, nil
}
