package games

import (
	"github.com/oaiba/oblauncher/installer"
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/launcherd/messages"
	"github.com/oaiba/oblauncher/store"
	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"
)

// Install starts the install and replies with the task's id right away.
// Progress and completion are forwarded as notifications once the
// reply went out.
func Install(rc *launcherd.RequestContext, params launcherd.GameInstallParams) (*launcherd.GameInstallResult, error) {
	services := rc.Services

	err := params.Game.Validate()
	if err != nil {
		return nil, &launcherd.RpcError{
			Code:    jsonrpc2.CodeInvalidParams,
			Message: errors.WithMessage(err, "invalid game").Error(),
		}
	}

	installRoot := params.InstallPath
	if installRoot == "" {
		installRoot = store.GetInstallPath(services.Store)
	}
	if installRoot == "" {
		return nil, launcherd.CodeNoInstallPath
	}

	task := installer.Start(rc.Ctx, &installer.Params{
		Game:        params.Game,
		InstallRoot: installRoot,
		TempDir:     services.TempDir,
		HTTPClient:  services.HTTPClient,
		UserAgent:   services.UserAgent,
		Consumer:    rc.Consumer,
	})
	rc.CancelFuncs.Add(task.ID, task.Cancel)
	rc.Consumer.Infof("Installing %s to (%s), task %s", params.Game.ID, installRoot, task.ID)

	rc.AfterReply(func() {
		defer rc.CancelFuncs.Remove(task.ID)
		forwardEvents(rc, task)
	})

	return &launcherd.GameInstallResult{
		TaskID: task.ID,
	}, nil
}

func forwardEvents(rc *launcherd.RequestContext, task *installer.Task) {
	for ev := range task.Events() {
		switch ev.Type {
		case installer.EventProgress:
			p := ev.Progress
			// errors mean the peer is gone, keep draining so the task can finish
			_ = messages.GameDownloadProgress.Notify(rc, launcherd.GameDownloadProgressNotification{
				TaskID:        task.ID,
				GameID:        p.GameID,
				Progress:      p.Progress,
				BytesReceived: p.BytesReceived,
				TotalBytes:    p.TotalBytes,
				Indeterminate: p.Indeterminate,
			})
		case installer.EventComplete:
			c := ev.Complete
			if !c.Success {
				rc.Consumer.Warnf("Install task %s failed: %s", task.ID, c.Error)
			}
			_ = messages.GameInstallComplete.Notify(rc, launcherd.GameInstallCompleteNotification{
				TaskID:  task.ID,
				GameID:  c.GameID,
				Success: c.Success,
				Path:    c.Path,
				Error:   c.Error,
			})
		}
	}
}

func CancelInstall(rc *launcherd.RequestContext, params launcherd.GameCancelInstallParams) (*launcherd.GameCancelInstallResult, error) {
	didCancel := rc.CancelFuncs.Call(params.TaskID)
	if didCancel {
		rc.Consumer.Infof("Cancelled install task %s", params.TaskID)
	}
	return &launcherd.GameCancelInstallResult{
		OK: didCancel,
	}, nil
}
