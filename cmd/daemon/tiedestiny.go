package daemon

import (
	"context"
	"time"

	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/manager/runlock"
)

func tieDestiny(ctx context.Context, destinyPid int64, shutdown context.CancelFunc) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !runlock.ProcessAlive(int(destinyPid)) {
				comm.Logf("Destiny PID %d exited, exiting too", destinyPid)
				shutdown()
				return
			}
		}
	}
}
