// Package runlock makes sure only one install at a time touches a
// given game folder, across goroutines and processes.
package runlock

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/itchio/wharf/state"
	"github.com/itchio/wharf/werrors"
	"github.com/pkg/errors"
)

// DefaultPollInterval is how often a waiting Lock checks whether it can proceed
var DefaultPollInterval = 250 * time.Millisecond

// a lock file that can't be parsed is considered to be in the
// middle of being written, until it gets this old.
const partialWriteGrace = 10 * time.Second

type Lock interface {
	// Lock waits until the folder is free, or ctx is done
	Lock(ctx context.Context, task string) error
	Unlock() error
}

type lock struct {
	consumer      *state.Consumer
	installFolder string
	pollInterval  time.Duration
	held          bool
}

type runlockPayload struct {
	Task     string `json:"task"`
	LockedAt string `json:"lockedAt"`
	PID      int64  `json:"pid"`
}

func New(consumer *state.Consumer, installFolder string) Lock {
	return &lock{
		consumer:      consumer,
		installFolder: installFolder,
		pollInterval:  DefaultPollInterval,
	}
}

func (rl *lock) Lock(ctx context.Context, task string) error {
	if rl.held {
		return errors.Errorf("runlock (%s) is already held", rl.file())
	}

	err := os.MkdirAll(filepath.Dir(rl.file()), 0755)
	if err != nil {
		return errors.WithStack(err)
	}

	printed := false
	for {
		acquired, err := rl.tryAcquire(task)
		if err != nil {
			return err
		}
		if acquired {
			rl.held = true
			rl.consumer.Debugf("Locked (%s) for %s", rl.file(), task)
			return nil
		}

		if !printed {
			printed = true
			holder := "another task"
			if rp, _ := rl.read(); rp != nil {
				holder = rp.Task
			}
			rl.consumer.Infof("Waiting for %s to release (%s)", holder, rl.file())
		}

		select {
		case <-time.After(rl.pollInterval):
			// try again
		case <-ctx.Done():
			return werrors.ErrCancelled
		}
	}
}

func (rl *lock) tryAcquire(task string) (bool, error) {
	contents, err := json.Marshal(&runlockPayload{
		Task:     task,
		LockedAt: time.Now().Format(time.RFC3339Nano),
		PID:      int64(os.Getpid()),
	})
	if err != nil {
		return false, errors.WithStack(err)
	}

	f, err := os.OpenFile(rl.file(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return false, errors.WithStack(err)
		}

		if rl.isStale() {
			rl.consumer.Warnf("Removing stale runlock (%s)", rl.file())
			err = os.Remove(rl.file())
			if err != nil && !os.IsNotExist(err) {
				return false, errors.WithStack(err)
			}
		}
		return false, nil
	}

	_, err = f.Write(contents)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(rl.file())
		return false, errors.WithStack(err)
	}
	return true, nil
}

func (rl *lock) isStale() bool {
	rp, err := rl.read()
	if err != nil {
		stats, statErr := os.Stat(rl.file())
		if statErr != nil {
			// gone already, next try will tell
			return false
		}
		return time.Since(stats.ModTime()) > partialWriteGrace
	}

	return !ProcessAlive(int(rp.PID))
}

func (rl *lock) Unlock() error {
	if !rl.held {
		return nil
	}
	rl.held = false

	err := os.Remove(rl.file())
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

func (rl *lock) file() string {
	return Path(rl.installFolder)
}

// Path returns the location of the lock file for an install folder
func Path(installFolder string) string {
	return filepath.Join(installFolder, ".oblauncher", "install.lock")
}

func (rl *lock) read() (*runlockPayload, error) {
	var rp runlockPayload
	contents, err := ioutil.ReadFile(rl.file())
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(contents, &rp)
	if err != nil {
		return nil, err
	}
	return &rp, nil
}
