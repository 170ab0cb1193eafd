// Package installer downloads a game's archive, extracts it to the
// game's install folder and records which version was installed.
package installer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/itchio/httpkit/timeout"
	"github.com/itchio/wharf/state"
	"github.com/itchio/wharf/werrors"
	"github.com/oaiba/oblauncher/installer/archive"
	"github.com/oaiba/oblauncher/installer/dl"
	"github.com/oaiba/oblauncher/manager"
	"github.com/oaiba/oblauncher/manager/runlock"
	"github.com/oaiba/oblauncher/receipt"
	"github.com/pkg/errors"
)

// ProgressFunc receives download progress, on the installing goroutine
type ProgressFunc func(ev ProgressEvent)

// Perform installs params.Game, going through the prepare, downloading,
// extracting and finalizing stages in order. The install record is only
// written once everything else succeeded, so a failed (or cancelled)
// install always reads back as not installed.
func Perform(ctx context.Context, params *Params, onProgress ProgressFunc) (*Result, error) {
	if params.Consumer == nil {
		params.Consumer = &state.Consumer{}
	}
	if onProgress == nil {
		onProgress = func(ev ProgressEvent) {}
	}
	consumer := params.Consumer

	game := params.Game
	if game == nil {
		return nil, errors.New("installer: missing game")
	}
	err := game.Validate()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid game %s", game.ID)
	}
	if params.InstallRoot == "" {
		return nil, errors.New("installer: missing install root")
	}

	enter := func(s Stage) {
		consumer.Debugf("[%s] %s", game.ID, s)
	}
	enter(StagePrepare)

	gameDir := manager.GameDir(params.InstallRoot, game.ID)

	err = os.MkdirAll(gameDir, 0755)
	if err != nil {
		return nil, &FilesystemError{GameID: game.ID, Op: "creating install folder", Err: err}
	}

	lock := runlock.New(consumer, gameDir)
	err = lock.Lock(ctx, "install "+game.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, werrors.ErrCancelled
		}
		return nil, &FilesystemError{GameID: game.ID, Op: "locking install folder", Err: err}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			consumer.Warnf("Could not release install lock: %+v", err)
		}
	}()

	err = receipt.Remove(gameDir)
	if err != nil {
		return nil, &FilesystemError{GameID: game.ID, Op: "removing previous install record", Err: err}
	}

	tempDir := params.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	err = os.MkdirAll(tempDir, 0755)
	if err != nil {
		return nil, &FilesystemError{GameID: game.ID, Op: "creating temp folder", Err: err}
	}
	archivePath := filepath.Join(tempDir, game.ID+".zip")

	success := false
	defer func() {
		if success {
			return
		}
		consumer.Debugf("[%s] %s", game.ID, StageFailed)
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			consumer.Debugf("Could not remove (%s): %v", archivePath, err)
		}
	}()

	enter(StageDownloading)

	client := params.HTTPClient
	if client == nil {
		client = timeout.NewDefaultClient()
	}

	consumer.Infof("Downloading %s %s from %s", game.Name, game.Version, game.DownloadURL)
	downloadStart := time.Now()
	consumer.ProgressLabel("Downloading")
	written, err := dl.Do(ctx, &dl.Params{
		URL:       game.DownloadURL,
		Dest:      archivePath,
		Client:    client,
		UserAgent: params.UserAgent,
		Consumer:  consumer,
		OnProgress: func(p dl.Progress) {
			if !p.Indeterminate {
				consumer.Progress(p.Percent / 100.0)
			}
			onProgress(ProgressEvent{
				GameID:        game.ID,
				Progress:      p.Percent,
				BytesReceived: p.BytesReceived,
				TotalBytes:    p.TotalBytes,
				Indeterminate: p.Indeterminate,
			})
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, werrors.ErrCancelled
		}
		return nil, &DownloadError{GameID: game.ID, Err: err}
	}

	duration := time.Since(downloadStart)
	if duration > 0 {
		bytesPerSec := float64(written) / duration.Seconds()
		consumer.Infof("Downloaded %s in %s (%s/s)", humanize.IBytes(uint64(written)), duration.Round(time.Millisecond), humanize.IBytes(uint64(bytesPerSec)))
	}

	enter(StageExtracting)

	consumer.ProgressLabel("Extracting")
	consumer.Progress(0)
	res, err := archive.ExtractZip(ctx, &archive.Params{
		ArchivePath: archivePath,
		Dest:        gameDir,
		OnProgress:  consumer.Progress,
		Consumer:    consumer,
	})
	if err != nil {
		if ctx.Err() != nil || errors.Cause(err) == werrors.ErrCancelled {
			return nil, werrors.ErrCancelled
		}
		return nil, &ExtractionError{GameID: game.ID, Err: err}
	}
	consumer.Infof("Extracted %d files to (%s)", res.Files, gameDir)

	enter(StageFinalizing)

	r := &receipt.Record{
		Version: game.Version,
	}
	err = r.Write(gameDir)
	if err != nil {
		return nil, &FilesystemError{GameID: game.ID, Op: "writing install record", Err: err}
	}
	success = true

	err = os.Remove(archivePath)
	if err != nil {
		consumer.Warnf("Could not remove downloaded archive (%s): %v", archivePath, err)
	}

	enter(StageDone)

	return &Result{
		Path:    gameDir,
		Version: game.Version,
	}, nil
}
