// Package archive extracts downloaded game archives into their install folder.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/itchio/arkive/zip"
	"github.com/itchio/wharf/counter"
	"github.com/itchio/wharf/ctxcopy"
	"github.com/itchio/wharf/state"
	"github.com/itchio/wharf/werrors"
	"github.com/oaiba/oblauncher/filtering"
	"github.com/pkg/errors"
)

const (
	// ModeMask is or'd with files extracted to disk
	ModeMask = 0666
	// LuckyMode is and'd with extracted file modes
	LuckyMode = 0777
	// DirMode is the default mode for directories we create
	DirMode = 0755
)

// UnsafePathError is returned for entries that would land outside
// of the destination folder.
type UnsafePathError struct {
	Name string
}

func (upe *UnsafePathError) Error() string {
	return fmt.Sprintf("archive entry %q escapes destination folder", upe.Name)
}

// Result counts what ended up on disk
type Result struct {
	Dirs     int
	Files    int
	Symlinks int
}

// ProgressFunc receives extraction progress in the [0, 1] range
type ProgressFunc func(alpha float64)

type Params struct {
	ArchivePath string
	Dest        string

	OnProgress ProgressFunc
	Consumer   *state.Consumer
}

// ExtractZip extracts every entry of the zip archive at params.ArchivePath
// into params.Dest, creating it if needed. Existing files are overwritten.
func ExtractZip(ctx context.Context, params *Params) (*Result, error) {
	consumer := params.Consumer
	if consumer == nil {
		consumer = &state.Consumer{}
	}
	onProgress := params.OnProgress
	if onProgress == nil {
		onProgress = func(alpha float64) {}
	}

	zr, err := zip.OpenReader(params.ArchivePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer zr.Close()

	err = os.MkdirAll(params.Dest, DirMode)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	totalSize := uint64(0)
	for _, file := range zr.File {
		totalSize += file.UncompressedSize64
	}
	consumer.Debugf("Extracting %d entries to (%s)", len(zr.File), params.Dest)

	progress := func(done uint64) {
		if totalSize == 0 {
			return
		}
		onProgress(float64(done) / float64(totalSize))
	}

	res := &Result{}
	doneSize := uint64(0)

	for _, file := range zr.File {
		select {
		case <-ctx.Done():
			return nil, werrors.ErrCancelled
		default:
		}

		if !filtering.FilterEntry(file.Name) {
			consumer.Debugf("Skipping (%s)", file.Name)
			doneSize += file.UncompressedSize64
			progress(doneSize)
			continue
		}

		filename, err := safeJoin(params.Dest, file.Name)
		if err != nil {
			return nil, err
		}

		err = extractEntry(ctx, file, params.Dest, filename, res, func(offset int64) {
			progress(doneSize + uint64(offset))
		})
		if err != nil {
			return nil, errors.Wrapf(err, "extracting %s", file.Name)
		}

		doneSize += file.UncompressedSize64
		progress(doneSize)
	}

	if totalSize == 0 {
		onProgress(1.0)
	}

	consumer.Debugf("Extracted %d dirs, %d files, %d symlinks", res.Dirs, res.Files, res.Symlinks)
	return res, nil
}

func extractEntry(ctx context.Context, file *zip.File, dest string, filename string, res *Result, onCount func(offset int64)) error {
	info := file.FileInfo()
	mode := info.Mode()

	if info.IsDir() {
		err := os.MkdirAll(filename, DirMode)
		if err != nil {
			return errors.WithStack(err)
		}
		res.Dirs++
		return nil
	}

	fileReader, err := file.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer fileReader.Close()

	err = os.MkdirAll(filepath.Dir(filename), DirMode)
	if err != nil {
		return errors.WithStack(err)
	}

	if mode&os.ModeSymlink > 0 {
		linkname, err := ioutil.ReadAll(fileReader)
		if err != nil {
			return errors.WithStack(err)
		}
		err = symlink(dest, string(linkname), filename)
		if err != nil {
			return err
		}
		res.Symlinks++
		return nil
	}

	countingReader := counter.NewReaderCallback(onCount, fileReader)
	err = copyFile(ctx, filename, os.FileMode(mode&LuckyMode|ModeMask), countingReader)
	if err != nil {
		return err
	}
	res.Files++
	return nil
}

func copyFile(ctx context.Context, filename string, mode os.FileMode, r io.Reader) error {
	// remove first so a symlink left over by a previous install doesn't
	// get written through
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}

	writer, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = ctxcopy.Do(ctx, writer, r)
	closeErr := writer.Close()
	if err != nil {
		if err == werrors.ErrCancelled {
			return err
		}
		return errors.WithStack(err)
	}
	if closeErr != nil {
		return errors.WithStack(closeErr)
	}

	return errors.WithStack(os.Chmod(filename, mode))
}

func symlink(dest string, linkname string, filename string) error {
	target := filepath.FromSlash(linkname)
	if filepath.IsAbs(target) || filepath.VolumeName(target) != "" {
		return &UnsafePathError{Name: linkname}
	}

	// not filepath.Join: cleaning "link/.." lexically isn't what the OS does
	relDir, err := filepath.Rel(dest, filepath.Dir(filename))
	if err != nil || !resolvesWithin(dest, relDir+string(filepath.Separator)+target) {
		return &UnsafePathError{Name: linkname}
	}

	if err := os.RemoveAll(filename); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Symlink(linkname, filename))
}

// safeJoin resolves an archive entry name against dest, refusing
// absolute names, names that climb out of dest and names whose
// parent folders are symlinks, which the OS would write through.
func safeJoin(dest string, name string) (string, error) {
	cleanName := filepath.FromSlash(strings.Replace(name, "\\", "/", -1))
	if filepath.IsAbs(cleanName) || filepath.VolumeName(cleanName) != "" {
		return "", &UnsafePathError{Name: name}
	}

	joined := filepath.Join(dest, cleanName)
	if !isWithin(dest, joined) {
		return "", &UnsafePathError{Name: name}
	}

	linked, err := hasSymlinkParent(dest, joined)
	if err != nil {
		return "", err
	}
	if linked {
		return "", &UnsafePathError{Name: name}
	}
	return joined, nil
}

// hasSymlinkParent returns true if any existing folder between
// dest and filename is a symlink.
func hasSymlinkParent(dest string, filename string) (bool, error) {
	rel, err := filepath.Rel(dest, filepath.Dir(filename))
	if err != nil {
		return false, errors.WithStack(err)
	}
	if rel == "." {
		return false, nil
	}

	current := dest
	for _, component := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, component)
		stats, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				// nothing below exists either
				return false, nil
			}
			return false, errors.WithStack(err)
		}
		if stats.Mode()&os.ModeSymlink != 0 {
			return true, nil
		}
	}
	return false, nil
}

const maxSymlinkHops = 40

// resolvesWithin walks rel from dest the way the OS would, following
// symlinks that already exist, and returns false as soon as a step
// leaves dest. Components that don't exist yet are taken literally.
func resolvesWithin(dest string, rel string) bool {
	current := filepath.Clean(dest)
	pending := strings.Split(rel, string(filepath.Separator))
	hops := 0

	for len(pending) > 0 {
		component := pending[0]
		pending = pending[1:]

		switch component {
		case "", ".":
			continue
		case "..":
			if current == filepath.Clean(dest) {
				return false
			}
			current = filepath.Dir(current)
			continue
		}

		next := filepath.Join(current, component)
		stats, err := os.Lstat(next)
		if err != nil || stats.Mode()&os.ModeSymlink == 0 {
			current = next
			continue
		}

		hops++
		if hops > maxSymlinkHops {
			return false
		}
		link, err := os.Readlink(next)
		if err != nil || filepath.IsAbs(link) || filepath.VolumeName(link) != "" {
			return false
		}
		pending = append(strings.Split(filepath.FromSlash(link), string(filepath.Separator)), pending...)
	}

	return isWithin(dest, current)
}

func isWithin(dest string, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dest), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
