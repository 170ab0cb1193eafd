// Package dl streams a single file from an HTTP server to disk,
// reporting progress after every chunk.
package dl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/itchio/wharf/counter"
	"github.com/itchio/wharf/state"
	"github.com/pkg/errors"
)

// BadStatusError is returned when the server replies with a non-2xx status
type BadStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (bse *BadStatusError) Error() string {
	return fmt.Sprintf("%s responded with HTTP %s", bse.URL, bse.Status)
}

// BadSizeError is returned when fewer bytes than announced were received
type BadSizeError struct {
	Expected int64
	Actual   int64
}

func (bse *BadSizeError) Error() string {
	return fmt.Sprintf("size on disk didn't match expected size: wanted %d, got %d", bse.Expected, bse.Actual)
}

// Progress describes how much of a download was received so far.
type Progress struct {
	BytesReceived int64
	// Non-positive if the server didn't announce a content length
	TotalBytes int64
	// In the [0, 100] range. Only reaches 100 once every announced byte
	// was received. Always 0 when Indeterminate is set.
	Percent float64
	// Set when the total size is unknown
	Indeterminate bool
}

type ProgressFunc func(p Progress)

type Params struct {
	URL  string
	Dest string

	Client    *http.Client
	UserAgent string

	// Called after every chunk written to disk, optional
	OnProgress ProgressFunc
	Consumer   *state.Consumer
}

// Do downloads params.URL to params.Dest, truncating any existing file.
// It returns the number of bytes written.
func Do(ctx context.Context, params *Params) (int64, error) {
	consumer := params.Consumer
	if consumer == nil {
		consumer = &state.Consumer{}
	}

	client := params.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequest("GET", params.URL, nil)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	req = req.WithContext(ctx)
	if params.UserAgent != "" {
		req.Header.Set("User-Agent", params.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &BadStatusError{
			URL:        params.URL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	// some servers will return a negative content-length, or 0
	// they both mostly mean they didn't know the length of the response
	// at the time the request was made (streaming proxies, for example)
	totalBytes := resp.ContentLength
	hostInfo := fmt.Sprintf("%s at %s", resp.Header.Get("Server"), req.URL.Host)
	if totalBytes > 0 {
		consumer.Infof("Downloading %s from %s", humanize.IBytes(uint64(totalBytes)), hostInfo)
	} else {
		consumer.Infof("Downloading file of unknown size from %s", hostInfo)
	}

	out, err := os.Create(params.Dest)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	tracker := &progressTracker{
		totalBytes: totalBytes,
		onProgress: params.OnProgress,
	}
	cw := counter.NewWriterCallback(tracker.onWrite, out)

	written, err := io.Copy(cw, resp.Body)
	closeErr := out.Close()
	if err != nil {
		return written, errors.WithStack(err)
	}
	if closeErr != nil {
		return written, errors.WithStack(closeErr)
	}

	if totalBytes > 0 && written != totalBytes {
		return written, &BadSizeError{
			Expected: totalBytes,
			Actual:   written,
		}
	}

	return written, nil
}

type progressTracker struct {
	totalBytes  int64
	lastPercent float64
	onProgress  ProgressFunc
}

func (pt *progressTracker) onWrite(bytesWritten int64) {
	if pt.onProgress == nil {
		return
	}
	pt.onProgress(pt.compute(bytesWritten))
}

func (pt *progressTracker) compute(bytesWritten int64) Progress {
	p := Progress{
		BytesReceived: bytesWritten,
		TotalBytes:    pt.totalBytes,
	}

	if pt.totalBytes <= 0 {
		p.Indeterminate = true
		return p
	}

	if bytesWritten >= pt.totalBytes {
		p.Percent = 100.0
	} else {
		p.Percent = float64(bytesWritten) * 100.0 / float64(pt.totalBytes)
		// rounding must never make us announce completion early
		if p.Percent >= 100.0 {
			p.Percent = 99.99
		}
	}

	if p.Percent < pt.lastPercent {
		p.Percent = pt.lastPercent
	}
	pt.lastPercent = p.Percent
	return p
}
