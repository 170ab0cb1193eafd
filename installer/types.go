package installer

import (
	"fmt"
	"net/http"

	"github.com/itchio/wharf/state"
	"github.com/oaiba/oblauncher/catalog"
)

type Params struct {
	// The game to install, must be valid
	Game *catalog.GameDescriptor

	// Games are installed to InstallRoot/<game id>
	InstallRoot string

	// Where the archive is downloaded to before extraction,
	// defaults to the system's temp dir
	TempDir string

	// Defaults to an httpkit timeout client
	HTTPClient *http.Client
	UserAgent  string

	// Receives logs and extraction progress, optional
	Consumer *state.Consumer
}

type Result struct {
	// Absolute path of the game's install folder
	Path    string
	Version string
}

// Stage is one of the strictly sequential steps of an install
type Stage string

const (
	StagePrepare     Stage = "prepare"
	StageDownloading Stage = "downloading"
	StageExtracting  Stage = "extracting"
	StageFinalizing  Stage = "finalizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
)

// Event is posted by a running install task. Exactly one
// of the pointer fields is set, according to Type.
type Event struct {
	Type EventType `json:"type"`

	Progress *ProgressEvent `json:"progress,omitempty"`
	Complete *CompleteEvent `json:"complete,omitempty"`
}

// ProgressEvent is sent after every chunk received while downloading
type ProgressEvent struct {
	GameID string `json:"gameId"`
	// In the [0, 100] range, never decreases. Reaches 100
	// only once every announced byte was received.
	Progress      float64 `json:"progress"`
	BytesReceived int64   `json:"bytesReceived"`
	// Non-positive if unknown
	TotalBytes int64 `json:"totalBytes"`
	// Set when the server didn't announce a size, in which
	// case Progress stays at 0
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// CompleteEvent is the last event of every install task
type CompleteEvent struct {
	GameID  string `json:"gameId"`
	Success bool   `json:"success"`
	// Only set on success
	Path string `json:"path,omitempty"`
	// Only set on failure
	Error string `json:"error,omitempty"`
}

// DownloadError is returned when the game's archive could not be retrieved
type DownloadError struct {
	GameID string
	Err    error
}

func (de *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s: %s", de.GameID, de.Err.Error())
}

func (de *DownloadError) Cause() error {
	return de.Err
}

// ExtractionError is returned when the downloaded archive is corrupt,
// unsupported, or contains entries we refuse to extract.
type ExtractionError struct {
	GameID string
	Err    error
}

func (ee *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %s", ee.GameID, ee.Err.Error())
}

func (ee *ExtractionError) Cause() error {
	return ee.Err
}

// FilesystemError is returned when the install folder or the
// install record could not be written.
type FilesystemError struct {
	GameID string
	Op     string
	Err    error
}

func (fe *FilesystemError) Error() string {
	return fmt.Sprintf("%s for %s: %s", fe.Op, fe.GameID, fe.Err.Error())
}

func (fe *FilesystemError) Cause() error {
	return fe.Err
}
