package launcherd

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/manager"
)

// When using TCP transport, must be the first message sent
//
// @name Meta.Authenticate
// @category Utilities
// @caller client
type MetaAuthenticateParams struct {
	Secret string `json:"secret"`
}

func (p MetaAuthenticateParams) Validate() error {
	return nil
}

type MetaAuthenticateResult struct {
	OK bool `json:"ok"`
}

// Retrieves the list of games available for install.
//
// Never fails: if the catalog cannot be read or parsed, `games`
// is null and the reason is logged.
//
// @name Catalog.Fetch
// @category Catalog
// @caller client
type CatalogFetchParams struct {
}

func (p CatalogFetchParams) Validate() error {
	return nil
}

type CatalogFetchResult struct {
	Games []*catalog.GameDescriptor `json:"games"`
}

// Reads a single setting.
//
// @name Store.Get
// @category Store
// @caller client
type StoreGetParams struct {
	Key string `json:"key"`
}

func (p StoreGetParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Key, validation.Required),
	)
}

type StoreGetResult struct {
	// Absent if the setting was never written
	Value *string `json:"value,omitempty"`
}

// Writes a single setting. Fire-and-forget: failures are
// only reported through `Log` notifications.
//
// @name Store.Set
// @category Store
// @caller client
type StoreSetNotification struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (p StoreSetNotification) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Key, validation.Required),
	)
}

// Checks whether a game is installed, and at which version.
// Always computed from disk, never cached.
//
// @name Game.CheckStatus
// @category Game
// @caller client
type GameCheckStatusParams struct {
	GameID string `json:"gameId"`
}

func (p GameCheckStatusParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.GameID, validation.Required),
	)
}

type GameCheckStatusResult = manager.GameStatus

// Starts installing a game in the background, and returns
// immediately. Progress is reported with `Game.DownloadProgress`
// and the outcome with exactly one `Game.InstallComplete`.
//
// @name Game.Install
// @category Game
// @caller client
type GameInstallParams struct {
	Game *catalog.GameDescriptor `json:"game"`
	// Install root, defaults to the stored `installPath` setting
	InstallPath string `json:"installPath,omitempty"`
}

func (p GameInstallParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Game, validation.Required),
	)
}

type GameInstallResult struct {
	// Identifies the task in progress and completion notifications
	TaskID string `json:"taskId"`
}

// Aborts an install started with `Game.Install`. The task
// still ends with a failed `Game.InstallComplete`.
//
// @name Game.CancelInstall
// @category Game
// @caller client
type GameCancelInstallParams struct {
	TaskID string `json:"taskId"`
}

func (p GameCancelInstallParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.TaskID, validation.Required),
	)
}

type GameCancelInstallResult struct {
	// False if the task was unknown or already completed
	OK bool `json:"ok"`
}

// Opens a game's executable with the system's default handler.
// Does not wait for the game to exit.
//
// @name Game.Launch
// @category Game
// @caller client
type GameLaunchParams struct {
	GamePath   string `json:"gamePath"`
	Executable string `json:"executable"`
}

func (p GameLaunchParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.GamePath, validation.Required),
		validation.Field(&p.Executable, validation.Required),
	)
}

type GameLaunchResult struct {
}

// Sent after every chunk received while downloading a game
//
// @name Game.DownloadProgress
// @category Game
type GameDownloadProgressNotification struct {
	TaskID string `json:"taskId"`
	GameID string `json:"gameId"`
	// In the [0, 100] range, 0 if indeterminate
	Progress      float64 `json:"progress"`
	BytesReceived int64   `json:"bytesReceived"`
	TotalBytes    int64   `json:"totalBytes"`
	// Set when the total size is unknown
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// Sent exactly once per `Game.Install` task
//
// @name Game.InstallComplete
// @category Game
type GameInstallCompleteNotification struct {
	TaskID  string `json:"taskId"`
	GameID  string `json:"gameId"`
	Success bool   `json:"success"`
	// Install folder, only set on success
	Path string `json:"path,omitempty"`
	// Only set on failure
	Error string `json:"error,omitempty"`
}

// Sent any time the daemon needs to log something
//
// @name Log
// @category Utilities
type LogNotification struct {
	// Level of the message (`info`, `warn`, etc.)
	Level LogLevel `json:"level"`
	// Contents of the message.
	Message string `json:"message"`
}

type LogLevel string

const (
	// Hidden from logs by default, noisy
	LogLevelDebug LogLevel = "debug"
	// Just thinking out loud
	LogLevelInfo LogLevel = "info"
	// We're continuing, but we're not thrilled about it
	LogLevelWarning LogLevel = "warning"
	// We're eventually going to fail loudly
	LogLevelError LogLevel = "error"
)

// launcherd JSON-RPC 2.0 error codes
type Code int64

// Note: codes -32000 to -32099 are reserved for the JSON-RPC
// protocol.

const (
	// An operation was cancelled gracefully
	CodeOperationCancelled Code = 499

	// We tried to launch something, but the executable just wasn't there
	CodeLaunchNotFound Code = 404

	// The executable to launch lies outside of the game's folder
	CodeInvalidExecutable Code = 5000

	// No install path was given, and none was ever stored
	CodeNoInstallPath Code = 3000

	// There is no Internet connection
	CodeNetworkDisconnected Code = 9000
)
