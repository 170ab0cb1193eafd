// Package messages provides typed wrappers for registering handlers
// and sending notifications for every launcherd method.
package messages

import (
	"encoding/json"
	"fmt"

	"github.com/oaiba/oblauncher/launcherd"
	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"
)

type router interface {
	Register(method string, rh launcherd.RequestHandler)
	RegisterNotification(method string, nh launcherd.NotificationHandler)
}

type validatable interface {
	Validate() error
}

func decodeParams(rc *launcherd.RequestContext, params validatable) error {
	if rc.Params == nil {
		return &launcherd.RpcError{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}

	err := json.Unmarshal(*rc.Params, params)
	if err != nil {
		return &launcherd.RpcError{Code: jsonrpc2.CodeParseError, Message: err.Error()}
	}

	err = params.Validate()
	if err != nil {
		return &launcherd.RpcError{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

//=============================
// Meta.Authenticate (Request)
//=============================

type MetaAuthenticateType struct{}

var _ RequestMessage = (*MetaAuthenticateType)(nil)

func (r *MetaAuthenticateType) Method() string {
	return "Meta.Authenticate"
}

func (r *MetaAuthenticateType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.MetaAuthenticateParams) (*launcherd.MetaAuthenticateResult, error)) {
	router.Register("Meta.Authenticate", func(rc *launcherd.RequestContext) (interface{}, error) {
		var params launcherd.MetaAuthenticateParams
		err := decodeParams(rc, &params)
		if err != nil {
			return nil, err
		}

		res, err := f(rc, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("internal error: nil result for Meta.Authenticate")
		}
		return res, nil
	})
}

var MetaAuthenticate *MetaAuthenticateType

//=============================
// Catalog.Fetch (Request)
//=============================

type CatalogFetchType struct{}

var _ RequestMessage = (*CatalogFetchType)(nil)

func (r *CatalogFetchType) Method() string {
	return "Catalog.Fetch"
}

func (r *CatalogFetchType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.CatalogFetchParams) (*launcherd.CatalogFetchResult, error)) {
	router.Register("Catalog.Fetch", func(rc *launcherd.RequestContext) (interface{}, error) {
		var params launcherd.CatalogFetchParams
		err := decodeParams(rc, &params)
		if err != nil {
			return nil, err
		}

		res, err := f(rc, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("internal error: nil result for Catalog.Fetch")
		}
		return res, nil
	})
}

var CatalogFetch *CatalogFetchType

//=============================
// Store.Get (Request)
//=============================

type StoreGetType struct{}

var _ RequestMessage = (*StoreGetType)(nil)

func (r *StoreGetType) Method() string {
	return "Store.Get"
}

func (r *StoreGetType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.StoreGetParams) (*launcherd.StoreGetResult, error)) {
	router.Register("Store.Get", func(rc *launcherd.RequestContext) (interface{}, error) {
		var params launcherd.StoreGetParams
		err := decodeParams(rc, &params)
		if err != nil {
			return nil, err
		}

		res, err := f(rc, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("internal error: nil result for Store.Get")
		}
		return res, nil
	})
}

var StoreGet *StoreGetType

//=============================
// Game.CheckStatus (Request)
//=============================

type GameCheckStatusType struct{}

var _ RequestMessage = (*GameCheckStatusType)(nil)

func (r *GameCheckStatusType) Method() string {
	return "Game.CheckStatus"
}

func (r *GameCheckStatusType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.GameCheckStatusParams) (*launcherd.GameCheckStatusResult, error)) {
	router.Register("Game.CheckStatus", func(rc *launcherd.RequestContext) (interface{}, error) {
		var params launcherd.GameCheckStatusParams
		err := decodeParams(rc, &params)
		if err != nil {
			return nil, err
		}

		res, err := f(rc, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("internal error: nil result for Game.CheckStatus")
		}
		return res, nil
	})
}

var GameCheckStatus *GameCheckStatusType

//=============================
// Game.Install (Request)
//=============================

type GameInstallType struct{}

var _ RequestMessage = (*GameInstallType)(nil)

func (r *GameInstallType) Method() string {
	return "Game.Install"
}

func (r *GameInstallType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.GameInstallParams) (*launcherd.GameInstallResult, error)) {
	router.Register("Game.Install", func(rc *launcherd.RequestContext) (interface{}, error) {
		var params launcherd.GameInstallParams
		err := decodeParams(rc, &params)
		if err != nil {
			return nil, err
		}

		res, err := f(rc, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("internal error: nil result for Game.Install")
		}
		return res, nil
	})
}

var GameInstall *GameInstallType

//=============================
// Game.CancelInstall (Request)
//=============================

type GameCancelInstallType struct{}

var _ RequestMessage = (*GameCancelInstallType)(nil)

func (r *GameCancelInstallType) Method() string {
	return "Game.CancelInstall"
}

func (r *GameCancelInstallType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.GameCancelInstallParams) (*launcherd.GameCancelInstallResult, error)) {
	router.Register("Game.CancelInstall", func(rc *launcherd.RequestContext) (interface{}, error) {
		var params launcherd.GameCancelInstallParams
		err := decodeParams(rc, &params)
		if err != nil {
			return nil, err
		}

		res, err := f(rc, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("internal error: nil result for Game.CancelInstall")
		}
		return res, nil
	})
}

var GameCancelInstall *GameCancelInstallType

//=============================
// Game.Launch (Request)
//=============================

type GameLaunchType struct{}

var _ RequestMessage = (*GameLaunchType)(nil)

func (r *GameLaunchType) Method() string {
	return "Game.Launch"
}

func (r *GameLaunchType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.GameLaunchParams) (*launcherd.GameLaunchResult, error)) {
	router.Register("Game.Launch", func(rc *launcherd.RequestContext) (interface{}, error) {
		var params launcherd.GameLaunchParams
		err := decodeParams(rc, &params)
		if err != nil {
			return nil, err
		}

		res, err := f(rc, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errors.New("internal error: nil result for Game.Launch")
		}
		return res, nil
	})
}

var GameLaunch *GameLaunchType

//=============================
// Store.Set (Notification)
//=============================

type StoreSetType struct{}

var _ NotificationMessage = (*StoreSetType)(nil)

func (r *StoreSetType) Method() string {
	return "Store.Set"
}

func (r *StoreSetType) Register(router router, f func(rc *launcherd.RequestContext, params launcherd.StoreSetNotification) error) {
	router.RegisterNotification("Store.Set", func(rc *launcherd.RequestContext) {
		var params launcherd.StoreSetNotification
		err := decodeParams(rc, &params)
		if err == nil {
			err = f(rc, params)
		}
		if err != nil {
			rc.Consumer.Warnf("Store.Set: %s", err.Error())
		}
	})
}

var StoreSet *StoreSetType

//=============================
// Game.DownloadProgress (Notification)
//=============================

type GameDownloadProgressType struct{}

var _ NotificationMessage = (*GameDownloadProgressType)(nil)

func (r *GameDownloadProgressType) Method() string {
	return "Game.DownloadProgress"
}

func (r *GameDownloadProgressType) Notify(rc *launcherd.RequestContext, params launcherd.GameDownloadProgressNotification) error {
	return rc.Notify("Game.DownloadProgress", params)
}

var GameDownloadProgress *GameDownloadProgressType

//=============================
// Game.InstallComplete (Notification)
//=============================

type GameInstallCompleteType struct{}

var _ NotificationMessage = (*GameInstallCompleteType)(nil)

func (r *GameInstallCompleteType) Method() string {
	return "Game.InstallComplete"
}

func (r *GameInstallCompleteType) Notify(rc *launcherd.RequestContext, params launcherd.GameInstallCompleteNotification) error {
	return rc.Notify("Game.InstallComplete", params)
}

var GameInstallComplete *GameInstallCompleteType

//=============================
// Log (Notification)
//=============================

type LogType struct{}

var _ NotificationMessage = (*LogType)(nil)

func (r *LogType) Method() string {
	return "Log"
}

func (r *LogType) Notify(rc *launcherd.RequestContext, params launcherd.LogNotification) error {
	return rc.Notify("Log", params)
}

var Log *LogType

type RequestMessage interface {
	Method() string
}

type NotificationMessage interface {
	Method() string
}

var requestMethods = []string{
	"Meta.Authenticate",
	"Catalog.Fetch",
	"Store.Get",
	"Game.CheckStatus",
	"Game.Install",
	"Game.CancelInstall",
	"Game.Launch",
}

// EnsureAllRequests panics if any request method lacks a handler
func EnsureAllRequests(router *launcherd.Router) {
	for _, method := range requestMethods {
		if _, ok := router.Handlers[method]; !ok {
			panic(fmt.Sprintf("missing request handler for (%s)", method))
		}
	}
}
