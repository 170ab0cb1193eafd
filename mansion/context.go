package mansion

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/itchio/httpkit/timeout"
	"github.com/oaiba/oblauncher/catalog"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/config"
	"github.com/oaiba/oblauncher/store"
	"github.com/pkg/errors"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

type DoCommand func(ctx *Context)

type Context struct {
	App      *kingpin.Application
	Commands map[string]DoCommand

	// ConfigPath is the path to the TOML config file, if empty
	// the default location in the app data folder is used
	ConfigPath string

	// StorePath overrides the settings database location from the config
	StorePath string

	// String to include in our user-agent
	UserAgentAddition string

	// VersionString is the complete version string
	VersionString string

	// Version is just the version number, as a string
	Version string

	// The git commit hash
	Commit string

	// Quiet silences all output
	Quiet bool

	// Verbose enables chatty output
	Verbose bool

	// Verbose enables JSON output
	JSON bool

	HTTPClient    *http.Client
	HTTPTransport *http.Transport

	configOnce sync.Once
	config     *config.Config
	configErr  error

	storeOnce sync.Once
	store     *store.SQLiteStore
	storeErr  error
}

func NewContext(app *kingpin.Application) *Context {
	client := timeout.NewDefaultClient()
	originalTransport := client.Transport.(*http.Transport)

	ctx := &Context{
		App:           app,
		Commands:      make(map[string]DoCommand),
		HTTPClient:    client,
		HTTPTransport: originalTransport,
	}

	client.Transport = &UserAgentSetter{
		OriginalTransport: originalTransport,
		Context:           ctx,
	}

	return ctx
}

func (ctx *Context) Register(clause *kingpin.CmdClause, do DoCommand) {
	ctx.Commands[clause.FullCommand()] = do
}

func (ctx *Context) Must(err error) {
	if err != nil {
		if ctx.Verbose || ctx.JSON {
			comm.Dief("%+v", err)
		} else {
			comm.Dief("%s", err)
		}
	}
}

func (ctx *Context) UserAgent() string {
	version := ctx.Version
	if version == "head" && ctx.Commit != "" {
		version = ctx.Commit
	}

	res := fmt.Sprintf("%s/%s", config.AppName, version)
	if ctx.UserAgentAddition != "" {
		res = fmt.Sprintf("%s %s", res, ctx.UserAgentAddition)
	}
	return res
}

// Config loads the launcher config once. An explicitly passed
// config path must exist, the default one may not.
func (ctx *Context) Config() (*config.Config, error) {
	ctx.configOnce.Do(func() {
		path := ctx.ConfigPath
		mustExist := true
		if path == "" {
			mustExist = false
			path, ctx.configErr = config.Path()
			if ctx.configErr != nil {
				return
			}
		}

		comm.Debugf("Using config (%s)", path)
		ctx.config, ctx.configErr = config.Load(path, mustExist)
	})
	return ctx.config, ctx.configErr
}

// Store opens the settings database once, it stays open for the
// lifetime of the process.
func (ctx *Context) Store() (store.Store, error) {
	ctx.storeOnce.Do(func() {
		storePath := ctx.StorePath
		if storePath == "" {
			cfg, err := ctx.Config()
			if err != nil {
				ctx.storeErr = err
				return
			}
			storePath = cfg.StorePath
		}

		comm.Debugf("Using settings database (%s)", storePath)
		ctx.store, ctx.storeErr = store.OpenSQLite(storePath)
	})
	if ctx.storeErr != nil {
		return nil, ctx.storeErr
	}
	return ctx.store, nil
}

func (ctx *Context) MustStore() store.Store {
	s, err := ctx.Store()
	ctx.Must(errors.WithMessage(err, "opening settings"))
	return s
}

// CatalogSource returns where games should be listed from, per config
func (ctx *Context) CatalogSource() (catalog.Source, error) {
	cfg, err := ctx.Config()
	if err != nil {
		return nil, err
	}

	if cfg.Catalog.URL != "" {
		return &catalog.HTTPSource{
			URL:    cfg.Catalog.URL,
			Client: ctx.HTTPClient,
		}, nil
	}
	return &catalog.FileSource{Path: cfg.Catalog.File}, nil
}

// Close releases the settings database, if it was opened
func (ctx *Context) Close() {
	if ctx.store != nil {
		err := ctx.store.Close()
		if err != nil {
			comm.Warnf("Closing settings database: %v", err)
		}
	}
}

//

type UserAgentSetter struct {
	OriginalTransport http.RoundTripper
	Context           *Context
}

var _ http.RoundTripper = (*UserAgentSetter)(nil)

func (uas *UserAgentSetter) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", uas.Context.UserAgent())
	return uas.OriginalTransport.RoundTrip(req)
}
