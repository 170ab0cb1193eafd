package daemon

import (
	"context"
	"io"
	"net"
	"os"

	"github.com/google/gops/agent"
	"github.com/google/uuid"
	"github.com/oaiba/oblauncher/comm"
	"github.com/oaiba/oblauncher/endpoints"
	"github.com/oaiba/oblauncher/launcherd"
	"github.com/oaiba/oblauncher/mansion"
	"github.com/pkg/errors"
)

var args = struct {
	destinyPids []int64
	transport   string
	keepAlive   bool
}{}

func Register(ctx *mansion.Context) {
	cmd := ctx.App.Command("daemon", "Start a launcherd instance").Hidden()
	cmd.Flag("destiny-pid", "The daemon will shutdown whenever any of its destiny PIDs shuts down").Int64ListVar(&args.destinyPids)
	cmd.Flag("transport", "Which transport to use").Default("tcp").EnumVar(&args.transport, "tcp", "stdio")
	cmd.Flag("keep-alive", "Accept multiple TCP connections, stay up until killed or a destiny PID shuts down").BoolVar(&args.keepAlive)
	ctx.Register(cmd, do)
}

func do(ctx *mansion.Context) {
	if !comm.JsonEnabled() {
		comm.Notice("Hello from oblauncher daemon", []string{"We can't do anything interesting without --json, bailing out"})
		os.Exit(1)
	}

	err := agent.Listen(agent.Options{
		Addr:            "localhost:0",
		ShutdownCleanup: true,
	})
	if err != nil {
		comm.Warnf("launcherd: Could not start gops agent: %+v", err)
	}

	daemonCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, destinyPid := range args.destinyPids {
		go tieDestiny(daemonCtx, destinyPid, cancel)
	}

	ctx.Must(Do(ctx, daemonCtx, generateSecret()))
}

func generateSecret() string {
	var res string
	for rounds := 4; rounds > 0; rounds-- {
		res += uuid.New().String()
	}
	return res
}

func Do(mansionContext *mansion.Context, ctx context.Context, secret string) error {
	s, err := mansionContext.Store()
	if err != nil {
		return errors.WithMessage(err, "opening settings")
	}
	cfg, err := mansionContext.Config()
	if err != nil {
		return err
	}
	source, err := mansionContext.CatalogSource()
	if err != nil {
		return err
	}

	router := endpoints.NewRouter(&launcherd.Services{
		Store:      s,
		Catalog:    source,
		HTTPClient: mansionContext.HTTPClient,
		UserAgent:  mansionContext.UserAgent(),
		TempDir:    cfg.TempDir,
	}, mansionContext.VersionString)

	server := launcherd.NewServer(secret)

	switch args.transport {
	case "tcp":
		listener, err := net.Listen("tcp", "127.0.0.1:")
		if err != nil {
			return errors.WithStack(err)
		}

		comm.Object("launcherd/listen-notification", map[string]interface{}{
			"secret": secret,
			"tcp": map[string]interface{}{
				"address": listener.Addr().String(),
			},
		})

		return server.ServeTCP(ctx, launcherd.ServeTCPParams{
			Handler:   router,
			Listener:  listener,
			KeepAlive: args.keepAlive,
		})
	case "stdio":
		// stdout carries the protocol, logs go to stderr
		comm.SetOutput(os.Stderr)
		comm.Logf("launcherd: serving on stdio")
		return server.ServeStdio(ctx, router, &stdio{})
	}

	return errors.Errorf("unknown transport %s", args.transport)
}

type stdio struct{}

var _ io.ReadWriteCloser = (*stdio)(nil)

func (stdio) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdio) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdio) Close() error {
	return os.Stdin.Close()
}
