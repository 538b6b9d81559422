package app

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/takutoez/solana-node-hello-world/cli/options"
	"github.com/takutoez/solana-node-hello-world/pkg/config"
	"github.com/takutoez/solana-node-hello-world/pkg/hello"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "solana-hello\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an instance of [cli.App] running the hello world flow.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "solana-hello"
	ctl.Version = config.Version
	ctl.Usage = "Say hello to an account through a Solana program"
	ctl.ErrWriter = os.Stderr

	ctl.Flags = append(ctl.Flags, options.Cluster...)
	ctl.Flags = append(ctl.Flags, options.Timeout, options.ConfigFile, options.EnvFile, options.Debug)
	ctl.Action = run
	return ctl
}

func run(ctx *cli.Context) error {
	if err := config.LoadDotEnv(ctx.String("env-file")); err != nil {
		return cli.NewExitError(err, 1)
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	gctx, stop := signal.NotifyContext(gctx, os.Interrupt)
	defer stop()

	r := &hello.Runner{
		Loader:  options.GetLoader(ctx),
		Dial:    options.NewDialer(cfg.ApplicationConfiguration, log),
		Program: cfg.Program,
		Log:     log,
		Out:     ctx.App.Writer,
	}
	if _, err = r.Run(gctx); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}
