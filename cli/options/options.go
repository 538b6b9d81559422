/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/takutoez/solana-node-hello-world/pkg/config"
	"github.com/takutoez/solana-node-hello-world/pkg/hello"
	"github.com/takutoez/solana-node-hello-world/pkg/rpcclient"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeout is the default timeout for the whole run. It's well above
// the time needed for three transaction confirmations.
const DefaultTimeout = 5 * time.Minute

// URLFlag is a long flag name for the cluster endpoint. It can be used to
// check for flag presence in the context.
const URLFlag = "url"

// Cluster is a set of flags selecting the cluster and the payer.
var Cluster = []cli.Flag{
	cli.StringFlag{
		Name:  URLFlag + ", u",
		Usage: "cluster RPC URL or moniker (mainnet-beta, testnet, devnet, localhost), overrides $" + config.EnvRPCURL + " and the Solana CLI configuration",
	},
	cli.StringFlag{
		Name:  "keypair, k",
		Usage: "payer key pair file, overrides $" + config.EnvPayerKeypair + " and the Solana CLI configuration",
	},
	cli.StringFlag{
		Name:  "config, C",
		Usage: "Solana CLI configuration file, overrides $" + config.EnvSolanaConfig,
	},
	cli.BoolFlag{
		Name:  "ephemeral-payer",
		Usage: "use a freshly generated payer if no key pair file is configured",
	},
}

// Timeout is a flag limiting the whole run.
var Timeout = cli.DurationFlag{
	Name:  "timeout, s",
	Value: DefaultTimeout,
	Usage: "timeout for the whole run",
}

// ConfigFile is a flag for the application configuration file.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the application configuration file (" + config.DefaultConfigPath + " is used if present)",
}

// EnvFile is a flag for the dotenv file.
var EnvFile = cli.StringFlag{
	Name:  "env-file",
	Value: config.DefaultDotEnvFile,
	Usage: "file with environment variables to load, existing variables are not overridden",
}

// Debug is a flag enabling debug logging.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (overrides configuration)",
}

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext returns the application configuration. The file given
// with --config-file must exist, the default one is optional.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	if configFile := ctx.String("config-file"); len(configFile) != 0 {
		return config.LoadFile(configFile)
	}
	cfg, err := config.LoadFile(config.DefaultConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// GetLoader returns the endpoint and payer Loader configured from the
// command line.
func GetLoader(ctx *cli.Context) *config.Loader {
	return &config.Loader{
		CLIConfigPath:  ctx.String("config"),
		RPCURL:         ctx.String(URLFlag),
		KeypairPath:    ctx.String("keypair"),
		EphemeralPayer: ctx.Bool("ephemeral-payer"),
	}
}

// NewDialer returns a hello.Dialer creating rpcclient sessions with the
// given settings.
func NewDialer(cfg config.ApplicationConfiguration, log *zap.Logger) hello.Dialer {
	return func(ctx context.Context, endpoint config.Endpoint) (hello.Cluster, error) {
		c, err := rpcclient.New(ctx, endpoint, rpcclient.Options{
			Commitment:        rpc.CommitmentType(cfg.Commitment),
			AwaitTimeout:      cfg.AwaitTimeout,
			PollInterval:      cfg.PollInterval,
			RequestsPerSecond: cfg.RequestsPerSecond,
			DisableWebsocket:  cfg.DisableWebsocket,
			Logger:            log,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// HandleLoggingParams reads logging parameters. Logs go to stdout by default.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	cc.OutputPaths = []string{"stdout"}

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}
