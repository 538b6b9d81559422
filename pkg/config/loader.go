package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
	"github.com/takutoez/solana-node-hello-world/pkg/wallet"
)

// Environment variables overriding the Solana CLI configuration.
const (
	EnvRPCURL         = "RPC_URL"
	EnvPayerKeypair   = "PAYER_KEYPAIR"
	EnvSolanaConfig   = "SOLANA_CONFIG"
	DefaultDotEnvFile = ".env"
)

// Loader resolves the cluster endpoint and the payer identity from flags,
// environment and the Solana CLI configuration, in this order.
type Loader struct {
	// CLIConfigPath is the Solana CLI config location, DefaultCLIConfigPath
	// is used if empty.
	CLIConfigPath string
	// RPCURL overrides the configured endpoint (cluster name or URL).
	RPCURL string
	// KeypairPath overrides the configured payer key pair file.
	KeypairPath string
	// EphemeralPayer allows to generate a throwaway payer when no key pair
	// file is configured.
	EphemeralPayer bool

	cli    *CLIConfig
	cliErr error
}

// LoadDotEnv loads variables from the given dotenv file into the process
// environment, existing variables are not overridden. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fault.Config(err, "failed to load '%s'", path)
	}
	return nil
}

func (l *Loader) cliConfigPath() string {
	if l.CLIConfigPath != "" {
		return ExpandHome(l.CLIConfigPath)
	}
	if p := os.Getenv(EnvSolanaConfig); p != "" {
		return ExpandHome(p)
	}
	return DefaultCLIConfigPath()
}

func (l *Loader) cliConfig() (*CLIConfig, error) {
	if l.cli == nil && l.cliErr == nil {
		l.cli, l.cliErr = LoadCLIConfig(l.cliConfigPath())
	}
	return l.cli, l.cliErr
}

// ResolveRPCEndpoint returns the cluster endpoint to connect to.
func (l *Loader) ResolveRPCEndpoint() (Endpoint, error) {
	var target, ws = l.RPCURL, ""
	if target == "" {
		target = os.Getenv(EnvRPCURL)
	}
	if target == "" {
		cfg, err := l.cliConfig()
		if err != nil {
			return Endpoint{}, err
		}
		if cfg.JSONRPCURL == "" {
			return Endpoint{}, fault.Config(nil, "json_rpc_url is not set in '%s', use `solana config set --url <URL>`", l.cliConfigPath())
		}
		target, ws = cfg.JSONRPCURL, cfg.WebsocketURL
	}
	return ParseEndpoint(target, ws)
}

// ResolvePayerIdentity returns the key pair paying for fees.
func (l *Loader) ResolvePayerIdentity() (solana.PrivateKey, error) {
	path := l.KeypairPath
	if path == "" {
		path = os.Getenv(EnvPayerKeypair)
	}
	if path == "" {
		cfg, err := l.cliConfig()
		if err != nil {
			if l.EphemeralPayer {
				return wallet.NewEphemeral()
			}
			return nil, err
		}
		path = cfg.KeypairPath
	}
	if path == "" {
		if l.EphemeralPayer {
			return wallet.NewEphemeral()
		}
		return nil, fault.Config(nil, "keypair_path is not set in '%s', use `solana config set --keypair <PATH>`", l.cliConfigPath())
	}
	key, err := wallet.LoadKeyPairFromFile(ExpandHome(path))
	if err != nil {
		return nil, fault.Config(err, "can't load payer key pair")
	}
	return key, nil
}

// LoadKeyPairFromFile reads the key pair stored at path.
func (l *Loader) LoadKeyPairFromFile(path string) (solana.PrivateKey, error) {
	return wallet.LoadKeyPairFromFile(path)
}
