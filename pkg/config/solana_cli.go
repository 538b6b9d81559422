package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/takutoez/solana-node-hello-world/pkg/fault"
	"gopkg.in/yaml.v3"
)

// CLIConfig is the subset of the Solana command-line tool configuration
// (the file `solana config get` shows) used by the client.
type CLIConfig struct {
	JSONRPCURL   string `yaml:"json_rpc_url"`
	WebsocketURL string `yaml:"websocket_url"`
	KeypairPath  string `yaml:"keypair_path"`
}

// DefaultCLIConfigPath returns the location the Solana tool keeps its
// configuration in.
func DefaultCLIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "solana", "cli", "config.yml")
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml")
}

// LoadCLIConfig reads the Solana CLI configuration file.
func LoadCLIConfig(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Config(err, "unable to read Solana CLI config '%s'", path)
	}
	cfg := new(CLIConfig)
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fault.Config(err, "failed to unmarshal Solana CLI config '%s'", path)
	}
	return cfg, nil
}

// ExpandHome replaces the leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
