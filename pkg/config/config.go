package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default application config location.
	DefaultConfigPath = "./config/hello.yml"

	// DefaultProgramDir is where the program build puts its artifacts.
	DefaultProgramDir = "../solana-rust-hello-world/target/deploy"
	// DefaultProgramName is the base name of the program artifacts.
	DefaultProgramName = "solana_rust_hello_world"
	// DefaultAccountSize is the size of the greeted account in bytes.
	DefaultAccountSize = 50
	// DefaultSeed is the seed used to derive the greeted account address.
	DefaultSeed = "hello_world"
	// DefaultFeeSignatureMultiplier is the number of signatures the payer
	// should be able to pay for, it's not related to the number of
	// signatures actually made.
	DefaultFeeSignatureMultiplier = 100

	// DefaultCommitment is used for all queries and confirmations.
	DefaultCommitment = rpc.CommitmentConfirmed
	// DefaultAwaitTimeout limits the time spent waiting for a single
	// transaction confirmation.
	DefaultAwaitTimeout = 90 * time.Second
	// DefaultPollInterval is the interval between signature status polls.
	DefaultPollInterval = 500 * time.Millisecond
)

// Version is the version of the client, set at build time.
var Version = "0.1.0-dev"

// Config is the top level application configuration.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
	Program                  ProgramConfiguration     `yaml:"Program"`
}

// ProgramConfiguration describes the deployed program and the account it greets.
type ProgramConfiguration struct {
	// Dir is the directory containing program build artifacts.
	Dir string `yaml:"Dir"`
	// Name is the base name of the artifacts (<Name>.so, <Name>-keypair.json).
	Name                   string `yaml:"Name"`
	AccountSize            uint64 `yaml:"AccountSize"`
	Seed                   string `yaml:"Seed"`
	FeeSignatureMultiplier uint64 `yaml:"FeeSignatureMultiplier"`
}

// KeypairPath returns the location of the program key pair file.
func (p ProgramConfiguration) KeypairPath() string {
	return filepath.Join(p.Dir, p.Name+"-keypair.json")
}

// BinaryPath returns the location of the compiled program.
func (p ProgramConfiguration) BinaryPath() string {
	return filepath.Join(p.Dir, p.Name+".so")
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		ApplicationConfiguration: ApplicationConfiguration{
			Commitment:   string(DefaultCommitment),
			AwaitTimeout: DefaultAwaitTimeout,
			PollInterval: DefaultPollInterval,
		},
		Program: ProgramConfiguration{
			Dir:                    DefaultProgramDir,
			Name:                   DefaultProgramName,
			AccountSize:            DefaultAccountSize,
			Seed:                   DefaultSeed,
			FeeSignatureMultiplier: DefaultFeeSignatureMultiplier,
		},
	}
}

// LoadFile loads the config from the given file, unset values are taken
// from Default.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fault.Config(err, "unable to read config")
	}

	config := Default()
	err = yaml.Unmarshal(configData, &config)
	if err != nil {
		return Config{}, fault.Config(err, "failed to unmarshal config YAML")
	}

	err = config.Validate()
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks the values that can't be fixed by defaults.
func (c Config) Validate() error {
	switch rpc.CommitmentType(c.ApplicationConfiguration.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fault.Config(nil, "invalid Commitment %q", c.ApplicationConfiguration.Commitment)
	}
	if c.ApplicationConfiguration.AwaitTimeout <= 0 {
		return fault.Config(nil, "AwaitTimeout must be positive")
	}
	if c.ApplicationConfiguration.RequestsPerSecond < 0 {
		return fault.Config(nil, "RequestsPerSecond can't be negative")
	}
	if c.Program.Name == "" {
		return fault.Config(nil, "program Name is not set")
	}
	if c.Program.AccountSize == 0 {
		return fault.Config(nil, "program AccountSize must be positive")
	}
	if len(c.Program.Seed) > solana.MaxSeedLength {
		return fault.Config(nil, "program Seed is longer than %d bytes", solana.MaxSeedLength)
	}
	return nil
}
