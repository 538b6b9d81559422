package config

import (
	"time"
)

// ApplicationConfiguration config specific to the client process.
type ApplicationConfiguration struct {
	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`
	// Commitment is the commitment level used for queries and confirmations.
	Commitment string `yaml:"Commitment"`
	// AwaitTimeout limits a single confirmation wait.
	AwaitTimeout time.Duration `yaml:"AwaitTimeout"`
	PollInterval time.Duration `yaml:"PollInterval"`
	// RequestsPerSecond limits the RPC request rate, 0 means no limit.
	RequestsPerSecond float64 `yaml:"RequestsPerSecond"`
	// DisableWebsocket makes confirmations use polling only.
	DisableWebsocket bool `yaml:"DisableWebsocket"`
}
