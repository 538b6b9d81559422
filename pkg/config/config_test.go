package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
)

func writeFile(t *testing.T, name string, data string) string {
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 50, cfg.Program.AccountSize)
	require.Equal(t, "hello_world", cfg.Program.Seed)
	require.EqualValues(t, 100, cfg.Program.FeeSignatureMultiplier)
	require.Equal(t, string(rpc.CommitmentConfirmed), cfg.ApplicationConfiguration.Commitment)
}

func TestProgramPaths(t *testing.T) {
	p := ProgramConfiguration{Dir: filepath.Join("target", "deploy"), Name: "prog"}
	require.Equal(t, filepath.Join("target", "deploy", "prog-keypair.json"), p.KeypairPath())
	require.Equal(t, filepath.Join("target", "deploy", "prog.so"), p.BinaryPath())
}

func TestLoadFile(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		p := writeFile(t, "hello.yml", `
ApplicationConfiguration:
  LogLevel: debug
  AwaitTimeout: 30s
Program:
  Dir: /opt/program
`)
		cfg, err := LoadFile(p)
		require.NoError(t, err)
		require.Equal(t, "debug", cfg.ApplicationConfiguration.LogLevel)
		require.Equal(t, 30*time.Second, cfg.ApplicationConfiguration.AwaitTimeout)
		require.Equal(t, DefaultPollInterval, cfg.ApplicationConfiguration.PollInterval)
		require.Equal(t, "/opt/program", cfg.Program.Dir)
		require.Equal(t, DefaultProgramName, cfg.Program.Name)
		require.EqualValues(t, DefaultAccountSize, cfg.Program.AccountSize)
	})

	t.Run("repository default", func(t *testing.T) {
		cfg, err := LoadFile(filepath.Join("..", "..", "config", "hello.yml"))
		require.NoError(t, err)
		require.Equal(t, DefaultSeed, cfg.Program.Seed)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "none.yml"))
		require.ErrorIs(t, err, fault.ErrConfig)
	})

	t.Run("bad yaml", func(t *testing.T) {
		p := writeFile(t, "hello.yml", "ApplicationConfiguration: [")
		_, err := LoadFile(p)
		require.ErrorIs(t, err, fault.ErrConfig)
	})

	t.Run("bad commitment", func(t *testing.T) {
		p := writeFile(t, "hello.yml", "ApplicationConfiguration:\n  Commitment: recent\n")
		_, err := LoadFile(p)
		require.ErrorIs(t, err, fault.ErrConfig)
		require.Contains(t, err.Error(), "recent")
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Program.AccountSize = 0
	require.ErrorIs(t, cfg.Validate(), fault.ErrConfig)

	cfg = Default()
	cfg.Program.Seed = "this seed is definitely longer than thirty two bytes"
	require.ErrorIs(t, cfg.Validate(), fault.ErrConfig)

	cfg = Default()
	cfg.ApplicationConfiguration.AwaitTimeout = 0
	require.ErrorIs(t, cfg.Validate(), fault.ErrConfig)

	cfg = Default()
	cfg.ApplicationConfiguration.RequestsPerSecond = -1
	require.ErrorIs(t, cfg.Validate(), fault.ErrConfig)
}
