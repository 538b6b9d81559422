package hello

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/require"
	"github.com/takutoez/solana-node-hello-world/pkg/config"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
	"github.com/takutoez/solana-node-hello-world/pkg/rpcclient"
	"github.com/takutoez/solana-node-hello-world/pkg/wallet"
	"go.uber.org/zap/zaptest"
)

const (
	testRent = 1_000_000
	testFee  = 5000
)

// chain is an in-memory Cluster used by the tests. It's shared between
// runs to model repeated executions against the same cluster.
type chain struct {
	t        *testing.T
	accounts map[solana.PublicKey]*rpc.Account
	program  solana.PublicKey

	calls    []string
	airdrops []uint64
	creates  int
	invokes  int
	closed   int

	versionErr error
	airdropErr error
	sendErr    error
}

func newChain(t *testing.T) *chain {
	return &chain{t: t, accounts: make(map[solana.PublicKey]*rpc.Account)}
}

func (c *chain) deploy(program solana.PublicKey, executable bool) {
	c.program = program
	c.accounts[program] = &rpc.Account{
		Lamports:   1,
		Owner:      solana.BPFLoaderUpgradeableProgramID,
		Executable: executable,
		Data:       rpc.DataBytesOrJSONFromBytes([]byte{}),
	}
}

func (c *chain) balance(pk solana.PublicKey) uint64 {
	if acc, ok := c.accounts[pk]; ok {
		return acc.Lamports
	}
	return 0
}

func (c *chain) GetVersion(context.Context) (*rpc.GetVersionResult, error) {
	c.calls = append(c.calls, "getVersion")
	if c.versionErr != nil {
		return nil, c.versionErr
	}
	return &rpc.GetVersionResult{SolanaCore: "1.18.0"}, nil
}

func (c *chain) GetBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	c.calls = append(c.calls, "getBalance")
	return c.balance(account), nil
}

func (c *chain) GetMinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	c.calls = append(c.calls, "getMinimumBalanceForRentExemption")
	require.EqualValues(c.t, config.DefaultAccountSize, size)
	return testRent, nil
}

func (c *chain) GetRecentFeeParameters(context.Context, solana.PublicKey) (rpcclient.FeeParameters, error) {
	c.calls = append(c.calls, "getFeeForMessage")
	return rpcclient.FeeParameters{LamportsPerSignature: testFee}, nil
}

func (c *chain) RequestAirdrop(_ context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	c.calls = append(c.calls, "requestAirdrop")
	if c.airdropErr != nil {
		return solana.Signature{}, c.airdropErr
	}
	c.airdrops = append(c.airdrops, lamports)
	acc, ok := c.accounts[account]
	if !ok {
		acc = &rpc.Account{Owner: solana.SystemProgramID}
		c.accounts[account] = acc
	}
	acc.Lamports += lamports
	return solana.Signature{1}, nil
}

func (c *chain) ConfirmTransaction(context.Context, solana.Signature) error {
	c.calls = append(c.calls, "confirmTransaction")
	return nil
}

func (c *chain) GetAccountInfo(_ context.Context, account solana.PublicKey) (*rpc.Account, error) {
	c.calls = append(c.calls, "getAccountInfo")
	return c.accounts[account], nil
}

func (c *chain) SendAndConfirmTransaction(_ context.Context, tx *solana.Transaction, signers ...solana.PrivateKey) (solana.Signature, error) {
	c.calls = append(c.calls, "sendTransaction")
	if c.sendErr != nil {
		return solana.Signature{}, c.sendErr
	}
	require.Len(c.t, signers, 1)
	require.True(c.t, tx.Message.AccountKeys[0].Equals(signers[0].PublicKey()))
	require.Len(c.t, tx.Message.Instructions, 1)

	ix := tx.Message.Instructions[0]
	switch programID := tx.Message.AccountKeys[ix.ProgramIDIndex]; {
	case programID.Equals(solana.SystemProgramID):
		// CreateAccountWithSeed: funding, created, base.
		require.Len(c.t, ix.Accounts, 3)
		created := tx.Message.AccountKeys[ix.Accounts[1]]
		require.NotContains(c.t, c.accounts, created)
		c.accounts[created] = &rpc.Account{
			Lamports: testRent,
			Owner:    c.program,
			Data:     rpc.DataBytesOrJSONFromBytes(make([]byte, config.DefaultAccountSize)),
		}
		c.accounts[signers[0].PublicKey()].Lamports -= testRent
		c.creates++
	case programID.Equals(c.program):
		require.Len(c.t, ix.Accounts, 1)
		require.Empty(c.t, ix.Data)
		target := tx.Message.AccountKeys[ix.Accounts[0]]
		acc, ok := c.accounts[target]
		require.True(c.t, ok, "program invoked for a missing account")
		data := acc.Data.GetBinary()
		data[0]++
		acc.Data = rpc.DataBytesOrJSONFromBytes(data)
		c.invokes++
	default:
		c.t.Fatalf("unexpected program %s", programID)
	}
	c.accounts[signers[0].PublicKey()].Lamports -= testFee
	return solana.Signature{2}, nil
}

func (c *chain) Close() { c.closed++ }

type testEnv struct {
	chain   *chain
	loader  *config.Loader
	program config.ProgramConfiguration
	payer   solana.PrivateKey
	progKey solana.PrivateKey
	out     *bytes.Buffer
}

func writeKey(t *testing.T, path string) solana.PrivateKey {
	key, err := wallet.NewEphemeral()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, wallet.Marshal(key), 0o600))
	return key
}

// newTestEnv prepares key files for payer and program and a built program
// binary in a temporary directory.
func newTestEnv(t *testing.T) *testEnv {
	dir := t.TempDir()
	e := &testEnv{
		chain: newChain(t),
		out:   new(bytes.Buffer),
	}
	e.program = config.Default().Program
	e.program.Dir = dir

	payerPath := filepath.Join(dir, "payer.json")
	e.payer = writeKey(t, payerPath)
	e.progKey = writeKey(t, e.program.KeypairPath())
	require.NoError(t, os.WriteFile(e.program.BinaryPath(), []byte{0x7f, 'E', 'L', 'F'}, 0o600))

	e.loader = &config.Loader{
		CLIConfigPath: filepath.Join(dir, "missing.yml"),
		RPCURL:        "http://127.0.0.1:8899",
		KeypairPath:   payerPath,
	}
	return e
}

func (e *testEnv) runner(t *testing.T) *Runner {
	return &Runner{
		Loader: e.loader,
		Dial: func(_ context.Context, ep config.Endpoint) (Cluster, error) {
			require.Equal(t, "http://127.0.0.1:8899", ep.RPC)
			return e.chain, nil
		},
		Program: e.program,
		Log:     zaptest.NewLogger(t),
		Out:     e.out,
	}
}

func (e *testEnv) account(t *testing.T) solana.PublicKey {
	acc, err := DeriveAccountAddress(e.payer.PublicKey(), e.program.Seed, e.progKey.PublicKey())
	require.NoError(t, err)
	return acc
}

func TestDeriveAccountAddress(t *testing.T) {
	base := solana.NewWallet().PublicKey()
	program := solana.NewWallet().PublicKey()

	a1, err := DeriveAccountAddress(base, config.DefaultSeed, program)
	require.NoError(t, err)
	a2, err := DeriveAccountAddress(base, config.DefaultSeed, program)
	require.NoError(t, err)
	require.Equal(t, a1, a2)

	expected, err := solana.CreateWithSeed(base, config.DefaultSeed, program)
	require.NoError(t, err)
	require.Equal(t, expected, a1)

	other, err := DeriveAccountAddress(base, "other", program)
	require.NoError(t, err)
	require.NotEqual(t, a1, other)
}

func TestFeeBudget(t *testing.T) {
	require.EqualValues(t, 1_500_000, FeeBudget(testRent, testFee, 100))
	require.EqualValues(t, testRent, FeeBudget(testRent, 0, 100))
}

func TestSteps(t *testing.T) {
	r := &Runner{}
	var names []string
	for _, s := range r.Steps() {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{
		StepEstablishConnection,
		StepEstablishPayer,
		StepCheckProgram,
		StepRunProgram,
		StepGetAccountInfo,
	}, names)
}

func TestRunFreshPayer(t *testing.T) {
	e := newTestEnv(t)
	e.chain.deploy(e.progKey.PublicKey(), true)

	s, err := e.runner(t).Run(context.Background())
	require.NoError(t, err)

	budget := FeeBudget(testRent, testFee, config.DefaultFeeSignatureMultiplier)
	require.Equal(t, []uint64{budget}, e.chain.airdrops)
	require.Equal(t, 1, e.chain.creates)
	require.Equal(t, 1, e.chain.invokes)
	require.Equal(t, 1, e.chain.closed)

	require.Equal(t, e.progKey.PublicKey(), s.ProgramID)
	require.Equal(t, e.account(t), s.Account)
	require.Equal(t, budget, s.Balance)
	require.NotNil(t, s.AccountInfo)
	require.Equal(t, e.progKey.PublicKey(), s.AccountInfo.Owner)
	require.EqualValues(t, 1, s.AccountInfo.Data.GetBinary()[0])

	require.Contains(t, e.out.String(), "Pubkey:")
	require.Contains(t, e.out.String(), e.account(t).String())
	require.Contains(t, e.out.String(), "AccountInfo:")
}

func TestRunRepeated(t *testing.T) {
	e := newTestEnv(t)
	e.chain.deploy(e.progKey.PublicKey(), true)

	_, err := e.runner(t).Run(context.Background())
	require.NoError(t, err)

	// Leftover balance covers another run.
	e.chain.accounts[e.payer.PublicKey()].Lamports = FeeBudget(testRent, testFee, config.DefaultFeeSignatureMultiplier)
	e.chain.calls = nil

	s, err := e.runner(t).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, e.chain.airdrops, 1)
	require.Equal(t, 1, e.chain.creates)
	require.Equal(t, 2, e.chain.invokes)
	require.EqualValues(t, 2, s.AccountInfo.Data.GetBinary()[0])
	require.NotContains(t, e.chain.calls, "requestAirdrop")
	require.Equal(t, 1, countCalls(e.chain.calls, "sendTransaction"))
}

func TestRunProgramKeyMissing(t *testing.T) {
	e := newTestEnv(t)
	e.chain.deploy(e.progKey.PublicKey(), true)
	require.NoError(t, os.Remove(e.program.KeypairPath()))

	_, err := e.runner(t).Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, fault.ErrFile)
	require.ErrorContains(t, err, StepCheckProgram+": ")
	require.ErrorContains(t, err, "solana program deploy "+e.program.BinaryPath())

	// Only connection and payer establishment have talked to the cluster.
	require.Equal(t, []string{
		"getVersion",
		"getFeeForMessage",
		"getMinimumBalanceForRentExemption",
		"getBalance",
		"requestAirdrop",
		"confirmTransaction",
		"getBalance",
	}, e.chain.calls)
	require.Equal(t, 1, e.chain.closed)
}

func TestRunProgramDirWithSpaces(t *testing.T) {
	e := newTestEnv(t)
	e.program.Dir = filepath.Join(t.TempDir(), "my programs")

	_, err := e.runner(t).Run(context.Background())
	require.ErrorIs(t, err, fault.ErrFile)
	require.ErrorContains(t, err, shellquote.Join("solana", "program", "deploy", e.program.BinaryPath()))
	require.NotContains(t, err.Error(), "deploy "+e.program.BinaryPath()+"`")
}

func TestRunProgramNotDeployed(t *testing.T) {
	t.Run("binary exists", func(t *testing.T) {
		e := newTestEnv(t)
		_, err := e.runner(t).Run(context.Background())
		require.ErrorIs(t, err, fault.ErrMissingAccount)
		require.ErrorContains(t, err, "needs to be deployed")
		require.Zero(t, e.chain.invokes)
		require.NotContains(t, e.chain.calls, "sendTransaction")
	})
	t.Run("binary missing", func(t *testing.T) {
		e := newTestEnv(t)
		require.NoError(t, os.Remove(e.program.BinaryPath()))
		_, err := e.runner(t).Run(context.Background())
		require.ErrorIs(t, err, fault.ErrMissingAccount)
		require.ErrorContains(t, err, "needs to be built and deployed")
		require.NotContains(t, e.chain.calls, "sendTransaction")
	})
}

func TestRunProgramNotExecutable(t *testing.T) {
	e := newTestEnv(t)
	e.chain.deploy(e.progKey.PublicKey(), false)

	_, err := e.runner(t).Run(context.Background())
	require.ErrorIs(t, err, fault.ErrMissingAccount)
	require.ErrorContains(t, err, "not executable")
	require.Zero(t, e.chain.creates)
	require.Zero(t, e.chain.invokes)
}

func TestRunConnectionFailure(t *testing.T) {
	e := newTestEnv(t)
	e.chain.versionErr = fault.Connectivity(errors.New("connection refused"), "can't get version")

	s, err := e.runner(t).Run(context.Background())
	require.ErrorIs(t, err, fault.ErrConnectivity)
	require.ErrorContains(t, err, StepEstablishConnection+": ")
	require.Nil(t, s.Payer)
	require.Equal(t, []string{"getVersion"}, e.chain.calls)
	require.Equal(t, 1, e.chain.closed)
}

func TestRunDialFailure(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(t)
	r.Dial = func(context.Context, config.Endpoint) (Cluster, error) {
		return nil, fault.Connectivity(nil, "invalid RPC endpoint")
	}
	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, fault.ErrConnectivity)
	require.Zero(t, e.chain.closed)
}

func TestRunTransactionRejected(t *testing.T) {
	e := newTestEnv(t)
	e.chain.deploy(e.progKey.PublicKey(), true)
	e.chain.sendErr = fault.Transaction("insufficient funds", nil, "failed to send transaction")

	_, err := e.runner(t).Run(context.Background())
	require.ErrorIs(t, err, fault.ErrTransaction)
	require.ErrorContains(t, err, StepCheckProgram+": ")
}

func TestEstablishPayer(t *testing.T) {
	budget := FeeBudget(testRent, testFee, config.DefaultFeeSignatureMultiplier)

	t.Run("sufficient balance", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.accounts[e.payer.PublicKey()] = &rpc.Account{Lamports: budget}
		s := &State{Cluster: e.chain}
		require.NoError(t, e.runner(t).EstablishPayer(context.Background(), s))
		require.Empty(t, e.chain.airdrops)
		require.Equal(t, budget, s.Balance)
		require.Equal(t, e.payer, s.Payer)
	})
	t.Run("shortfall", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.accounts[e.payer.PublicKey()] = &rpc.Account{Lamports: budget - 42}
		s := &State{Cluster: e.chain}
		require.NoError(t, e.runner(t).EstablishPayer(context.Background(), s))
		require.Equal(t, []uint64{42}, e.chain.airdrops)
		require.Equal(t, budget, s.Balance)
		require.Equal(t, []string{
			"getFeeForMessage",
			"getMinimumBalanceForRentExemption",
			"getBalance",
			"requestAirdrop",
			"confirmTransaction",
			"getBalance",
		}, e.chain.calls)
	})
	t.Run("preset payer", func(t *testing.T) {
		e := newTestEnv(t)
		e.loader.KeypairPath = filepath.Join(t.TempDir(), "missing.json")
		payer, err := wallet.NewEphemeral()
		require.NoError(t, err)
		s := &State{Cluster: e.chain, Payer: payer}
		require.NoError(t, e.runner(t).EstablishPayer(context.Background(), s))
		require.Equal(t, payer, s.Payer)
	})
	t.Run("airdrop rejected", func(t *testing.T) {
		e := newTestEnv(t)
		e.chain.airdropErr = fault.Transaction("airdrop limit reached", nil, "airdrop failed")
		s := &State{Cluster: e.chain}
		err := e.runner(t).EstablishPayer(context.Background(), s)
		require.ErrorIs(t, err, fault.ErrTransaction)
		require.NotContains(t, e.chain.calls, "confirmTransaction")
	})
	t.Run("payer key missing", func(t *testing.T) {
		e := newTestEnv(t)
		e.loader.KeypairPath = filepath.Join(t.TempDir(), "missing.json")
		err := e.runner(t).EstablishPayer(context.Background(), &State{Cluster: e.chain})
		require.ErrorIs(t, err, fault.ErrConfig)
		require.ErrorIs(t, err, fault.ErrFile)
		require.Empty(t, e.chain.calls)
	})
}

func TestCheckProgramExistingAccount(t *testing.T) {
	e := newTestEnv(t)
	e.chain.deploy(e.progKey.PublicKey(), true)
	e.chain.accounts[e.account(t)] = &rpc.Account{
		Owner: e.progKey.PublicKey(),
		Data:  rpc.DataBytesOrJSONFromBytes(make([]byte, config.DefaultAccountSize)),
	}

	s := &State{Cluster: e.chain, Payer: e.payer}
	require.NoError(t, e.runner(t).CheckProgram(context.Background(), s))
	require.Equal(t, e.account(t), s.Account)
	require.Zero(t, e.chain.creates)
	require.NotContains(t, e.chain.calls, "sendTransaction")
}

func TestGetAccountInfoMissing(t *testing.T) {
	e := newTestEnv(t)
	s := &State{Cluster: e.chain, Account: e.account(t)}
	err := e.runner(t).GetAccountInfo(context.Background(), s)
	require.ErrorIs(t, err, fault.ErrMissingAccount)
	require.ErrorContains(t, err, "cannot find the account "+e.account(t).String())
	require.Empty(t, e.out.String())
}

func countCalls(calls []string, method string) int {
	var n int
	for _, c := range calls {
		if c == method {
			n++
		}
	}
	return n
}
