/*
Package hello runs the hello world client flow against a Solana cluster.

The flow is an ordered list of named steps sharing an explicit State:
connection is established, the payer is funded if needed, the program and the
greeted account are checked (the account is created when absent), the program
is invoked once and finally the greeted account is read back. Any failure
stops the flow, there are no retries.
*/
package hello

import (
	"context"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/takutoez/solana-node-hello-world/pkg/config"
	"github.com/takutoez/solana-node-hello-world/pkg/rpcclient"
	"go.uber.org/zap"
)

// Step names.
const (
	StepEstablishConnection = "EstablishConnection"
	StepEstablishPayer      = "EstablishPayer"
	StepCheckProgram        = "CheckProgram"
	StepRunProgram          = "RunProgram"
	StepGetAccountInfo      = "GetAccountInfo"
)

type (
	// Cluster is a session to a cluster node, see rpcclient.Client.
	Cluster interface {
		GetVersion(ctx context.Context) (*rpc.GetVersionResult, error)
		GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
		GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
		GetRecentFeeParameters(ctx context.Context, feePayer solana.PublicKey) (rpcclient.FeeParameters, error)
		RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
		ConfirmTransaction(ctx context.Context, sig solana.Signature) error
		// GetAccountInfo returns nil without an error if the account doesn't exist.
		GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.Account, error)
		SendAndConfirmTransaction(ctx context.Context, tx *solana.Transaction, signers ...solana.PrivateKey) (solana.Signature, error)
		Close()
	}

	// Loader provides local configuration and key pairs, see config.Loader.
	Loader interface {
		ResolveRPCEndpoint() (config.Endpoint, error)
		ResolvePayerIdentity() (solana.PrivateKey, error)
		LoadKeyPairFromFile(path string) (solana.PrivateKey, error)
	}

	// Dialer opens a Cluster session to the endpoint.
	Dialer func(ctx context.Context, endpoint config.Endpoint) (Cluster, error)
)

// State is shared by all steps of a single run.
type State struct {
	Endpoint config.Endpoint
	Cluster  Cluster
	// Payer signs and pays for all transactions.
	Payer solana.PrivateKey
	// Balance is the payer balance after funding.
	Balance   uint64
	ProgramID solana.PublicKey
	// Account is the greeted account address derived from Payer and ProgramID.
	Account     solana.PublicKey
	AccountInfo *rpc.Account
}

// Step is a single named stage of the flow.
type Step struct {
	Name string
	Do   func(ctx context.Context, s *State) error
}

// Runner executes the flow.
type Runner struct {
	Loader  Loader
	Dial    Dialer
	Program config.ProgramConfiguration
	Log     *zap.Logger
	// Out receives the final account report.
	Out io.Writer
}

// Steps returns the steps of the flow in execution order.
func (r *Runner) Steps() []Step {
	return []Step{
		{Name: StepEstablishConnection, Do: r.EstablishConnection},
		{Name: StepEstablishPayer, Do: r.EstablishPayer},
		{Name: StepCheckProgram, Do: r.CheckProgram},
		{Name: StepRunProgram, Do: r.RunProgram},
		{Name: StepGetAccountInfo, Do: r.GetAccountInfo},
	}
}

// Run executes all steps in order on a fresh State. The error returned is
// prefixed with the name of the failed step. Every log line of the run
// carries the same run ID.
func (r *Runner) Run(ctx context.Context) (*State, error) {
	var (
		s   = new(State)
		run = *r
	)
	run.Log = r.Log.With(zap.Stringer("run", uuid.New()))
	defer func() {
		if s.Cluster != nil {
			s.Cluster.Close()
		}
	}()

	run.Log.Info("start")
	for _, step := range run.Steps() {
		run.Log.Debug("running step", zap.String("step", step.Name))
		if err := step.Do(ctx, s); err != nil {
			run.Log.Error("step failed", zap.String("step", step.Name), zap.Error(err))
			return s, fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	run.Log.Info("success")
	return s, nil
}
