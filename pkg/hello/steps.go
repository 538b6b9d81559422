package hello

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/kballard/go-shellquote"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
	"go.uber.org/zap"
)

// DeriveAccountAddress returns the address of the account created with the
// seed by base and owned by program. It's the same address the cluster
// derives for CreateAccountWithSeed.
func DeriveAccountAddress(base solana.PublicKey, seed string, program solana.PublicKey) (solana.PublicKey, error) {
	return solana.CreateWithSeed(base, seed, program)
}

// FeeBudget returns the number of lamports the payer should have: rent
// exemption for the greeted account plus fees for multiplier signatures.
func FeeBudget(rentExemption uint64, fees uint64, multiplier uint64) uint64 {
	return rentExemption + fees*multiplier
}

// EstablishConnection opens a cluster session and validates it.
func (r *Runner) EstablishConnection(ctx context.Context, s *State) error {
	ep, err := r.Loader.ResolveRPCEndpoint()
	if err != nil {
		return err
	}
	cl, err := r.Dial(ctx, ep)
	if err != nil {
		return err
	}
	s.Endpoint, s.Cluster = ep, cl

	v, err := cl.GetVersion(ctx)
	if err != nil {
		return err
	}
	r.Log.Info("connection to cluster established",
		zap.Stringer("endpoint", ep),
		zap.String("version", v.SolanaCore),
		zap.Any("feature-set", v.FeatureSet))
	return nil
}

// EstablishPayer loads the payer if not loaded yet and makes sure it can
// afford the run, requesting an airdrop for the shortfall otherwise.
func (r *Runner) EstablishPayer(ctx context.Context, s *State) error {
	var err error
	if s.Payer == nil {
		s.Payer, err = r.Loader.ResolvePayerIdentity()
		if err != nil {
			return err
		}
	}
	payer := s.Payer.PublicKey()

	fees, err := s.Cluster.GetRecentFeeParameters(ctx, payer)
	if err != nil {
		return err
	}
	rent, err := s.Cluster.GetMinimumBalanceForRentExemption(ctx, r.Program.AccountSize)
	if err != nil {
		return err
	}
	budget := FeeBudget(rent, fees.LamportsPerSignature, r.Program.FeeSignatureMultiplier)

	lamports, err := s.Cluster.GetBalance(ctx, payer)
	if err != nil {
		return err
	}
	if lamports < budget {
		r.Log.Info("requesting airdrop",
			zap.Stringer("payer", payer),
			zap.Uint64("lamports", budget-lamports))
		sig, err := s.Cluster.RequestAirdrop(ctx, payer, budget-lamports)
		if err != nil {
			return err
		}
		err = s.Cluster.ConfirmTransaction(ctx, sig)
		if err != nil {
			return err
		}
		lamports, err = s.Cluster.GetBalance(ctx, payer)
		if err != nil {
			return err
		}
	}
	s.Balance = lamports

	r.Log.Info("using account to pay for fees",
		zap.Stringer("payer", payer),
		zap.String("balance", fmt.Sprintf("%g SOL", float64(lamports)/float64(solana.LAMPORTS_PER_SOL))))
	return nil
}

// CheckProgram makes sure the program is deployed and the greeted account
// exists, creating it if needed.
func (r *Runner) CheckProgram(ctx context.Context, s *State) error {
	var (
		keyPath   = r.Program.KeypairPath()
		binPath   = r.Program.BinaryPath()
		deployCmd = shellquote.Join("solana", "program", "deploy", binPath)
	)
	programKey, err := r.Loader.LoadKeyPairFromFile(keyPath)
	if err != nil {
		return fmt.Errorf("%w; program may need to be deployed with `%s`", err, deployCmd)
	}
	s.ProgramID = programKey.PublicKey()

	info, err := s.Cluster.GetAccountInfo(ctx, s.ProgramID)
	if err != nil {
		return err
	}
	if info == nil {
		if _, statErr := os.Stat(binPath); statErr == nil {
			return fault.MissingAccount("program %s needs to be deployed with `%s`", s.ProgramID, deployCmd)
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return fault.File(statErr, "can't check program binary '%s'", binPath)
		}
		return fault.MissingAccount("program %s needs to be built and deployed, '%s' not found", s.ProgramID, binPath)
	}
	if !info.Executable {
		return fault.MissingAccount("program %s is not executable", s.ProgramID)
	}
	r.Log.Info("using program", zap.Stringer("program", s.ProgramID))

	payer := s.Payer.PublicKey()
	s.Account, err = DeriveAccountAddress(payer, r.Program.Seed, s.ProgramID)
	if err != nil {
		return fault.Config(err, "can't derive account address with seed %q", r.Program.Seed)
	}

	acc, err := s.Cluster.GetAccountInfo(ctx, s.Account)
	if err != nil {
		return err
	}
	if acc != nil {
		return nil
	}

	r.Log.Info("creating account", zap.Stringer("account", s.Account))
	lamports, err := s.Cluster.GetMinimumBalanceForRentExemption(ctx, r.Program.AccountSize)
	if err != nil {
		return err
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewCreateAccountWithSeedInstruction(
				payer,
				r.Program.Seed,
				lamports,
				r.Program.AccountSize,
				s.ProgramID,
				payer,
				s.Account,
				payer,
			).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return fmt.Errorf("can't build account creation transaction: %w", err)
	}
	sig, err := s.Cluster.SendAndConfirmTransaction(ctx, tx, s.Payer)
	if err != nil {
		return err
	}
	r.Log.Info("account created", zap.Stringer("account", s.Account), zap.Stringer("signature", sig))
	return nil
}

// RunProgram sends a single instruction with no data to the program, the
// greeted account is its only (writable) argument.
func (r *Runner) RunProgram(ctx context.Context, s *State) error {
	r.Log.Info("running program", zap.Stringer("program", s.ProgramID), zap.Stringer("account", s.Account))
	ix := solana.NewInstruction(
		s.ProgramID,
		solana.AccountMetaSlice{solana.NewAccountMeta(s.Account, true, false)},
		[]byte{},
	)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(s.Payer.PublicKey()))
	if err != nil {
		return fmt.Errorf("can't build program transaction: %w", err)
	}
	sig, err := s.Cluster.SendAndConfirmTransaction(ctx, tx, s.Payer)
	if err != nil {
		return err
	}
	r.Log.Info("program invoked", zap.Stringer("signature", sig))
	return nil
}

// GetAccountInfo reads the greeted account and reports it.
func (r *Runner) GetAccountInfo(ctx context.Context, s *State) error {
	info, err := s.Cluster.GetAccountInfo(ctx, s.Account)
	if err != nil {
		return err
	}
	if info == nil {
		return fault.MissingAccount("cannot find the account %s", s.Account)
	}
	s.AccountInfo = info
	if r.Out != nil {
		WriteAccountInfo(r.Out, s.Account, info)
	}
	return nil
}
