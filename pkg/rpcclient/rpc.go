package rpcclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
	"go.uber.org/zap"
)

// FeeParameters are the current cluster fee settings.
type FeeParameters struct {
	LamportsPerSignature uint64
}

// GetVersion returns the version of the node software, it's the cheapest
// way to check connectivity.
func (c *Client) GetVersion(ctx context.Context) (*rpc.GetVersionResult, error) {
	v, err := c.rpc.GetVersion(ctx)
	if err != nil {
		return nil, fault.Connectivity(err, "can't get version from %s", c.endpoint)
	}
	return v, nil
}

// GetBalance returns the balance of the account in lamports.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, account, c.opts.Commitment)
	if err != nil {
		return 0, fault.Connectivity(err, "can't get balance of %s", account)
	}
	return res.Value, nil
}

// GetMinimumBalanceForRentExemption returns the number of lamports that
// makes an account of the given size rent exempt.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, c.opts.Commitment)
	if err != nil {
		return 0, fault.Connectivity(err, "can't get rent exemption for %d bytes", size)
	}
	return lamports, nil
}

// GetRecentFeeParameters returns the current fee per signature. The node is
// asked for the fee of a single-signature sample message paid by feePayer,
// the message is never sent.
func (c *Client) GetRecentFeeParameters(ctx context.Context, feePayer solana.PublicKey) (FeeParameters, error) {
	bh, err := c.getLatestBlockhash(ctx)
	if err != nil {
		return FeeParameters{}, err
	}
	sample, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(0, feePayer, feePayer).Build()},
		bh,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return FeeParameters{}, fmt.Errorf("can't build fee sample message: %w", err)
	}
	msg, err := sample.Message.MarshalBinary()
	if err != nil {
		return FeeParameters{}, fmt.Errorf("can't encode fee sample message: %w", err)
	}
	res, err := c.rpc.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(msg), c.opts.Commitment)
	if err != nil {
		return FeeParameters{}, fault.Connectivity(err, "can't get fee for message")
	}
	if res == nil || res.Value == nil {
		return FeeParameters{}, fault.Connectivity(nil, "node returned no fee for the sample message")
	}
	sigs := uint64(sample.Message.Header.NumRequiredSignatures)
	if sigs == 0 {
		sigs = 1
	}
	return FeeParameters{LamportsPerSignature: *res.Value / sigs}, nil
}

// RequestAirdrop asks the cluster to credit the account, use ConfirmTransaction
// to wait for the result.
func (c *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, account, lamports, c.opts.Commitment)
	if err != nil {
		return solana.Signature{}, c.rejected(err, "airdrop of %d lamports to %s failed", lamports, account)
	}
	c.log.Debug("airdrop requested", zap.Stringer("signature", sig), zap.Uint64("lamports", lamports))
	return sig, nil
}

// ConfirmTransaction blocks until the transaction reaches the client's
// commitment level, AwaitTimeout at most.
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.AwaitTimeout)
	defer cancel()
	return c.waiter.Wait(ctx, sig)
}

// GetAccountInfo returns the account state or nil if there is no such
// account.
func (c *Client) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.Account, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: c.opts.Commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fault.Connectivity(err, "can't get account %s", account)
	}
	if res == nil || res.Value == nil {
		return nil, nil
	}
	return res.Value, nil
}

// SendAndConfirmTransaction sets a fresh recent blockhash, signs the
// transaction with the signers given, sends it and waits for it to be
// confirmed.
func (c *Client) SendAndConfirmTransaction(ctx context.Context, tx *solana.Transaction, signers ...solana.PrivateKey) (solana.Signature, error) {
	bh, err := c.getLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}
	tx.Message.RecentBlockhash = bh
	tx.Signatures = nil
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.opts.Commitment,
	})
	if err != nil {
		return solana.Signature{}, c.rejected(err, "failed to send transaction")
	}
	c.log.Debug("transaction sent", zap.Stringer("signature", sig))
	return sig, c.ConfirmTransaction(ctx, sig)
}

func (c *Client) getLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
	if err != nil {
		return solana.Hash{}, fault.Connectivity(err, "can't get latest blockhash")
	}
	if res == nil || res.Value == nil {
		return solana.Hash{}, fault.Connectivity(nil, "node returned no blockhash")
	}
	return res.Value.Blockhash, nil
}

// rejected converts node-reported errors into fault.ErrTransaction, anything
// else is a connectivity problem.
func (c *Client) rejected(err error, format string, args ...any) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return fault.Connectivity(err, format, args...)
	}
	reason := rpcErr.Message
	if data, ok := rpcErr.Data.(map[string]any); ok {
		if txErr, ok := data["err"]; ok && txErr != nil {
			if b, mErr := json.Marshal(txErr); mErr == nil {
				reason += " (" + string(b) + ")"
			}
		}
		if logs, ok := data["logs"]; ok {
			c.log.Debug("transaction logs", zap.Any("logs", logs))
		}
	}
	return fault.Transaction(reason, nil, format, args...)
}
