package waiter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
)

// DefaultPollInterval is used if PollConfig doesn't specify one.
const DefaultPollInterval = 500 * time.Millisecond

type (
	// Waiter is an interface providing transaction awaiting functionality.
	Waiter interface {
		// Wait blocks until the transaction with the given signature reaches
		// the configured commitment. It returns fault.ErrTransaction error if
		// the transaction failed, fault.ErrConfirmationTimeout one if ctx is
		// done before that and fault.ErrConnectivity one on the first failed
		// request to the node.
		Wait(ctx context.Context, sig solana.Signature) error
	}
	// RPCPollingBased is an interface that enables transaction awaiting
	// functionality based on periodical signature status polls.
	RPCPollingBased interface {
		GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	}
	// Subscription is a single signature notification subscription.
	Subscription interface {
		Recv(ctx context.Context) (*ws.SignatureResult, error)
		Unsubscribe()
	}
	// RPCEventBased is an interface that enables improved transaction awaiting
	// functionality based on web-socket signature notifications. RPCEventBased
	// contains RPCPollingBased under the hood to check the status once after
	// subscribing.
	RPCEventBased interface {
		RPCPollingBased

		SubscribeSignature(sig solana.Signature, commitment rpc.CommitmentType) (Subscription, error)
	}
)

// Config is a unified configuration for [Waiter] implementations.
type Config struct {
	PollConfig
	// Commitment is the level transaction should reach, confirmed by default.
	Commitment rpc.CommitmentType
}

// PollConfig is a configuration for PollingBased waiter.
type PollConfig struct {
	// PollInterval is a time interval between subsequent polls.
	PollInterval time.Duration
}

// PollingBased is a polling-based Waiter.
type PollingBased struct {
	polling RPCPollingBased
	config  Config
}

// EventBased is a websocket-based Waiter.
type EventBased struct {
	ws      RPCEventBased
	polling *PollingBased
}

// NewPollingBased creates an instance of Waiter supporting poll-based
// transaction awaiting. Unset config values are replaced with defaults.
func NewPollingBased(waiter RPCPollingBased, config Config) *PollingBased {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Commitment == "" {
		config.Commitment = rpc.CommitmentConfirmed
	}
	return &PollingBased{
		polling: waiter,
		config:  config,
	}
}

// NewEventBased creates an instance of Waiter supporting websocket event-based
// transaction awaiting.
func NewEventBased(waiter RPCEventBased, config Config) *EventBased {
	return &EventBased{
		ws:      waiter,
		polling: NewPollingBased(waiter, config),
	}
}

// Wait implements Waiter interface.
func (w *PollingBased) Wait(ctx context.Context, sig solana.Signature) error {
	timer := time.NewTicker(w.config.PollInterval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			done, err := w.poll(ctx, sig)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case <-ctx.Done():
			return timeout(ctx, sig)
		}
	}
}

// poll checks the signature status once, it returns true if the required
// commitment is reached.
func (w *PollingBased) poll(ctx context.Context, sig solana.Signature) (bool, error) {
	res, err := w.polling.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		if ctx.Err() != nil {
			return false, timeout(ctx, sig)
		}
		return false, fault.Connectivity(err, "failed to retrieve status of transaction %s", sig)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}
	st := res.Value[0]
	if st.Err != nil {
		return false, failed(sig, st.Err)
	}
	status := st.ConfirmationStatus
	if status == "" && st.Confirmations == nil {
		// Old nodes don't report status, nil confirmations mean rooted.
		status = rpc.ConfirmationStatusFinalized
	}
	return rank(string(status)) >= rank(string(w.config.Commitment)), nil
}

// Wait implements Waiter interface.
func (w *EventBased) Wait(ctx context.Context, sig solana.Signature) error {
	sub, err := w.ws.SubscribeSignature(sig, w.polling.config.Commitment)
	if err != nil {
		return fault.Connectivity(err, "failed to subscribe to transaction %s", sig)
	}
	defer sub.Unsubscribe()

	// There is a potential race between subscription and acceptance, so
	// do a polling check once _after_ the subscription.
	done, err := w.polling.poll(ctx, sig)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	res, err := sub.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return timeout(ctx, sig)
		}
		return fault.Connectivity(err, "subscription to transaction %s is broken", sig)
	}
	if res != nil && res.Value.Err != nil {
		return failed(sig, res.Value.Err)
	}
	return nil
}

func timeout(ctx context.Context, sig solana.Signature) error {
	return fault.ConfirmationTimeout(ctx.Err(), "transaction %s was not confirmed", sig)
}

func failed(sig solana.Signature, reason any) error {
	var r string
	if b, err := json.Marshal(reason); err == nil {
		r = string(b)
	} else {
		r = fmt.Sprint(reason)
	}
	return fault.Transaction(r, nil, "transaction %s failed", sig)
}

func rank(commitment string) int {
	switch commitment {
	case string(rpc.CommitmentProcessed):
		return 1
	case string(rpc.CommitmentConfirmed):
		return 2
	case string(rpc.CommitmentFinalized):
		return 3
	}
	return 0
}
