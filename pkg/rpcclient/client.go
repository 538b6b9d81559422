/*
Package rpcclient implements a client session to a Solana cluster node.

It wraps JSON-RPC and websocket clients of the solana-go library, translates
their failures into the fault taxonomy and adds transaction confirmation
awaiting on top of them.
*/
package rpcclient

import (
	"context"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/takutoez/solana-node-hello-world/pkg/config"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
	"github.com/takutoez/solana-node-hello-world/pkg/rpcclient/waiter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultDialTimeout = 4 * time.Second

// Client represents the middleman for executing JSON-RPC calls to a remote
// Solana node. It's created once and used by a single execution path.
type Client struct {
	rpc      *rpc.Client
	ws       *ws.Client
	endpoint config.Endpoint
	opts     Options
	log      *zap.Logger
	waiter   waiter.Waiter
}

// Options defines options for the RPC client. All values are optional.
type Options struct {
	// Commitment is used for queries and confirmations, "confirmed" by default.
	Commitment rpc.CommitmentType
	// AwaitTimeout limits every confirmation wait, 90 seconds by default.
	AwaitTimeout time.Duration
	// PollInterval is the interval between signature status polls.
	PollInterval time.Duration
	// DialTimeout limits websocket connection establishment.
	DialTimeout time.Duration
	// RequestsPerSecond limits the rate of RPC requests, no limit by default.
	RequestsPerSecond float64
	// DisableWebsocket makes confirmations use polling only.
	DisableWebsocket bool
	// Logger is used for diagnostic messages, no logging by default.
	Logger *zap.Logger
}

// New returns a new Client ready to use. Websocket connection is established
// if possible, otherwise polling is used to await transactions. Use GetVersion
// to check that the node is actually reachable.
func New(ctx context.Context, endpoint config.Endpoint, opts Options) (*Client, error) {
	u, err := url.Parse(endpoint.RPC)
	if err != nil || u.Host == "" {
		return nil, fault.Connectivity(err, "invalid RPC endpoint %q", endpoint.RPC)
	}
	if opts.Commitment == "" {
		opts.Commitment = config.DefaultCommitment
	}
	if opts.AwaitTimeout <= 0 {
		opts.AwaitTimeout = config.DefaultAwaitTimeout
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Client{
		endpoint: endpoint,
		opts:     opts,
		log:      opts.Logger,
	}
	if opts.RequestsPerSecond > 0 {
		every := time.Duration(float64(time.Second) / opts.RequestsPerSecond)
		c.rpc = rpc.NewWithCustomRPCClient(rpc.NewWithLimiter(endpoint.RPC, rate.Every(every), 1))
	} else {
		c.rpc = rpc.New(endpoint.RPC)
	}

	wcfg := waiter.Config{
		PollConfig: waiter.PollConfig{PollInterval: opts.PollInterval},
		Commitment: opts.Commitment,
	}
	if !opts.DisableWebsocket && endpoint.WS != "" {
		dctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		c.ws, err = ws.Connect(dctx, endpoint.WS)
		if err != nil {
			c.log.Warn("websocket is not available, falling back to polling",
				zap.String("endpoint", endpoint.WS), zap.Error(err))
			c.ws = nil
		}
	}
	if c.ws != nil {
		c.waiter = waiter.NewEventBased(c, wcfg)
	} else {
		c.waiter = waiter.NewPollingBased(c, wcfg)
	}
	return c, nil
}

// Close closes websocket connection and unused underlying network connections.
func (c *Client) Close() {
	if c.ws != nil {
		c.ws.Close()
	}
	_ = c.rpc.Close()
}

// GetSignatureStatuses implements waiter.RPCPollingBased interface.
func (c *Client) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return c.rpc.GetSignatureStatuses(ctx, searchTransactionHistory, sigs...)
}

// SubscribeSignature implements waiter.RPCEventBased interface.
func (c *Client) SubscribeSignature(sig solana.Signature, commitment rpc.CommitmentType) (waiter.Subscription, error) {
	if c.ws == nil {
		return nil, fault.Connectivity(nil, "no websocket connection")
	}
	sub, err := c.ws.SignatureSubscribe(sig, commitment)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
