package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/takutoez/solana-node-hello-world/pkg/fault"
)

// Endpoint is a pair of cluster RPC and websocket URLs.
type Endpoint struct {
	// Name is the cluster moniker if the endpoint was given by name.
	Name string
	RPC  string
	WS   string
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.RPC
}

var clusters = map[string]rpc.Cluster{
	"mainnet-beta": rpc.MainNetBeta,
	"mainnet":      rpc.MainNetBeta,
	"m":            rpc.MainNetBeta,
	"testnet":      rpc.TestNet,
	"t":            rpc.TestNet,
	"devnet":       rpc.DevNet,
	"d":            rpc.DevNet,
	"localnet":     rpc.LocalNet,
	"localhost":    rpc.LocalNet,
	"l":            rpc.LocalNet,
}

// ParseEndpoint turns a cluster name or an http(s) URL into an Endpoint.
// ws overrides the websocket URL, if empty it's the cluster's one or derived
// from the RPC URL.
func ParseEndpoint(target string, ws string) (Endpoint, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Endpoint{}, fault.Config(nil, "empty RPC endpoint")
	}
	if c, ok := clusters[strings.ToLower(target)]; ok {
		ep := Endpoint{Name: c.Name, RPC: c.RPC, WS: c.WS}
		if ws != "" {
			ep.WS = ws
		}
		return ep, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return Endpoint{}, fault.Config(err, "invalid RPC endpoint %q", target)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fault.Config(nil, "invalid RPC endpoint %q: unsupported scheme %q", target, u.Scheme)
	}
	if u.Host == "" {
		return Endpoint{}, fault.Config(nil, "invalid RPC endpoint %q: no host", target)
	}
	if ws == "" {
		ws = WebsocketURL(u)
	} else if _, err := url.Parse(ws); err != nil {
		return Endpoint{}, fault.Config(err, "invalid websocket endpoint %q", ws)
	}
	return Endpoint{RPC: u.String(), WS: ws}, nil
}

// WebsocketURL derives the websocket endpoint from the RPC one: the scheme
// is switched to ws(s) and the port, if any, is incremented.
func WebsocketURL(u *url.URL) string {
	ws := *u
	if u.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}
	if port := u.Port(); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			ws.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(p+1))
		}
	}
	return ws.String()
}
