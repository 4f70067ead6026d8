package model

import "strings"

// Network selects the chain the contract is deployed on.
type Network string

const (
	NetworkFoundry Network = "foundry"
	NetworkSepolia Network = "sepolia"
	NetworkMainnet Network = "mainnet"
)

func (n Network) String() string {
	return string(n)
}

// ChainID returns the EIP-155 chain id, or 0 for unknown networks.
func (n Network) ChainID() int64 {
	switch n {
	case NetworkFoundry:
		return 31337
	case NetworkSepolia:
		return 11155111
	case NetworkMainnet:
		return 1
	}
	return 0
}

// DefaultRPCURL is used when no RPC URL is configured.
func (n Network) DefaultRPCURL() string {
	switch n {
	case NetworkFoundry:
		return "http://127.0.0.1:8545"
	case NetworkSepolia:
		return "https://rpc.sepolia.org"
	case NetworkMainnet:
		return "https://cloudflare-eth.com"
	}
	return ""
}

// ParseNetwork accepts the selector case-insensitively.
func ParseNetwork(s string) (Network, bool) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	return n, n.ChainID() != 0
}
