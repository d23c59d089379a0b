package chain

import (
	"sort"
	"strings"
)

// DefaultNetwork is used when no chain name is configured.
const DefaultNetwork = "mainnet"

// Network describes an EVM chain the checker can read from.
type Network struct {
	Name          string
	ChainID       int64
	DefaultRPCURL string
}

var networks = map[string]Network{
	"mainnet":      {Name: "mainnet", ChainID: 1, DefaultRPCURL: "https://cloudflare-eth.com"},
	"polygon":      {Name: "polygon", ChainID: 137, DefaultRPCURL: "https://polygon-rpc.com"},
	"base":         {Name: "base", ChainID: 8453, DefaultRPCURL: "https://mainnet.base.org"},
	"optimism":     {Name: "optimism", ChainID: 10, DefaultRPCURL: "https://mainnet.optimism.io"},
	"arbitrum":     {Name: "arbitrum", ChainID: 42161, DefaultRPCURL: "https://arb1.arbitrum.io/rpc"},
	"sepolia":      {Name: "sepolia", ChainID: 11155111, DefaultRPCURL: "https://rpc.sepolia.org"},
	"base-sepolia": {Name: "base-sepolia", ChainID: 84532, DefaultRPCURL: "https://sepolia.base.org"},
	"localhost":    {Name: "localhost", ChainID: 31337, DefaultRPCURL: "http://127.0.0.1:8545"},
}

// LookupNetwork resolves a chain by name, case-insensitively. An empty name
// resolves to DefaultNetwork.
func LookupNetwork(name string) (Network, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultNetwork
	}
	network, ok := networks[name]
	return network, ok
}

// NetworkNames lists the supported chain names in sorted order.
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
