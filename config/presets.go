package config

import (
	"fmt"
	"strings"
)

type Preset string

const (
	PresetMainnet  Preset = "mainnet-beta"
	PresetDevnet   Preset = "devnet"
	PresetLocalnet Preset = "localnet"
	PresetCustom   Preset = "custom"
)

var presetURLs = map[Preset]string{
	PresetMainnet:  "https://api.mainnet-beta.solana.com",
	PresetDevnet:   "https://api.devnet.solana.com",
	PresetLocalnet: "http://127.0.0.1:8899",
}

// Presets lists the selectable endpoints in menu order.
func Presets() []Preset {
	return []Preset{PresetMainnet, PresetDevnet, PresetLocalnet, PresetCustom}
}

// PresetURL returns the endpoint of a preset. With a Helius API key, the
// public mainnet and devnet endpoints are swapped for Helius ones.
func PresetURL(p Preset, heliusKey string) string {
	if heliusKey != "" {
		switch p {
		case PresetMainnet:
			return fmt.Sprintf("https://mainnet.helius-rpc.com/?api-key=%s", heliusKey)
		case PresetDevnet:
			return fmt.Sprintf("https://devnet.helius-rpc.com/?api-key=%s", heliusKey)
		}
	}
	return presetURLs[p]
}

type Cluster string

const (
	ClusterMainnet  Cluster = "mainnet-beta"
	ClusterDevnet   Cluster = "devnet"
	ClusterTestnet  Cluster = "testnet"
	ClusterLocalnet Cluster = "localnet"
	ClusterCustom   Cluster = "custom"
)

// ClusterFromRPCURL guesses the cluster an endpoint serves from its URL.
func ClusterFromRPCURL(url string) Cluster {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "devnet"):
		return ClusterDevnet
	case strings.Contains(u, "testnet"):
		return ClusterTestnet
	case strings.Contains(u, "mainnet"):
		return ClusterMainnet
	case strings.Contains(u, "localhost"), strings.Contains(u, "127.0.0.1"):
		return ClusterLocalnet
	}
	return ClusterCustom
}
