// Package registry holds the static chain and DEX protocol tables used to
// recognize LP activity. Everything here is read-only after init.
package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lp-portfolio/internal/types"
)

// ChainConfig describes one supported network and its explorer API
type ChainConfig struct {
	Key         types.ChainKey `json:"key"`
	ID          string         `json:"id"` // hex chain id, e.g. "0x1"
	ChainID     int64          `json:"chainId"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"` // native currency symbol
	ExplorerAPI string         `json:"explorerApi"`
	ExplorerURL string         `json:"explorerUrl"`
	APIKey      string         `json:"-"`
	Icon        string         `json:"icon"`
	Color       string         `json:"color"`
}

var chainOrder = []types.ChainKey{
	types.ChainEthereum,
	types.ChainPolygon,
	types.ChainBase,
	types.ChainArbitrum,
	types.ChainOptimism,
	types.ChainBSC,
}

var chains = map[types.ChainKey]ChainConfig{
	types.ChainEthereum: {
		Key:         types.ChainEthereum,
		ID:          "0x1",
		ChainID:     1,
		Name:        "Ethereum",
		Symbol:      "ETH",
		ExplorerAPI: "https://api.etherscan.io/api",
		ExplorerURL: "https://etherscan.io",
		Icon:        "⟠",
		Color:       "#627EEA",
	},
	types.ChainPolygon: {
		Key:         types.ChainPolygon,
		ID:          "0x89",
		ChainID:     137,
		Name:        "Polygon",
		Symbol:      "MATIC",
		ExplorerAPI: "https://api.polygonscan.com/api",
		ExplorerURL: "https://polygonscan.com",
		Icon:        "⬡",
		Color:       "#8247E5",
	},
	types.ChainBase: {
		Key:         types.ChainBase,
		ID:          "0x2105",
		ChainID:     8453,
		Name:        "Base",
		Symbol:      "ETH",
		ExplorerAPI: "https://api.basescan.org/api",
		ExplorerURL: "https://basescan.org",
		Icon:        "🔵",
		Color:       "#0052FF",
	},
	types.ChainArbitrum: {
		Key:         types.ChainArbitrum,
		ID:          "0xa4b1",
		ChainID:     42161,
		Name:        "Arbitrum",
		Symbol:      "ETH",
		ExplorerAPI: "https://api.arbiscan.io/api",
		ExplorerURL: "https://arbiscan.io",
		Icon:        "◆",
		Color:       "#28A0F0",
	},
	types.ChainOptimism: {
		Key:         types.ChainOptimism,
		ID:          "0xa",
		ChainID:     10,
		Name:        "Optimism",
		Symbol:      "ETH",
		ExplorerAPI: "https://api-optimistic.etherscan.io/api",
		ExplorerURL: "https://optimistic.etherscan.io",
		Icon:        "○",
		Color:       "#FF0420",
	},
	types.ChainBSC: {
		Key:         types.ChainBSC,
		ID:          "0x38",
		ChainID:     56,
		Name:        "BNB Chain",
		Symbol:      "BNB",
		ExplorerAPI: "https://api.bscscan.com/api",
		ExplorerURL: "https://bscscan.com",
		Icon:        "◈",
		Color:       "#F3BA2F",
	},
}

// ChainKeys returns all supported chain keys in display order
func ChainKeys() []types.ChainKey {
	keys := make([]types.ChainKey, len(chainOrder))
	copy(keys, chainOrder)
	return keys
}

// Chains returns all chain configs in display order
func Chains() []ChainConfig {
	result := make([]ChainConfig, 0, len(chainOrder))
	for _, key := range chainOrder {
		result = append(result, chains[key])
	}
	return result
}

// ChainByKey looks up a chain by its key
func ChainByKey(key types.ChainKey) (ChainConfig, bool) {
	cfg, ok := chains[key]
	return cfg, ok
}

// ChainByName looks up a chain by key or display name, case-insensitively
func ChainByName(name string) (ChainConfig, bool) {
	key, ok := normalizeChain(name)
	if !ok {
		return ChainConfig{}, false
	}
	return chains[key], true
}

// ChainByID looks up a chain by hex ("0x89") or decimal ("137") chain id
func ChainByID(id string) (ChainConfig, bool) {
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return ChainConfig{}, false
	}

	var numeric int64
	var err error
	if strings.HasPrefix(id, "0x") {
		numeric, err = strconv.ParseInt(id[2:], 16, 64)
	} else {
		numeric, err = strconv.ParseInt(id, 10, 64)
	}
	if err != nil {
		return ChainConfig{}, false
	}
	return ChainByNumericID(numeric)
}

// ChainByNumericID looks up a chain by its numeric EIP-155 id
func ChainByNumericID(id int64) (ChainConfig, bool) {
	for _, key := range chainOrder {
		if chains[key].ChainID == id {
			return chains[key], true
		}
	}
	return ChainConfig{}, false
}

// IsChainSupported reports whether the hex or decimal chain id is supported
func IsChainSupported(id string) bool {
	_, ok := ChainByID(id)
	return ok
}

// SupportedChainIDs returns the hex ids of all supported chains
func SupportedChainIDs() []string {
	ids := make([]string, 0, len(chainOrder))
	for _, key := range chainOrder {
		ids = append(ids, chains[key].ID)
	}
	return ids
}

// ParseChainKeys converts a list of chain keys or names into chain keys.
// An empty list means every supported chain.
func ParseChainKeys(names []string) ([]types.ChainKey, error) {
	if len(names) == 0 {
		return ChainKeys(), nil
	}

	seen := make(map[types.ChainKey]bool, len(names))
	keys := make([]types.ChainKey, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key, ok := normalizeChain(name)
		if !ok {
			return nil, fmt.Errorf("unsupported chain: %s", name)
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// normalizeChain maps a chain key or display name onto its key
func normalizeChain(name string) (types.ChainKey, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if _, ok := chains[types.ChainKey(lower)]; ok {
		return types.ChainKey(lower), true
	}
	for _, key := range chainOrder {
		if strings.ToLower(chains[key].Name) == lower {
			return key, true
		}
	}
	// common aliases
	switch lower {
	case "bnb", "binance":
		return types.ChainBSC, true
	case "eth", "mainnet":
		return types.ChainEthereum, true
	}
	return "", false
}
