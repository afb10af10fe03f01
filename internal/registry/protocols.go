package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lp-portfolio/internal/types"
)

// ProtocolType is the pool design family of a DEX
type ProtocolType string

const (
	ProtocolAMM          ProtocolType = "amm"
	ProtocolConcentrated ProtocolType = "concentrated"
	ProtocolStableswap   ProtocolType = "stableswap"
	ProtocolWeighted     ProtocolType = "weighted"
	ProtocolUnknown      ProtocolType = "unknown"
)

// UnknownProtocolKey is the key of the fallback protocol sentinel
const UnknownProtocolKey = "unknown"

// ProtocolMetadata describes a DEX protocol and its known contracts
type ProtocolMetadata struct {
	Key       string                                  `json:"key"`
	Name      string                                  `json:"name"`
	Type      ProtocolType                            `json:"type"`
	NFTBased  bool                                    `json:"nftBased"`
	Chains    []types.ChainKey                        `json:"chains"`
	Contracts map[types.ChainKey]map[string]string `json:"contracts"` // chain -> role -> address
	Logo      string                                  `json:"logo"`
	Color     string                                  `json:"color"`
}

// IsUnknown reports whether this is the Unknown DEX sentinel
func (p ProtocolMetadata) IsUnknown() bool {
	return p.Key == UnknownProtocolKey
}

var allMainChains = []types.ChainKey{
	types.ChainEthereum,
	types.ChainPolygon,
	types.ChainArbitrum,
	types.ChainOptimism,
	types.ChainBase,
}

var protocolOrder = []string{
	"uniswapV2",
	"uniswapV3",
	"sushiswap",
	"curve",
	"balancerV2",
	"pancakeswap",
	"aerodrome",
}

var protocols = map[string]ProtocolMetadata{
	"uniswapV2": {
		Key:    "uniswapV2",
		Name:   "Uniswap V2",
		Type:   ProtocolAMM,
		Chains: allMainChains,
		Contracts: map[types.ChainKey]map[string]string{
			types.ChainEthereum: {
				"factory": "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
				"router":  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
			},
			types.ChainPolygon: {
				"factory": "0x5757371414417b8C6CAad45bAeF941aBc7d3Ab32",
				"router":  "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff",
			},
		},
		Logo:  "🦄",
		Color: "#FF007A",
	},
	"uniswapV3": {
		Key:      "uniswapV3",
		Name:     "Uniswap V3",
		Type:     ProtocolConcentrated,
		NFTBased: true,
		Chains:   allMainChains,
		Contracts: map[types.ChainKey]map[string]string{
			types.ChainEthereum: {
				"factory":         "0x1F98431c8aD98523631AE4a59f267346ea31F984",
				"positionManager": "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
			},
			types.ChainPolygon: {
				"factory":         "0x1F98431c8aD98523631AE4a59f267346ea31F984",
				"positionManager": "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
			},
		},
		Logo:  "🦄",
		Color: "#FF007A",
	},
	"sushiswap": {
		Key:    "sushiswap",
		Name:   "SushiSwap",
		Type:   ProtocolAMM,
		Chains: allMainChains,
		Contracts: map[types.ChainKey]map[string]string{
			types.ChainEthereum: {
				"factory": "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
				"router":  "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
			},
			types.ChainPolygon: {
				"factory": "0xc35DADB65012eC5796536bD9864eD8773aBc74C4",
				"router":  "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506",
			},
		},
		Logo:  "🍣",
		Color: "#FA52A0",
	},
	"curve": {
		Key:  "curve",
		Name: "Curve Finance",
		Type: ProtocolStableswap,
		Chains: []types.ChainKey{
			types.ChainEthereum,
			types.ChainPolygon,
			types.ChainArbitrum,
			types.ChainOptimism,
		},
		Contracts: map[types.ChainKey]map[string]string{
			types.ChainEthereum: {
				"registry":        "0x90E00ACe148ca3b23Ac1bC8C240C2a7Dd9c2d7f5",
				"addressProvider": "0x0000000022D53366457F9d5E68Ec105046FC4383",
			},
		},
		Logo:  "🌊",
		Color: "#40649F",
	},
	"balancerV2": {
		Key:    "balancerV2",
		Name:   "Balancer V2",
		Type:   ProtocolWeighted,
		Chains: allMainChains,
		Contracts: map[types.ChainKey]map[string]string{
			types.ChainEthereum: {
				"vault": "0xBA12222222228d8Ba445958a75a0704d566BF2C8",
			},
			types.ChainPolygon: {
				"vault": "0xBA12222222228d8Ba445958a75a0704d566BF2C8",
			},
		},
		Logo:  "⚖️",
		Color: "#1E1E1E",
	},
	"pancakeswap": {
		Key:    "pancakeswap",
		Name:   "PancakeSwap",
		Type:   ProtocolAMM,
		Chains: []types.ChainKey{types.ChainBSC, types.ChainEthereum},
		Contracts: map[types.ChainKey]map[string]string{
			types.ChainBSC: {
				"factory": "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73",
				"router":  "0x10ED43C718714eb63d5aA57B78B54704E256024E",
			},
		},
		Logo:  "🥞",
		Color: "#D1884F",
	},
	"aerodrome": {
		Key:    "aerodrome",
		Name:   "Aerodrome",
		Type:   ProtocolAMM,
		Chains: []types.ChainKey{types.ChainBase},
		Contracts: map[types.ChainKey]map[string]string{
			types.ChainBase: {
				"factory": "0x420DD381b31aEf6683db6B902084cB0FFECe40Da",
				"router":  "0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43",
			},
		},
		Logo:  "✈️",
		Color: "#0047FF",
	},
}

// contractIndex maps chain -> lowercased contract address -> protocol key
var contractIndex = buildContractIndex()

func buildContractIndex() map[types.ChainKey]map[string]string {
	index := make(map[types.ChainKey]map[string]string)
	for _, key := range protocolOrder {
		for chain, roles := range protocols[key].Contracts {
			if index[chain] == nil {
				index[chain] = make(map[string]string)
			}
			for _, addr := range roles {
				lower := strings.ToLower(addr)
				// first protocol in order keeps a shared address
				if _, exists := index[chain][lower]; !exists {
					index[chain][lower] = key
				}
			}
		}
	}
	return index
}

// Protocols returns every known protocol in registry order
func Protocols() []ProtocolMetadata {
	result := make([]ProtocolMetadata, 0, len(protocolOrder))
	for _, key := range protocolOrder {
		result = append(result, protocols[key])
	}
	return result
}

// Lookup returns protocol metadata by key
func Lookup(key string) (ProtocolMetadata, bool) {
	p, ok := protocols[key]
	return p, ok
}

// ProtocolsByChain returns the protocols deployed on a chain (key or display name)
func ProtocolsByChain(chain string) []ProtocolMetadata {
	key, ok := normalizeChain(chain)
	if !ok {
		return nil
	}

	var result []ProtocolMetadata
	for _, pk := range protocolOrder {
		for _, c := range protocols[pk].Chains {
			if c == key {
				result = append(result, protocols[pk])
				break
			}
		}
	}
	return result
}

// MatchContract finds the protocol owning a contract address on a chain.
// The chain may be given as key ("ethereum") or display name ("Ethereum").
// Matching is exact and case-insensitive over every contract role.
func MatchContract(address, chain string) (ProtocolMetadata, bool) {
	if !common.IsHexAddress(address) {
		return ProtocolMetadata{}, false
	}
	key, ok := normalizeChain(chain)
	if !ok {
		return ProtocolMetadata{}, false
	}

	pk, ok := contractIndex[key][strings.ToLower(address)]
	if !ok {
		return ProtocolMetadata{}, false
	}
	return protocols[pk], true
}

// UnknownProtocol returns the sentinel used when no protocol can be resolved
func UnknownProtocol() ProtocolMetadata {
	return ProtocolMetadata{
		Key:   UnknownProtocolKey,
		Name:  "Unknown DEX",
		Type:  ProtocolUnknown,
		Logo:  "🔄",
		Color: "#888888",
	}
}

// nameFragments is checked in order; the first hit wins so V3 shadows V2
var nameFragments = []struct {
	key       string
	fragments []string
}{
	{"uniswapV3", []string{"uniswap v3", "uni-v3"}},
	{"uniswapV2", []string{"uniswap", "uni-v2"}},
	{"sushiswap", []string{"sushi"}},
	{"curve", []string{"curve", "crv"}},
	{"balancerV2", []string{"balancer", "bpt"}},
	{"pancakeswap", []string{"pancake", "cake"}},
	{"aerodrome", []string{"aerodrome"}},
}

// ProtocolFromName resolves a protocol from an LP token's name and symbol
func ProtocolFromName(name, symbol string) ProtocolMetadata {
	text := strings.ToLower(name + " " + symbol)
	for _, nf := range nameFragments {
		for _, fragment := range nf.fragments {
			if strings.Contains(text, fragment) {
				return protocols[nf.key]
			}
		}
	}
	return UnknownProtocol()
}
