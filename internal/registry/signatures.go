package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lp-portfolio/internal/types"
)

// MethodSignature is a known 4-byte selector and the action it performs
type MethodSignature struct {
	Selector string       `json:"selector"`
	Name     string       `json:"name"`
	TxType   types.TxType `json:"txType"`
}

var methodSignatures = []MethodSignature{
	{"0xe8e33700", "addLiquidity", types.TxAddLiquidity},
	{"0xf305d719", "addLiquidityETH", types.TxAddLiquidity},
	{"0x4515cef3", "addLiquidityAVAX", types.TxAddLiquidity},
	{"0x0b4c7e4d", "add_liquidity", types.TxAddLiquidity},
	{"0x88316456", "mint", types.TxAddLiquidity},

	{"0xbaa2abde", "removeLiquidity", types.TxRemoveLiquidity},
	{"0x02751cec", "removeLiquidityETH", types.TxRemoveLiquidity},
	{"0x5b0d5984", "removeLiquidityETHWithPermit", types.TxRemoveLiquidity},
	{"0x1a4d01d2", "remove_liquidity_one_coin", types.TxRemoveLiquidity},
	{"0x0c49ccbe", "decreaseLiquidity", types.TxRemoveLiquidity},

	{"0xfc6f7865", "collect", types.TxCollectFees},

	{"0x38ed1739", "swapExactTokensForTokens", types.TxSwap},
	{"0x7ff36ab5", "swapExactETHForTokens", types.TxSwap},
	{"0x18cbafe5", "swapExactTokensForETH", types.TxSwap},
}

var selectorIndex = func() map[string]MethodSignature {
	index := make(map[string]MethodSignature, len(methodSignatures))
	for _, sig := range methodSignatures {
		index[sig.Selector] = sig
	}
	return index
}()

// MethodSignatures returns the known selector table
func MethodSignatures() []MethodSignature {
	out := make([]MethodSignature, len(methodSignatures))
	copy(out, methodSignatures)
	return out
}

// MethodID returns the lower-cased 4-byte selector prefix of calldata,
// or "" when the input is shorter than a selector.
func MethodID(input string) string {
	if len(input) < 10 {
		return ""
	}
	return strings.ToLower(input[:10])
}

// LookupMethod resolves a selector (or full calldata) to its signature
func LookupMethod(input string) (MethodSignature, bool) {
	sig, ok := selectorIndex[MethodID(input)]
	return sig, ok
}

// LP event signatures, keyed by the name used in log queries
var eventSignatures = map[string]string{
	"Mint":               "Mint(address,uint256,uint256)",
	"Burn":               "Burn(address,uint256,uint256,address)",
	"MintV3":             "Mint(address,address,int24,int24,uint128,uint256,uint256)",
	"BurnV3":             "Burn(address,int24,int24,uint128,uint256,uint256)",
	"Collect":            "Collect(address,address,int24,int24,uint128,uint128)",
	"AddLiquidity":       "AddLiquidity(address,uint256[],uint256[],uint256,uint256)",
	"RemoveLiquidity":    "RemoveLiquidity(address,uint256[],uint256[],uint256)",
	"PoolBalanceChanged": "PoolBalanceChanged(bytes32,address,address[],int256[],uint256[])",
	"Transfer":           "Transfer(address,address,uint256)",
}

var eventTopics = func() map[string]string {
	topics := make(map[string]string, len(eventSignatures))
	for name, sig := range eventSignatures {
		topics[name] = crypto.Keccak256Hash([]byte(sig)).Hex()
	}
	return topics
}()

// EventTopic returns topic0 for a named LP event
func EventTopic(name string) (string, bool) {
	topic, ok := eventTopics[name]
	return topic, ok
}

// EventTopics returns a copy of all named LP event topics
func EventTopics() map[string]string {
	out := make(map[string]string, len(eventTopics))
	for k, v := range eventTopics {
		out[k] = v
	}
	return out
}

// LPProbeSelectors are view calls whose presence marks a pool token contract
var LPProbeSelectors = map[string][]string{
	"uniswapV2": {"0x0dfe1681", "0xd21220a7"}, // token0(), token1()
	"balancer":  {"0xf3b9569f"},               // getPoolId()
	"curve":     {"0xb4b577ad"},               // coins(uint256)
}
