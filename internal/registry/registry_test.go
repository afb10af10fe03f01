package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lp-portfolio/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainLookups(t *testing.T) {
	tests := []struct {
		name    string
		lookup  func() (ChainConfig, bool)
		wantKey types.ChainKey
		wantOK  bool
	}{
		{"by key", func() (ChainConfig, bool) { return ChainByKey(types.ChainPolygon) }, types.ChainPolygon, true},
		{"by display name", func() (ChainConfig, bool) { return ChainByName("BNB Chain") }, types.ChainBSC, true},
		{"by name case insensitive", func() (ChainConfig, bool) { return ChainByName("ARBITRUM") }, types.ChainArbitrum, true},
		{"by hex id", func() (ChainConfig, bool) { return ChainByID("0x2105") }, types.ChainBase, true},
		{"by decimal id", func() (ChainConfig, bool) { return ChainByID("10") }, types.ChainOptimism, true},
		{"by upper hex id", func() (ChainConfig, bool) { return ChainByID("0xA4B1") }, types.ChainArbitrum, true},
		{"unknown id", func() (ChainConfig, bool) { return ChainByID("0x999") }, "", false},
		{"garbage id", func() (ChainConfig, bool) { return ChainByID("mainnet") }, "", false},
		{"unknown name", func() (ChainConfig, bool) { return ChainByName("solana") }, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := tt.lookup()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKey, cfg.Key)
		})
	}
}

func TestChainTable(t *testing.T) {
	require.Len(t, Chains(), 6)
	assert.Equal(t, []string{"0x1", "0x89", "0x2105", "0xa4b1", "0xa", "0x38"}, SupportedChainIDs())
	assert.True(t, IsChainSupported("0x89"))
	assert.True(t, IsChainSupported("56"))
	assert.False(t, IsChainSupported("0x0"))

	for _, c := range Chains() {
		assert.NotEmpty(t, c.ExplorerAPI, c.Name)
		assert.NotEmpty(t, c.Symbol, c.Name)
		assert.Equal(t, hexutil.EncodeUint64(uint64(c.ChainID)), c.ID, c.Name)
	}
}

func TestParseChainKeys(t *testing.T) {
	keys, err := ParseChainKeys(nil)
	require.NoError(t, err)
	assert.Equal(t, ChainKeys(), keys)

	keys, err = ParseChainKeys([]string{"Ethereum", "eth", " base ", ""})
	require.NoError(t, err)
	assert.Equal(t, []types.ChainKey{types.ChainEthereum, types.ChainBase}, keys)

	_, err = ParseChainKeys([]string{"solana"})
	assert.EqualError(t, err, "unsupported chain: solana")
}

func TestMatchContract(t *testing.T) {
	tests := []struct {
		name    string
		address string
		chain   string
		wantKey string
		wantOK  bool
	}{
		{"uniswap v2 router by key", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", "ethereum", "uniswapV2", true},
		{"lowercase address by display name", "0x7a250d5630b4cf539739df2c5dacb4c659f2488d", "Ethereum", "uniswapV2", true},
		{"v3 position manager", "0xC36442b4a4522E871399CD717aBDD847Ab11FE88", "polygon", "uniswapV3", true},
		{"balancer vault", "0xba12222222228d8ba445958a75a0704d566bf2c8", "Polygon", "balancerV2", true},
		{"curve address provider", "0x0000000022D53366457F9d5E68Ec105046FC4383", "ethereum", "curve", true},
		{"pancake router on bsc", "0x10ED43C718714eb63d5aA57B78B54704E256024E", "BNB Chain", "pancakeswap", true},
		{"aerodrome on base", "0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43", "base", "aerodrome", true},
		{"router on wrong chain", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", "arbitrum", "", false},
		{"unknown address", "0x000000000000000000000000000000000000dEaD", "ethereum", "", false},
		{"not an address", "router", "ethereum", "", false},
		{"unknown chain", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", "solana", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := MatchContract(tt.address, tt.chain)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKey, p.Key)
		})
	}
}

func TestProtocolsByChain(t *testing.T) {
	keys := func(ps []ProtocolMetadata) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Key)
		}
		return out
	}

	assert.Equal(t, []string{"pancakeswap"}, keys(ProtocolsByChain("bsc")))
	assert.Equal(t, []string{"uniswapV2", "uniswapV3", "sushiswap", "balancerV2", "aerodrome"}, keys(ProtocolsByChain("Base")))
	assert.Nil(t, ProtocolsByChain("solana"))
}

func TestLookupAndNFTFlag(t *testing.T) {
	for _, p := range Protocols() {
		got, ok := Lookup(p.Key)
		require.True(t, ok)
		assert.Equal(t, p.Key == "uniswapV3", got.NFTBased, p.Key)
	}
	_, ok := Lookup("missing")
	assert.False(t, ok)
}

func TestProtocolFromName(t *testing.T) {
	tests := []struct {
		name, symbol string
		want         string
	}{
		{"Uniswap V3 Positions NFT-V1", "UNI-V3-POS", "uniswapV3"},
		{"Uniswap V2", "UNI-V2", "uniswapV2"},
		{"SushiSwap LP Token", "SLP", "sushiswap"},
		{"Curve.fi DAI/USDC/USDT", "3Crv", "curve"},
		{"Balancer 80 BAL 20 WETH", "B-80BAL-20WETH", "balancerV2"},
		{"Pancake LPs", "Cake-LP", "pancakeswap"},
		{"Aerodrome vAMM", "vAMM-WETH/USDC", "aerodrome"},
		{"Random Token", "RND", UnknownProtocolKey},
		{"", "", UnknownProtocolKey},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, ProtocolFromName(tt.name, tt.symbol).Key)
		})
	}

	unknown := UnknownProtocol()
	assert.True(t, unknown.IsUnknown())
	assert.Equal(t, "Unknown DEX", unknown.Name)
	assert.Equal(t, "🔄", unknown.Logo)
	assert.Equal(t, "#888888", unknown.Color)
}

func TestMethodSelectorsMatchKeccak(t *testing.T) {
	signatures := map[string]string{
		"0xe8e33700": "addLiquidity(address,address,uint256,uint256,uint256,uint256,address,uint256)",
		"0xf305d719": "addLiquidityETH(address,uint256,uint256,uint256,address,uint256)",
		"0xbaa2abde": "removeLiquidity(address,address,uint256,uint256,uint256,address,uint256)",
		"0x38ed1739": "swapExactTokensForTokens(uint256,uint256,address[],address,uint256)",
		"0xfc6f7865": "collect((uint256,address,uint128,uint128))",
		"0x0c49ccbe": "decreaseLiquidity((uint256,uint128,uint256,uint256,uint256))",
	}
	for selector, sig := range signatures {
		got := hexutil.Encode(crypto.Keccak256([]byte(sig))[:4])
		assert.Equal(t, selector, got, sig)

		_, ok := LookupMethod(selector)
		assert.True(t, ok, selector)
	}

	for _, probe := range LPProbeSelectors["uniswapV2"] {
		assert.Len(t, probe, 10)
	}
	assert.Equal(t, "0x0dfe1681", hexutil.Encode(crypto.Keccak256([]byte("token0()"))[:4]))
}

func TestEventTopics(t *testing.T) {
	transfer, ok := EventTopic("Transfer")
	require.True(t, ok)
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", transfer)

	mint, _ := EventTopic("Mint")
	assert.Equal(t, "0x4c209b5fc8ad50758f13e2e1088ba56a560dff690a1c6fef26394f4c03821c4f", mint)

	assert.Len(t, EventTopics(), 9)
}

func TestMethodID(t *testing.T) {
	assert.Equal(t, "0xe8e33700", MethodID("0xE8E33700000000000000"))
	assert.Equal(t, "", MethodID("0x"))
	sig, ok := LookupMethod("0x88316456abcdef")
	require.True(t, ok)
	assert.Equal(t, types.TxAddLiquidity, sig.TxType)
}
