package service

import (
	"strings"

	"github.com/lp-portfolio/internal/models"
)

// ExtractTokenPair guesses the two underlying tokens of an LP token.
//
// The symbol is tried first ("WETH-USDC", "Cake-LP" style), dropping segments
// that carry a version or LP marker. Then short all-caps words from the name
// ("Uniswap V2 WETH USDC"). When neither yields two tokens the placeholder
// pair Token0/Token1 is returned with the raw symbol as display name.
func ExtractTokenPair(name, symbol string) models.TokenPair {
	var parts []string
	for _, seg := range strings.Split(symbol, "-") {
		if seg == "" || strings.Contains(seg, "V2") || strings.Contains(seg, "V3") || strings.Contains(seg, "LP") {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) >= 2 {
		return newPair(parts[0], parts[1])
	}

	var tokens []string
	for _, word := range strings.Split(name, " ") {
		if word == "" || len(word) > 6 || strings.ToUpper(word) != word {
			continue
		}
		tokens = append(tokens, word)
	}
	if len(tokens) >= 2 {
		return newPair(tokens[0], tokens[1])
	}

	return models.TokenPair{
		Token0:      models.PlaceholderToken0,
		Token1:      models.PlaceholderToken1,
		DisplayName: symbol,
	}
}

func newPair(token0, token1 string) models.TokenPair {
	return models.TokenPair{
		Token0:      token0,
		Token1:      token1,
		DisplayName: token0 + "/" + token1,
	}
}
