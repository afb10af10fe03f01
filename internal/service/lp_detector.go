package service

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/types"
)

// defaultTokenDecimals is used when a transfer carries no usable decimals
const defaultTokenDecimals = 18

// lpIndicators are upper-cased fragments that mark pool share tokens
var lpIndicators = []string{
	"UNI-V2", "UNI-V3", "SLP", "CAKE-LP", "BPT",
	"CRV", "3CRV", "CRVUSD",
	"-LP", "LP-", "BALANCER", "CURVE",
	"UNISWAP V2", "UNISWAP V3", "SUSHISWAP",
	"PANCAKESWAP", "AERODROME",
}

// IsLPToken reports whether a token's symbol or name looks like an LP share.
// This is a naming heuristic and misfires on tokens such as "CRV" itself.
func IsLPToken(symbol, name string) bool {
	text := strings.ToUpper(symbol + " " + name)
	for _, indicator := range lpIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}

// AggregateBalances folds the wallet's LP token transfers into one record per
// contract, in first-seen order. Transfers that do not involve the wallet or
// whose value or timestamp cannot be parsed are skipped.
func AggregateBalances(transfers []types.RawTokenTransfer, user string) []models.LPToken {
	user = strings.ToLower(user)

	index := make(map[string]int)
	var tokens []models.LPToken

	for _, tr := range transfers {
		if !IsLPToken(tr.TokenSymbol, tr.TokenName) {
			continue
		}

		from := strings.ToLower(tr.From)
		to := strings.ToLower(tr.To)
		receiving := to == user
		sending := from == user
		if !receiving && !sending {
			continue
		}

		timestamp, err := strconv.ParseInt(strings.TrimSpace(tr.TimeStamp), 10, 64)
		if err != nil {
			continue
		}
		raw, ok := new(big.Int).SetString(strings.TrimSpace(tr.Value), 10)
		if !ok {
			continue
		}

		contract := strings.ToLower(tr.ContractAddress)
		i, seen := index[contract]
		if !seen {
			tokens = append(tokens, models.LPToken{
				ContractAddress: contract,
				Symbol:          tr.TokenSymbol,
				Name:            tr.TokenName,
				Decimals:        parseDecimals(tr.TokenDecimal),
			})
			i = len(tokens) - 1
			index[contract] = i
		}
		token := &tokens[i]

		amount := scaleAmount(raw, token.Decimals)
		transfer := models.LPTransfer{
			Hash:      tr.Hash,
			From:      from,
			To:        to,
			Timestamp: timestamp,
		}
		switch {
		case receiving && sending:
			transfer.Direction = types.DirectionSelf
		case receiving:
			transfer.Direction = types.DirectionReceive
			transfer.Value = amount
		default:
			transfer.Direction = types.DirectionSend
			transfer.Value = -amount
		}

		token.Balance += transfer.Value
		token.Transfers = append(token.Transfers, transfer)
	}

	return tokens
}

// parseDecimals reads a token's decimals; "0" is a valid answer
func parseDecimals(s string) int {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || d < 0 || d > 77 {
		return defaultTokenDecimals
	}
	return d
}

// scaleAmount converts a raw integer amount into token units
func scaleAmount(raw *big.Int, decimals int) float64 {
	value := new(big.Float).SetInt(raw)
	if decimals > 0 {
		scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
		value.Quo(value, scale)
	}
	f, _ := value.Float64()
	return f
}

// weiToNative converts a wei string to native units; ok is false when malformed
func weiToNative(s string, decimals int) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	raw, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, false
	}
	return scaleAmount(raw, decimals), true
}
