package models

import (
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

// Placeholder symbols used when a pair cannot be recovered
const (
	PlaceholderToken0 = "Token0"
	PlaceholderToken1 = "Token1"
)

// TokenPair is the best guess of a pool's two underlying assets
type TokenPair struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	DisplayName string `json:"displayName"`
}

// LPTokenSummary is the subset of LPToken carried on a position
type LPTokenSummary struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
	Decimals int     `json:"decimals"`
}

// ActionCounts tallies related actions by type
type ActionCounts struct {
	Adds           int `json:"adds"`
	Removes        int `json:"removes"`
	FeeCollections int `json:"feeCollections"`
}

// ImpermanentLoss is the divergence loss of an LP position against holding
type ImpermanentLoss struct {
	Value     float64 `json:"value"`
	Percent   float64 `json:"percent"`
	HoldValue float64 `json:"holdValue"`
	LPValue   float64 `json:"lpValue"`
}

// TokenPrices holds USD prices for the pair
type TokenPrices struct {
	Token0 float64 `json:"token0"`
	Token1 float64 `json:"token1"`
}

// AmountPair is an amount of token0 and token1
type AmountPair struct {
	Token0 float64 `json:"token0"`
	Token1 float64 `json:"token1"`
}

// TokenAmounts holds initial and current underlying amounts
type TokenAmounts struct {
	Initial AmountPair `json:"initial"`
	Current AmountPair `json:"current"`
}

// Position is a reconstructed LP position, optionally valued
type Position struct {
	ID               string                      `json:"id"`
	ContractAddress  string                      `json:"contractAddress"`
	LPToken          LPTokenSummary              `json:"lpToken"`
	TokenPair        TokenPair                   `json:"tokenPair"`
	Protocol         registry.ProtocolMetadata   `json:"protocol"`
	Chain            string                      `json:"chain"`
	ChainKey         types.ChainKey              `json:"chainKey"`
	ChainIcon        string                      `json:"chainIcon"`
	Status           types.PositionStatus        `json:"status"`
	CurrentBalance   float64                     `json:"currentBalance"`
	Actions          ActionCounts                `json:"actions"`
	Transactions     []ClassifiedAction          `json:"transactions"`
	FirstInteraction *int64                      `json:"firstInteraction"`
	LastInteraction  *int64                      `json:"lastInteraction"`
	Attribution      types.AttributionConfidence `json:"attribution"`

	InitialValue    float64         `json:"initialValue"`
	CurrentValue    float64         `json:"currentValue"`
	PnL             float64         `json:"pnl"`
	PnLPercent      float64         `json:"pnlPercent"`
	FeesEarned      float64         `json:"feesEarned"`
	ImpermanentLoss ImpermanentLoss `json:"impermanentLoss"`
	APY             float64         `json:"apy"`
	TokenPrices     TokenPrices     `json:"tokenPrices"`
	TokenAmounts    TokenAmounts    `json:"tokenAmounts"`
}

// PositionID builds the reproducible identifier of a position
func PositionID(chainName, contract string) string {
	return chainName + "_" + contract
}

// Clone returns a deep copy so valuation never aliases the input
func (p Position) Clone() Position {
	out := p
	if p.Transactions != nil {
		out.Transactions = make([]ClassifiedAction, len(p.Transactions))
		copy(out.Transactions, p.Transactions)
	}
	if p.FirstInteraction != nil {
		v := *p.FirstInteraction
		out.FirstInteraction = &v
	}
	if p.LastInteraction != nil {
		v := *p.LastInteraction
		out.LastInteraction = &v
	}
	return out
}
