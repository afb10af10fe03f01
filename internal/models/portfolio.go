package models

import (
	"time"

	"github.com/lp-portfolio/internal/types"
)

// PortfolioMetrics aggregates valued positions
type PortfolioMetrics struct {
	TotalValue             float64   `json:"totalValue"`
	TotalInitialInvestment float64   `json:"totalInitialInvestment"`
	TotalPnL               float64   `json:"totalPnL"`
	TotalPnLPercent        float64   `json:"totalPnLPercent"`
	TotalFeesEarned        float64   `json:"totalFeesEarned"`
	TotalImpermanentLoss   float64   `json:"totalImpermanentLoss"`
	ActivePositions        int       `json:"activePositions"`
	ClosedPositions        int       `json:"closedPositions"`
	BestPerformer          *Position `json:"bestPerformer"`
	WorstPerformer         *Position `json:"worstPerformer"`

	ByProtocol []Breakdown `json:"byProtocol"`
	ByChain    []Breakdown `json:"byChain"`
}

// Breakdown totals the positions of one protocol or chain
type Breakdown struct {
	Name       string  `json:"name"`
	Icon       string  `json:"icon"`
	Count      int     `json:"count"`
	TotalValue float64 `json:"totalValue"`
	TotalPnL   float64 `json:"totalPnL"`
}

// PortfolioResult is the output of one full load for a wallet
type PortfolioResult struct {
	RunID      string           `json:"runId"`
	Generation uint64           `json:"generation"`
	Address    string           `json:"address"`
	Chains     []types.ChainKey `json:"chains"`
	Positions  []Position       `json:"positions"`
	Metrics    PortfolioMetrics `json:"metrics"`
	LoadedAt   time.Time        `json:"loadedAt"`
}

// Symbols returns the distinct token symbols priced by the positions
func (r *PortfolioResult) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s == "" || s == PlaceholderToken0 || s == PlaceholderToken1 || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, p := range r.Positions {
		add(p.TokenPair.Token0)
		add(p.TokenPair.Token1)
	}
	return out
}

// PortfolioSnapshot is a persisted PortfolioResult
type PortfolioSnapshot struct {
	ID            string           `json:"id" db:"id"`
	Address       string           `json:"address" db:"address"`
	RunID         string           `json:"runId" db:"run_id"`
	Metrics       PortfolioMetrics `json:"metrics" db:"metrics"`
	Positions     []Position       `json:"positions" db:"positions"`
	PositionCount int              `json:"positionCount" db:"position_count"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
}
