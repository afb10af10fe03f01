package service

import (
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

// AnalysisResult is the unvalued output of the detection stage
type AnalysisResult struct {
	Positions    []models.Position         `json:"positions"`
	Transactions []models.ClassifiedAction `json:"transactions"`
}

// AnalyzePositions runs LP detection over every chain's data. Chains are
// visited in registry order so the output is stable for identical input.
func AnalyzePositions(perChain map[types.ChainKey]models.ChainData, user string) AnalysisResult {
	result := AnalysisResult{
		Positions:    []models.Position{},
		Transactions: []models.ClassifiedAction{},
	}

	for _, key := range registry.ChainKeys() {
		data, ok := perChain[key]
		if !ok {
			continue
		}
		chain := data.Chain
		if chain.Key == "" {
			chain, _ = registry.ChainByKey(key)
		}

		lpTokens := AggregateBalances(data.TokenTransfers, user)
		actions := DetectActions(data.Transactions, user, chain)
		positions := BuildPositions(lpTokens, actions, chain)

		result.Positions = append(result.Positions, positions...)
		result.Transactions = append(result.Transactions, actions...)
	}

	return result
}
