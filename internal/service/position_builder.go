package service

import (
	"fmt"

	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

const (
	// CorrelationWindowSeconds is the max distance between an LP transfer and
	// a protocol call for the call to count toward the position (exclusive).
	CorrelationWindowSeconds = 60

	// closedBalanceThreshold is the LP balance below which a position is closed
	closedBalanceThreshold = 1e-6
)

// PositionStatusFor derives a position's status from its balance and history
func PositionStatusFor(balance float64, removes int) types.PositionStatus {
	switch {
	case balance < closedBalanceThreshold:
		return types.StatusClosed
	case removes > 0 && balance > 0:
		return types.StatusPartial
	default:
		return types.StatusActive
	}
}

// isRelated reports whether any of the token's transfers is inside the window
func isRelated(token models.LPToken, action models.ClassifiedAction) bool {
	for _, tr := range token.Transfers {
		d := tr.Timestamp - action.Timestamp
		if d < 0 {
			d = -d
		}
		if d < CorrelationWindowSeconds {
			return true
		}
	}
	return false
}

// BuildPositions joins LP tokens with the chain's classified actions by
// timestamp proximity. Tokens that fail to build are logged and skipped.
func BuildPositions(lpTokens []models.LPToken, actions []models.ClassifiedAction, chain registry.ChainConfig) []models.Position {
	// related[i] lists the action indices attributed to token i
	related := make([][]int, len(lpTokens))
	claims := make([]int, len(actions))
	for i, token := range lpTokens {
		for j, action := range actions {
			if isRelated(token, action) {
				related[i] = append(related[i], j)
				claims[j]++
			}
		}
	}

	return collectPositions(lpTokens, chain, func(i int, token models.LPToken) models.Position {
		return buildPosition(token, actions, related[i], claims, chain)
	})
}

// collectPositions builds one position per token. A token whose build panics
// is logged and skipped; the others still build.
func collectPositions(lpTokens []models.LPToken, chain registry.ChainConfig, build func(i int, token models.LPToken) models.Position) []models.Position {
	positions := make([]models.Position, 0, len(lpTokens))
	for i, token := range lpTokens {
		pos, err := safeBuild(i, token, build)
		if err != nil {
			logging.WithFields(map[string]interface{}{
				"chain":    chain.Name,
				"contract": token.ContractAddress,
			}).WithError(err).Warn("Skipping LP token that failed to build")
			continue
		}
		positions = append(positions, pos)
	}
	return positions
}

func safeBuild(i int, token models.LPToken, build func(int, models.LPToken) models.Position) (pos models.Position, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build position %s: %v", token.ContractAddress, r)
		}
	}()
	return build(i, token), nil
}

func buildPosition(token models.LPToken, actions []models.ClassifiedAction, related []int, claims []int, chain registry.ChainConfig) models.Position {
	txs := make([]models.ClassifiedAction, 0, len(related))
	var counts models.ActionCounts
	var first, last *int64
	attribution := types.AttributionNone
	if len(related) > 0 {
		attribution = types.AttributionUnique
	}

	for _, j := range related {
		action := actions[j]
		txs = append(txs, action)

		switch action.TxType {
		case types.TxAddLiquidity:
			counts.Adds++
		case types.TxRemoveLiquidity:
			counts.Removes++
		case types.TxCollectFees:
			counts.FeeCollections++
		}

		ts := action.Timestamp
		if first == nil || ts < *first {
			v := ts
			first = &v
		}
		if last == nil || ts > *last {
			v := ts
			last = &v
		}
		if claims[j] > 1 {
			attribution = types.AttributionShared
		}
	}

	return models.Position{
		ID:              models.PositionID(chain.Name, token.ContractAddress),
		ContractAddress: token.ContractAddress,
		LPToken: models.LPTokenSummary{
			Symbol:   token.Symbol,
			Name:     token.Name,
			Balance:  token.Balance,
			Decimals: token.Decimals,
		},
		TokenPair:        ExtractTokenPair(token.Name, token.Symbol),
		Protocol:         registry.ProtocolFromName(token.Name, token.Symbol),
		Chain:            chain.Name,
		ChainKey:         chain.Key,
		ChainIcon:        chain.Icon,
		Status:           PositionStatusFor(token.Balance, counts.Removes),
		CurrentBalance:   token.Balance,
		Actions:          counts,
		Transactions:     txs,
		FirstInteraction: first,
		LastInteraction:  last,
		Attribution:      attribution,
	}
}
