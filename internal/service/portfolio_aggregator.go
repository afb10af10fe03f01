package service

import (
	"sort"

	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/types"
)

// Aggregate sums valued positions into portfolio metrics. Best and worst
// performer are chosen by PnLPercent in one pass; ties keep the earlier one.
// Partial positions count as neither active nor closed.
func Aggregate(positions []models.Position) models.PortfolioMetrics {
	var m models.PortfolioMetrics
	if len(positions) == 0 {
		return m
	}

	best, worst := -1, -1
	for i := range positions {
		p := &positions[i]
		m.TotalValue += p.CurrentValue
		m.TotalInitialInvestment += p.InitialValue
		m.TotalPnL += p.PnL
		m.TotalFeesEarned += p.FeesEarned
		m.TotalImpermanentLoss += p.ImpermanentLoss.Value

		switch p.Status {
		case types.StatusActive:
			m.ActivePositions++
		case types.StatusClosed:
			m.ClosedPositions++
		}

		if best < 0 || p.PnLPercent > positions[best].PnLPercent {
			best = i
		}
		if worst < 0 || p.PnLPercent < positions[worst].PnLPercent {
			worst = i
		}
	}

	if m.TotalInitialInvestment > 0 {
		m.TotalPnLPercent = m.TotalPnL / m.TotalInitialInvestment * 100
	}

	m.ByProtocol = breakdown(positions, func(p *models.Position) (string, string) {
		return p.Protocol.Name, p.Protocol.Logo
	}, unknownProtocolIcon)
	m.ByChain = breakdown(positions, func(p *models.Position) (string, string) {
		return p.Chain, p.ChainIcon
	}, unknownChainIcon)

	bestCopy := positions[best].Clone()
	worstCopy := positions[worst].Clone()
	m.BestPerformer = &bestCopy
	m.WorstPerformer = &worstCopy
	return m
}

const (
	unknownGroupName    = "Unknown"
	unknownProtocolIcon = "🔄"
	unknownChainIcon    = "⛓️"
)

// breakdown groups positions by the name key returns, largest value first.
// Groups with equal value keep first-seen order.
func breakdown(positions []models.Position, key func(p *models.Position) (name, icon string), defaultIcon string) []models.Breakdown {
	index := make(map[string]int)
	var out []models.Breakdown
	for i := range positions {
		p := &positions[i]
		name, icon := key(p)
		if name == "" {
			name = unknownGroupName
		}
		j, ok := index[name]
		if !ok {
			if icon == "" {
				icon = defaultIcon
			}
			j = len(out)
			index[name] = j
			out = append(out, models.Breakdown{Name: name, Icon: icon})
		}
		out[j].Count++
		out[j].TotalValue += p.CurrentValue
		out[j].TotalPnL += p.PnL
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].TotalValue > out[b].TotalValue })
	return out
}
