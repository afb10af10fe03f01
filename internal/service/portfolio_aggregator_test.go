package service

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

func TestAggregateEmpty(t *testing.T) {
	m := Aggregate(nil)
	assert.Equal(t, models.PortfolioMetrics{}, m)
	assert.Nil(t, m.BestPerformer)
	assert.Nil(t, m.WorstPerformer)
}

func TestAggregate(t *testing.T) {
	positions := []models.Position{
		{ID: "a", Status: types.StatusActive, CurrentValue: 110, InitialValue: 100, PnL: 10, PnLPercent: 10, FeesEarned: 1, ImpermanentLoss: models.ImpermanentLoss{Value: -2}},
		{ID: "b", Status: types.StatusClosed, CurrentValue: 0, InitialValue: 50, PnL: -50, PnLPercent: -100},
		{ID: "c", Status: types.StatusPartial, CurrentValue: 60, InitialValue: 50, PnL: 10, PnLPercent: 20, FeesEarned: 2},
		{ID: "d", Status: types.StatusActive, CurrentValue: 60, InitialValue: 50, PnL: 10, PnLPercent: 20},
	}

	m := Aggregate(positions)
	assert.Equal(t, 230.0, m.TotalValue)
	assert.Equal(t, 250.0, m.TotalInitialInvestment)
	assert.Equal(t, -20.0, m.TotalPnL)
	assert.InDelta(t, -8.0, m.TotalPnLPercent, 1e-9)
	assert.Equal(t, 3.0, m.TotalFeesEarned)
	assert.Equal(t, -2.0, m.TotalImpermanentLoss)
	assert.Equal(t, 2, m.ActivePositions)
	assert.Equal(t, 1, m.ClosedPositions)

	require.NotNil(t, m.BestPerformer)
	require.NotNil(t, m.WorstPerformer)
	assert.Equal(t, "c", m.BestPerformer.ID, "ties keep the first position")
	assert.Equal(t, "b", m.WorstPerformer.ID)
}

func TestAggregateBreakdowns(t *testing.T) {
	uni := registry.ProtocolMetadata{Name: "Uniswap V2", Logo: "🦄"}
	sushi := registry.ProtocolMetadata{Name: "SushiSwap", Logo: "🍣"}
	positions := []models.Position{
		{ID: "a", Protocol: sushi, Chain: "Polygon", ChainIcon: "⬡", CurrentValue: 10, PnL: 1},
		{ID: "b", Protocol: uni, Chain: "Ethereum", ChainIcon: "⟠", CurrentValue: 100, PnL: -5},
		{ID: "c", Protocol: uni, Chain: "Polygon", ChainIcon: "⬡", CurrentValue: 40, PnL: 2},
		{ID: "d", CurrentValue: 5},
	}

	m := Aggregate(positions)

	assert.Equal(t, []models.Breakdown{
		{Name: "Uniswap V2", Icon: "🦄", Count: 2, TotalValue: 140, TotalPnL: -3},
		{Name: "SushiSwap", Icon: "🍣", Count: 1, TotalValue: 10, TotalPnL: 1},
		{Name: "Unknown", Icon: "🔄", Count: 1, TotalValue: 5},
	}, m.ByProtocol)
	assert.Equal(t, []models.Breakdown{
		{Name: "Ethereum", Icon: "⟠", Count: 1, TotalValue: 100, TotalPnL: -5},
		{Name: "Polygon", Icon: "⬡", Count: 2, TotalValue: 50, TotalPnL: 3},
		{Name: "Unknown", Icon: "⛓️", Count: 1, TotalValue: 5},
	}, m.ByChain)
}

func TestAggregateZeroInitialInvestment(t *testing.T) {
	m := Aggregate([]models.Position{{ID: "x", PnL: 5, Status: types.StatusActive}})
	assert.Equal(t, 0.0, m.TotalPnLPercent)
	assert.Equal(t, "x", m.BestPerformer.ID)
	assert.Equal(t, "x", m.WorstPerformer.ID)
}

func TestAggregateProperties(t *testing.T) {
	statuses := []types.PositionStatus{types.StatusActive, types.StatusClosed, types.StatusPartial}

	build := func(values []float64) []models.Position {
		out := make([]models.Position, len(values))
		for i, v := range values {
			out[i] = models.Position{
				Status:       statuses[i%len(statuses)],
				CurrentValue: v,
				InitialValue: math.Abs(v) / 2,
				PnL:          v / 2,
				PnLPercent:   v,
			}
		}
		return out
	}

	properties := gopter.NewProperties(nil)

	properties.Property("totals equal the sum of positions", prop.ForAll(
		func(values []float64) bool {
			positions := build(values)
			m := Aggregate(positions)
			var total float64
			for _, p := range positions {
				total += p.CurrentValue
			}
			return math.Abs(m.TotalValue-total) < 1e-6
		},
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
	))

	properties.Property("active plus closed never exceeds the count", prop.ForAll(
		func(values []float64) bool {
			m := Aggregate(build(values))
			return m.ActivePositions+m.ClosedPositions <= len(values)
		},
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
	))

	properties.Property("best is at least worst", prop.ForAll(
		func(values []float64) bool {
			m := Aggregate(build(values))
			if len(values) == 0 {
				return m.BestPerformer == nil && m.WorstPerformer == nil
			}
			return m.BestPerformer.PnLPercent >= m.WorstPerformer.PnLPercent
		},
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
	))

	properties.TestingRun(t)
}
