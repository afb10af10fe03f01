package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/types"
)

type mapOracle struct {
	prices map[string]float64
	fail   map[string]bool
}

func (o mapOracle) GetPrice(_ context.Context, symbol string) (float64, error) {
	if o.fail[symbol] {
		return 0, errors.New("oracle unavailable")
	}
	return o.prices[symbol], nil
}

type failingPool struct{}

func (failingPool) TokenAmounts(context.Context, models.Position) (models.AmountPair, error) {
	return models.AmountPair{}, errors.New("reserves unavailable")
}

func int64Ptr(v int64) *int64 { return &v }

func wethUSDCPosition() models.Position {
	return models.Position{
		ID:       "Ethereum_0xpool",
		Chain:    "Ethereum",
		ChainKey: types.ChainEthereum,
		LPToken:  models.LPTokenSummary{Symbol: "UNI-V2", Balance: 2},
		TokenPair: models.TokenPair{
			Token0: "WETH", Token1: "USDC", DisplayName: "WETH/USDC",
		},
		Status: types.StatusActive,
		Transactions: []models.ClassifiedAction{
			{Hash: "0x1", TxType: types.TxAddLiquidity, Value: 1, Timestamp: 1000},
			{Hash: "0x2", TxType: types.TxCollectFees, Value: 0.1, Timestamp: 2000},
		},
	}
}

func TestValuate(t *testing.T) {
	oracle := mapOracle{prices: map[string]float64{"WETH": 2000, "USDC": 1, "ETH": 2000}}
	svc := NewValuationService(oracle, nil, 2, logging.NewNopLogger())

	input := wethUSDCPosition()
	got := svc.Valuate(context.Background(), input)

	assert.Equal(t, models.TokenPrices{Token0: 2000, Token1: 1}, got.TokenPrices)
	assert.InDelta(t, 2000, got.InitialValue, 1e-9)
	assert.InDelta(t, 0.5, got.TokenAmounts.Initial.Token0, 1e-12)
	assert.InDelta(t, 1000, got.TokenAmounts.Initial.Token1, 1e-9)
	assert.Equal(t, models.AmountPair{Token0: 200, Token1: 200}, got.TokenAmounts.Current)
	assert.InDelta(t, 400200, got.CurrentValue, 1e-6)
	assert.InDelta(t, 200, got.FeesEarned, 1e-9)
	assert.InDelta(t, 0, got.ImpermanentLoss.Value, 1e-9)
	assert.InDelta(t, 398400, got.PnL, 1e-6)
	assert.InDelta(t, 19920, got.PnLPercent, 1e-6)
	assert.Equal(t, 0.0, got.APY)

	assert.Equal(t, 0.0, input.CurrentValue, "input must not be mutated")
}

// No add_liquidity history: initial value and PnL percent stay at zero.
func TestValuateWithoutAdds(t *testing.T) {
	oracle := mapOracle{prices: map[string]float64{"WETH": 2000, "USDC": 1, "ETH": 2000}}
	svc := NewValuationService(oracle, nil, 1, logging.NewNopLogger())

	pos := wethUSDCPosition()
	pos.Transactions = nil
	got := svc.Valuate(context.Background(), pos)

	assert.Equal(t, 0.0, got.InitialValue)
	assert.Equal(t, 0.0, got.PnLPercent)
	assert.Equal(t, got.CurrentValue, got.PnL)
	assert.Equal(t, 0.0, got.APY)
}

func TestValuateStepsAreIndependent(t *testing.T) {
	oracle := mapOracle{
		prices: map[string]float64{"USDC": 1, "ETH": 2000},
		fail:   map[string]bool{"WETH": true},
	}
	svc := NewValuationService(oracle, failingPool{}, 1, logging.NewNopLogger())

	got := svc.Valuate(context.Background(), wethUSDCPosition())
	assert.Equal(t, 0.0, got.TokenPrices.Token0)
	assert.Equal(t, 1.0, got.TokenPrices.Token1)
	assert.Equal(t, 0.0, got.CurrentValue)
	assert.InDelta(t, 2000, got.InitialValue, 1e-9)
	assert.InDelta(t, 200, got.FeesEarned, 1e-9)
	assert.Equal(t, 0.0, got.TokenAmounts.Initial.Token0)
	assert.Equal(t, models.ImpermanentLoss{}, got.ImpermanentLoss)
}

func TestValuateUsesChainNativeSymbol(t *testing.T) {
	oracle := mapOracle{prices: map[string]float64{"WMATIC": 1, "USDC": 1, "MATIC": 0.5}}
	svc := NewValuationService(oracle, nil, 1, logging.NewNopLogger())

	pos := wethUSDCPosition()
	pos.Chain = "Polygon"
	pos.ChainKey = types.ChainPolygon
	pos.TokenPair = models.TokenPair{Token0: "WMATIC", Token1: "USDC"}
	pos.Transactions = pos.Transactions[:1]
	pos.Transactions[0].Value = 10

	got := svc.Valuate(context.Background(), pos)
	assert.InDelta(t, 5, got.InitialValue, 1e-12)
}

func TestValuateAPY(t *testing.T) {
	oracle := mapOracle{prices: map[string]float64{"WETH": 1, "USDC": 1, "ETH": 100}}
	svc := NewValuationService(oracle, nil, 1, logging.NewNopLogger())

	pos := wethUSDCPosition()
	pos.LPToken.Balance = 1
	pos.Transactions = []models.ClassifiedAction{{TxType: types.TxAddLiquidity, Value: 1, Timestamp: 0}}
	pos.FirstInteraction = int64Ptr(0)
	pos.LastInteraction = int64Ptr(int64(secondsPerYear))

	got := svc.Valuate(context.Background(), pos)
	// 100 invested, 200 now, one year elapsed
	assert.InDelta(t, 100, got.APY, 1e-9)
}

func TestValuateAllPreservesOrder(t *testing.T) {
	oracle := mapOracle{prices: map[string]float64{"WETH": 1, "USDC": 1}}
	svc := NewValuationService(oracle, nil, 4, logging.NewNopLogger())

	positions := make([]models.Position, 25)
	for i := range positions {
		positions[i] = wethUSDCPosition()
		positions[i].ID = fmt.Sprintf("pos-%d", i)
		positions[i].LPToken.Balance = float64(i)
	}

	out, err := svc.ValuateAll(context.Background(), positions)
	require.NoError(t, err)
	require.Len(t, out, len(positions))
	for i, p := range out {
		assert.Equal(t, fmt.Sprintf("pos-%d", i), p.ID)
		assert.InDelta(t, float64(i)*200, p.CurrentValue, 1e-9)
	}
}

func TestValuateAllCancelled(t *testing.T) {
	svc := NewValuationService(mapOracle{}, nil, 2, logging.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ValuateAll(ctx, []models.Position{wethUSDCPosition()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateImpermanentLoss(t *testing.T) {
	t.Run("zero initial price", func(t *testing.T) {
		il := CalculateImpermanentLoss(models.TokenPrices{Token0: 0, Token1: 1}, models.TokenPrices{Token0: 5, Token1: 1}, models.AmountPair{Token0: 1, Token1: 1})
		assert.Equal(t, models.ImpermanentLoss{}, il)
	})

	t.Run("price doubles", func(t *testing.T) {
		// r = 2: multiplier 2*sqrt(2)/3
		il := CalculateImpermanentLoss(
			models.TokenPrices{Token0: 100, Token1: 1},
			models.TokenPrices{Token0: 200, Token1: 1},
			models.AmountPair{Token0: 1, Token1: 100},
		)
		hold := 300.0
		lp := 200 * 2 * math.Sqrt2 / 3
		assert.InDelta(t, hold, il.HoldValue, 1e-9)
		assert.InDelta(t, lp, il.LPValue, 1e-9)
		assert.InDelta(t, lp-hold, il.Value, 1e-9)
		assert.Less(t, il.Value, 0.0)
	})

	t.Run("zero amounts", func(t *testing.T) {
		il := CalculateImpermanentLoss(models.TokenPrices{Token0: 1, Token1: 1}, models.TokenPrices{Token0: 1, Token1: 1}, models.AmountPair{})
		assert.Equal(t, 0.0, il.Percent)
		assert.False(t, math.IsNaN(il.Percent))
	})
}

func TestCalculateAPYGuards(t *testing.T) {
	assert.Equal(t, 0.0, CalculateAPY(100, 200, nil, int64Ptr(10)))
	assert.Equal(t, 0.0, CalculateAPY(100, 200, int64Ptr(10), int64Ptr(10)))
	assert.Equal(t, 0.0, CalculateAPY(0, 200, int64Ptr(0), int64Ptr(100)))
	assert.Equal(t, 0.0, CalculateAPY(100, 1e300, int64Ptr(0), int64Ptr(1)))
}

func TestImpermanentLossProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("no loss when prices are unchanged", prop.ForAll(
		func(p0, p1, a0, a1 float64) bool {
			prices := models.TokenPrices{Token0: p0, Token1: p1}
			il := CalculateImpermanentLoss(prices, prices, models.AmountPair{Token0: a0, Token1: a1})
			return math.Abs(il.Percent) < 1e-6 && math.Abs(il.Value) < 1e-6*il.HoldValue+1e-9
		},
		gen.Float64Range(0.01, 1e4),
		gen.Float64Range(0.01, 1e4),
		gen.Float64Range(0.01, 1e3),
		gen.Float64Range(0.01, 1e3),
	))

	properties.Property("results are always finite", prop.ForAll(
		func(p0, p1, c0, c1 float64) bool {
			il := CalculateImpermanentLoss(
				models.TokenPrices{Token0: p0, Token1: p1},
				models.TokenPrices{Token0: c0, Token1: c1},
				models.AmountPair{Token0: 1, Token1: 1},
			)
			for _, f := range []float64{il.Value, il.Percent, il.HoldValue, il.LPValue} {
				if math.IsNaN(f) || math.IsInf(f, 0) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 1e6),
		gen.Float64Range(0, 1e6),
		gen.Float64Range(0, 1e6),
		gen.Float64Range(0, 1e6),
	))

	properties.TestingRun(t)
}
