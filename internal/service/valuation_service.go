package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lp-portfolio/internal/logging"
	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

// PriceOracle resolves a USD price for a token symbol
type PriceOracle interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// PoolStateProvider estimates the underlying token amounts of a position
type PoolStateProvider interface {
	TokenAmounts(ctx context.Context, position models.Position) (models.AmountPair, error)
}

// placeholderUnitsPerLP is the token amount assumed per LP token held
const placeholderUnitsPerLP = 100

// PlaceholderPoolState assumes each LP token is backed by 100 units of each
// token. It stands in until pool reserves and total supply are read.
type PlaceholderPoolState struct{}

// TokenAmounts returns balance*100 for both tokens
func (PlaceholderPoolState) TokenAmounts(_ context.Context, position models.Position) (models.AmountPair, error) {
	balance := position.LPToken.Balance
	if balance == 0 {
		return models.AmountPair{}, nil
	}
	return models.AmountPair{
		Token0: balance * placeholderUnitsPerLP,
		Token1: balance * placeholderUnitsPerLP,
	}, nil
}

// ValuationService prices positions and derives PnL, fees, IL and APY
type ValuationService struct {
	oracle      PriceOracle
	pool        PoolStateProvider
	concurrency int
	logger      *logging.Logger
}

// NewValuationService creates a valuation service. A nil pool provider
// falls back to PlaceholderPoolState.
func NewValuationService(oracle PriceOracle, pool PoolStateProvider, concurrency int, logger *logging.Logger) *ValuationService {
	if pool == nil {
		pool = PlaceholderPoolState{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ValuationService{
		oracle:      oracle,
		pool:        pool,
		concurrency: concurrency,
		logger:      logger,
	}
}

// price asks the oracle and logs failures; a failed lookup prices at 0
func (s *ValuationService) price(ctx context.Context, symbol string, log *logging.Logger) float64 {
	p, err := s.oracle.GetPrice(ctx, symbol)
	if err != nil {
		log.WithField("symbol", symbol).WithError(err).Warn("Price lookup failed during valuation")
		return 0
	}
	return finiteOrZero(p)
}

// nativeSymbol returns the native currency of the position's chain
func nativeSymbol(position models.Position) string {
	if chain, ok := registry.ChainByKey(position.ChainKey); ok {
		return chain.Symbol
	}
	if chain, ok := registry.ChainByName(position.Chain); ok {
		return chain.Symbol
	}
	return "ETH"
}

// Valuate returns a valued copy of the position. Each step is independent:
// a failing step leaves its fields at zero and the rest still run.
func (s *ValuationService) Valuate(ctx context.Context, position models.Position) models.Position {
	out := position.Clone()
	log := s.logger.WithFields(map[string]interface{}{
		"position": position.ID,
		"pair":     position.TokenPair.DisplayName,
	})

	p0 := s.price(ctx, out.TokenPair.Token0, log)
	p1 := s.price(ctx, out.TokenPair.Token1, log)
	out.TokenPrices = models.TokenPrices{Token0: p0, Token1: p1}

	var nativePrice float64
	hasNativeFlows := false
	for _, tx := range out.Transactions {
		if tx.TxType == types.TxAddLiquidity || tx.TxType == types.TxCollectFees {
			hasNativeFlows = true
			break
		}
	}
	if hasNativeFlows {
		nativePrice = s.price(ctx, nativeSymbol(out), log)
	}

	// Initial investment from add_liquidity native value. Historical prices
	// are not looked up, so initial prices equal current prices.
	var initialValue float64
	var initialAmounts models.AmountPair
	firstAdd := true
	for _, tx := range out.Transactions {
		if tx.TxType != types.TxAddLiquidity {
			continue
		}
		usd := tx.Value * nativePrice
		initialValue += usd
		if firstAdd {
			firstAdd = false
			if p0 > 0 {
				initialAmounts.Token0 = usd / 2 / p0
			}
			if p1 > 0 {
				initialAmounts.Token1 = usd / 2 / p1
			}
		}
	}
	out.InitialValue = finiteOrZero(initialValue)
	out.TokenAmounts.Initial = initialAmounts

	current, err := s.pool.TokenAmounts(ctx, out)
	if err != nil {
		log.WithError(err).Warn("Pool state unavailable, current value left at zero")
	} else {
		out.TokenAmounts.Current = current
		out.CurrentValue = finiteOrZero(current.Token0*p0 + current.Token1*p1)
	}

	var fees float64
	for _, tx := range out.Transactions {
		if tx.TxType == types.TxCollectFees {
			fees += tx.Value * nativePrice
		}
	}
	out.FeesEarned = finiteOrZero(fees)

	out.ImpermanentLoss = CalculateImpermanentLoss(out.TokenPrices, out.TokenPrices, initialAmounts)

	out.PnL = out.CurrentValue + out.FeesEarned - out.InitialValue
	if out.InitialValue > 0 {
		out.PnLPercent = finiteOrZero(out.PnL / out.InitialValue * 100)
	}

	out.APY = CalculateAPY(out.InitialValue, out.CurrentValue+out.FeesEarned, out.FirstInteraction, out.LastInteraction)

	return out
}

// ValuateAll values positions concurrently, preserving input order.
// It only fails when ctx is cancelled.
func (s *ValuationService) ValuateAll(ctx context.Context, positions []models.Position) ([]models.Position, error) {
	out := make([]models.Position, len(positions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range positions {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.Valuate(gctx, positions[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
