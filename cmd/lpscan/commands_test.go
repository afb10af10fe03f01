package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

func TestWriteTable(t *testing.T) {
	uniswap, ok := registry.Lookup("uniswapV2")
	require.True(t, ok)

	result := &models.PortfolioResult{
		Positions: []models.Position{{
			Chain:        "Ethereum",
			Protocol:     uniswap,
			TokenPair:    models.TokenPair{Token0: "WETH", Token1: "USDC", DisplayName: "WETH/USDC"},
			Status:       types.StatusActive,
			CurrentValue: 1234.5,
			PnL:          34.5,
			APY:          12.25,
		}},
		Metrics: models.PortfolioMetrics{TotalValue: 1234.5, TotalPnL: 34.5, ActivePositions: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, result))

	out := buf.String()
	assert.Contains(t, out, "WETH/USDC")
	assert.Contains(t, out, "$1234.50")
	assert.Contains(t, out, "12.25%")
	assert.Contains(t, out, "active 1")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "unknown", formatPrice(0))
	assert.Equal(t, "$3500.0000", formatPrice(3500))
}
