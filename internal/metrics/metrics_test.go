package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveLoad("success", 2*time.Second)
	m.ObserveLoad("success", time.Second)
	m.StaleResultDropped()
	m.SetPositions("Ethereum", 4)
	m.PriceLookup("fallback")
	m.ExplorerRequest("ethereum", "txlist", "ok")
	m.CircuitTransition("coingecko", "open")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PipelineLoads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResults))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PositionsFound.WithLabelValues("Ethereum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceLookups.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExplorerRequests.WithLabelValues("ethereum", "txlist", "ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLoad("error", time.Second)
		m.StaleResultDropped()
		m.SetPositions("Base", 1)
		m.PriceLookup("feed")
		m.ExplorerRequest("base", "tokentx", "error")
		m.CircuitTransition("coingecko", "closed")
	})
}
