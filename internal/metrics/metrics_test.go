package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gridbot/internal/performance"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	m := New()
	m.ObservePrice("BTCUSDT", decimal.RequireFromString("101.5"))
	m.ObserveOrder("BTCUSDT", "buy", true)
	m.ObserveOrder("BTCUSDT", "buy", true)
	m.ObserveOrder("BTCUSDT", "sell", false)
	m.ObserveGrid("BTCUSDT", "dynamic", 6, true)
	m.ObserveLedger("BTCUSDT", performance.Metrics{TotalProfit: decimal.NewFromInt(-99), WinRate: decimal.NewFromInt(50)})
	m.ObserveCycle("BTCUSDT", "ok", 20*time.Millisecond)
	m.SetTrailingStop("BTCUSDT", nil)

	assert.Equal(t, 101.5, testutil.ToFloat64(m.Price.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersPlaced.WithLabelValues("BTCUSDT", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderFailures.WithLabelValues("BTCUSDT", "sell")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.GridLevels.WithLabelValues("BTCUSDT", "dynamic")))
	assert.Equal(t, -99.0, testutil.ToFloat64(m.TotalProfit.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TrailingStop.WithLabelValues("BTCUSDT")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gridbot_cycles_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePrice("X", decimal.NewFromInt(1))
		m.ObserveFill("X", "buy")
		m.SetOpenOrders("X", 3)
		m.SetBreakerState("venue", 1)
	})
	assert.Nil(t, m.Registry())
}
