package visual

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gridbot/internal/backtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStats() backtest.RunStats {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := backtest.RunStats{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Strategy: "default",
		Grids: []backtest.GridMark{
			{Time: t0, Mode: "static", Levels: []float64{100, 150, 200}},
			{Time: t0.Add(2 * time.Hour), Mode: "dynamic", Levels: []float64{100, 200}},
		},
	}
	for i := 0; i < 4; i++ {
		stats.Points = append(stats.Points, backtest.Point{
			Time: t0.Add(time.Duration(i) * time.Hour), Price: 140 + float64(i), Profit: float64(i) * 1.5, OpenOrders: 6 - i,
		})
	}
	stats.Metrics.TotalProfit = decimal.NewFromFloat(4.5)
	return stats
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(sampleStats())
	require.NoError(t, err)
	body := string(html)
	assert.Contains(t, body, "BTCUSDT 1h")
	assert.Contains(t, body, "Cumulative Profit")
	assert.Contains(t, body, "Open Orders")
	assert.Contains(t, body, "profit=4.50")

	_, err = RenderHTML(backtest.RunStats{Symbol: "BTCUSDT"})
	assert.Error(t, err)
}

func TestGridBoundsFollowReplacements(t *testing.T) {
	stats := sampleStats()
	lower, upper := gridBounds(stats.Points, stats.Grids)
	assert.Equal(t, []float64{100, 100, 100, 100}, lower)
	assert.Equal(t, []float64{200, 200, 200, 200}, upper)

	early := []backtest.Point{{Time: stats.Grids[0].Time.Add(-time.Hour)}}
	lower, _ = gridBounds(early, stats.Grids)
	assert.True(t, math.IsNaN(lower[0]))
}

func TestWriteReportHTMLOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.html")
	require.NoError(t, WriteReport(context.Background(), path, sampleStats(), false))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	_, err = os.Stat(filepath.Join(filepath.Dir(path), "report.png"))
	assert.True(t, os.IsNotExist(err))
}
