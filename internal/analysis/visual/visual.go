// Package visual 把回测结果渲染成 go-echarts HTML 报告，可选用 headless Chrome 截图为 PNG。
package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gridbot/internal/backtest"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorPrice         = "#3b82f6"
	colorGridLower     = "#34d399"
	colorGridUpper     = "#f87171"
	colorLevel         = "#fbbf24"
	colorProfit        = "#22d3ee"
	colorOrders        = "#a78bfa"

	chartWidthPx   = 1600
	priceHeightPx  = 600
	profitHeightPx = 320
	ordersHeightPx = 220
)

// RenderHTML 生成包含价格/网格、累计收益与挂单数的报告页面。
func RenderHTML(stats backtest.RunStats) ([]byte, error) {
	if len(stats.Points) == 0 {
		return nil, fmt.Errorf("no replay points for %s", stats.Symbol)
	}
	xAxis := buildXAxis(stats.Points)
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = fmt.Sprintf("%s %s backtest", stats.Symbol, stats.Interval)
	page.AddCharts(
		buildPriceChart(stats, xAxis),
		buildProfitChart(stats, xAxis),
		buildOrdersChart(stats, xAxis),
	)
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteReport 写出 HTML 报告；png=true 时在同目录额外输出截图。
func WriteReport(ctx context.Context, path string, stats backtest.RunStats, png bool) error {
	html, err := RenderHTML(stats)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return err
	}
	if !png {
		return nil
	}
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return fmt.Errorf("headless chrome unavailable: %w", err)
	}
	shot, err := renderHTMLToPNG(ctx, html, chartWidthPx, priceHeightPx+profitHeightPx+ordersHeightPx)
	if err != nil {
		return err
	}
	return os.WriteFile(strings.TrimSuffix(path, filepath.Ext(path))+".png", shot, 0o644)
}

func subtitle(stats backtest.RunStats) string {
	m := stats.Metrics
	s := fmt.Sprintf("strategy=%s profit=%s win_rate=%s%% max_dd=%s fills=%d replaces=%d",
		stats.Strategy, m.TotalProfit.StringFixed(2), m.WinRate.StringFixed(2), m.MaxDrawdown.StringFixed(2), stats.Fills, stats.GridReplaces)
	if stats.StopLoss {
		s += fmt.Sprintf(" | stop-loss @ %.4f", stats.StopPrice)
	}
	return s
}

func initOpts(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func axisOpts() (opts.XAxis, opts.YAxis) {
	return opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}, opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}
}

func buildPriceChart(stats backtest.RunStats, xAxis []string) *charts.Line {
	x, y := axisOpts()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(priceHeightPx)),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", stats.Symbol, stats.Interval),
			Subtitle:      subtitle(stats),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(x),
		charts.WithYAxisOpts(y),
	)
	prices := make([]float64, len(stats.Points))
	for i, p := range stats.Points {
		prices[i] = p.Price
	}
	lower, upper := gridBounds(stats.Points, stats.Grids)

	var levels []opts.MarkLineNameYAxisItem
	if len(stats.Grids) > 0 {
		for _, lv := range stats.Grids[len(stats.Grids)-1].Levels {
			levels = append(levels, opts.MarkLineNameYAxisItem{Name: fmt.Sprintf("%.4f", lv), YAxis: lv})
		}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Price", toLineData(prices),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorPrice, Width: 2}),
		charts.WithMarkLineNameYAxisItemOpts(levels...),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{Symbol: []string{"none"}, LineStyle: &opts.LineStyle{Color: colorLevel, Type: "dashed", Opacity: opts.Float(0.5)}}),
	)
	line.AddSeries("Grid lower", toLineData(lower), charts.WithLineStyleOpts(opts.LineStyle{Color: colorGridLower, Width: 1, Type: "dotted"}))
	line.AddSeries("Grid upper", toLineData(upper), charts.WithLineStyleOpts(opts.LineStyle{Color: colorGridUpper, Width: 1, Type: "dotted"}))
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func buildProfitChart(stats backtest.RunStats, xAxis []string) *charts.Line {
	x, y := axisOpts()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(profitHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative Profit", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(x),
		charts.WithYAxisOpts(y),
	)
	profit := make([]float64, len(stats.Points))
	for i, p := range stats.Points {
		profit[i] = p.Profit
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Profit", toLineData(profit),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorProfit, Width: 2}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorProfit, Opacity: opts.Float(0.15)}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	return line
}

func buildOrdersChart(stats backtest.RunStats, xAxis []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(ordersHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: "Open Orders", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	data := make([]opts.BarData, len(stats.Points))
	for i, p := range stats.Points {
		data[i] = opts.BarData{Value: p.OpenOrders, ItemStyle: &opts.ItemStyle{Color: colorOrders, Opacity: opts.Float(0.6)}}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Open orders", data)
	return bar
}

// gridBounds 按时间把每个采样点映射到当时生效网格的上下沿。
func gridBounds(points []backtest.Point, grids []backtest.GridMark) (lower, upper []float64) {
	lower = make([]float64, len(points))
	upper = make([]float64, len(points))
	g := -1
	for i, p := range points {
		for g+1 < len(grids) && !grids[g+1].Time.After(p.Time) {
			g++
		}
		if g < 0 || len(grids[g].Levels) == 0 {
			lower[i], upper[i] = math.NaN(), math.NaN()
			continue
		}
		lv := grids[g].Levels
		lower[i], upper[i] = lv[0], lv[len(lv)-1]
	}
	return lower, upper
}

func buildXAxis(points []backtest.Point) []string {
	x := make([]string, len(points))
	for i, p := range points {
		x[i] = p.Time.UTC().Format("01-02 15:04")
	}
	return x
}

func toLineData(series []float64) []opts.LineData {
	line := make([]opts.LineData, len(series))
	for i, v := range series {
		if math.IsNaN(v) {
			line[i] = opts.LineData{Value: nil}
			continue
		}
		line[i] = opts.LineData{Value: round(v, 4)}
	}
	return line
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		parent, cancel := chromedp.NewContext(ctx)
		defer cancel()
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
