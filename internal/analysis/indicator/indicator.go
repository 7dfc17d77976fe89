// Package indicator 提供网格决策所需的纯函数指标：RSI、EMA、MACD、布林带。
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// MACDResult 三条序列按最新值对齐，长度相同。
type MACDResult struct {
	MACD      []float64 `json:"macd"`
	Signal    []float64 `json:"signal"`
	Histogram []float64 `json:"histogram"`
}

// LastHistogram 返回最新的柱值；序列为空时 ok=false。
func (m MACDResult) LastHistogram() (float64, bool) {
	if len(m.Histogram) == 0 {
		return 0, false
	}
	return m.Histogram[len(m.Histogram)-1], true
}

// Bands 是布林带的上中下轨。
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// RSI 使用 Wilder 平滑：先取前 period 个涨跌的简单均值，再按 (period-1)/period 递推。
// 平均跌幅为 0 时返回 100。
func RSI(prices []float64, period int) (float64, error) {
	if period < 1 {
		return 0, fmt.Errorf("rsi: period must be >= 1, got %d", period)
	}
	if len(prices) < period+1 {
		return 0, insufficient("rsi", period+1, len(prices))
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	n := float64(period)
	avgGain, avgLoss := gain/n, loss/n
	for i := period + 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}
		avgGain = (avgGain*(n-1) + up) / n
		avgLoss = (avgLoss*(n-1) + down) / n
	}
	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// EMA 返回 len(prices)-period+1 个值，首值为前 period 个价格的简单均值。
func EMA(prices []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("ema: period must be >= 1, got %d", period)
	}
	if len(prices) < period {
		return nil, insufficient("ema", period, len(prices))
	}
	if period == 1 {
		return append([]float64(nil), prices...), nil
	}
	out := talib.Ema(prices, period)
	return out[period-1:], nil
}

// MACD 计算快慢线差、信号线与柱状图，所有序列按尾部（最新值）对齐。
// 快线比慢线长，若从头部（最旧值）配对，会把不同时刻的 EMA 相减；
// 这里刻意不采用那种配对，最后一个 MACD 值始终是最新快线减最新慢线。
func MACD(prices []float64, fast, slow, signal int) (MACDResult, error) {
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("macd: fast period %d must be < slow period %d", fast, slow)
	}
	if need := slow + signal - 1; len(prices) < need {
		return MACDResult{}, insufficient("macd", need, len(prices))
	}
	fastLine, err := EMA(prices, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowLine, err := EMA(prices, slow)
	if err != nil {
		return MACDResult{}, err
	}
	fastLine, slowLine = alignTail(fastLine, slowLine)
	macdLine := make([]float64, len(slowLine))
	for i := range slowLine {
		macdLine[i] = fastLine[i] - slowLine[i]
	}
	signalLine, err := EMA(macdLine, signal)
	if err != nil {
		return MACDResult{}, err
	}
	macdAligned, signalLine := alignTail(macdLine, signalLine)
	hist := make([]float64, len(signalLine))
	for i := range signalLine {
		hist[i] = macdAligned[i] - signalLine[i]
	}
	return MACDResult{MACD: macdAligned, Signal: signalLine, Histogram: hist}, nil
}

// Bollinger 基于最近 period 个价格计算，标准差为总体标准差。
func Bollinger(prices []float64, period int, mult float64) (Bands, error) {
	if period < 1 {
		return Bands{}, fmt.Errorf("bollinger: period must be >= 1, got %d", period)
	}
	if len(prices) < period {
		return Bands{}, insufficient("bollinger", period, len(prices))
	}
	window := prices[len(prices)-period:]
	if period == 1 {
		return Bands{Upper: window[0], Middle: window[0], Lower: window[0]}, nil
	}
	upper, middle, lower := talib.BBands(window, period, mult, mult, talib.SMA)
	last := period - 1
	b := Bands{Upper: upper[last], Middle: middle[last], Lower: lower[last]}
	if math.IsNaN(b.Upper) || math.IsNaN(b.Lower) {
		return Bands{}, fmt.Errorf("bollinger: non-finite result")
	}
	return b, nil
}

// Bandwidth 返回 (upper-lower)/middle 的百分比，中轨为 0 时返回 0。
func Bandwidth(b Bands) float64 {
	if b.Middle == 0 {
		return 0
	}
	return (b.Upper - b.Lower) / b.Middle * 100
}

func alignTail(a, b []float64) ([]float64, []float64) {
	switch {
	case len(a) > len(b):
		return a[len(a)-len(b):], b
	case len(b) > len(a):
		return a, b[len(b)-len(a):]
	}
	return a, b
}
