package engine

import (
	"context"
	"errors"
	"fmt"

	"gridbot/internal/analysis/indicator"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/order"
	"gridbot/internal/pkg/circuit"
	"gridbot/internal/risk"
	"gridbot/internal/strategy"

	"github.com/shopspring/decimal"
)

const (
	VolatilityRSI       = "rsi"
	VolatilityBollinger = "bollinger"
)

var (
	highVolatility = decimal.NewFromInt(10)
	lowVolatility  = decimal.NewFromInt(5)
)

// CycleReport 汇总一次循环的结果，供测试与回测统计使用。
type CycleReport struct {
	Price        decimal.Decimal
	Signals      *strategy.Signals
	Intents      []order.Result
	Filled       []exchange.OrderRecord
	Volatility   decimal.Decimal
	GridReplaced bool
	Replacement  []order.Result
	Risk         risk.Decision
}

// Cycle 执行一次控制循环。InsufficientDataError 只跳过决策；止损触发返回 *risk.StopLossTriggered。
func (b *Bot) Cycle(ctx context.Context) (CycleReport, error) {
	b.cycleMu.Lock()
	defer b.cycleMu.Unlock()
	started := b.nowFn()
	report, err := b.cycle(ctx)

	result := "ok"
	var stop *risk.StopLossTriggered
	switch {
	case err == nil:
	case errors.As(err, &stop):
		result = "stop_loss"
	case errors.Is(err, circuit.ErrOpen):
		result = "breaker_open"
	default:
		result = "error"
	}
	b.metrics.ObserveCycle(b.cfg.Symbol, result, b.nowFn().Sub(started))
	b.mu.Lock()
	b.lastCycle = started
	if err != nil {
		b.lastErr = err.Error()
	} else {
		b.lastErr = ""
	}
	b.mu.Unlock()
	return report, err
}

func (b *Bot) cycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	sym := b.cfg.Symbol
	if b.breaker != nil && !b.breaker.Allow() {
		return report, circuit.ErrOpen
	}

	price, err := b.venue.CurrentPrice(ctx, sym)
	if err != nil {
		b.venueFailure(err)
		return report, fmt.Errorf("fetch price %s: %w", sym, err)
	}
	report.Price = price
	b.mu.Lock()
	b.lastPrice = price
	b.mu.Unlock()
	b.metrics.ObservePrice(sym, price)

	synced, err := b.coord.Sync(ctx)
	if err != nil {
		logger.Warnf("sync orders %s failed: %v", sym, err)
	}
	report.Filled = synced.Filled
	for _, o := range synced.Filled {
		b.metrics.ObserveFill(sym, string(o.Side))
	}

	// 风控只依赖当前价，K 线获取失败时也要评估。
	dec, riskErr := b.risk.Evaluate(price)
	report.Risk = dec
	b.metrics.SetTrailingStop(sym, dec.TrailingStop)
	if riskErr != nil {
		var stop *risk.StopLossTriggered
		if errors.As(riskErr, &stop) {
			b.notify(ctx, stopLossMessage(sym, stop, b.ledger.Metrics(), b.nowFn()))
		}
		return report, riskErr
	}

	history, err := b.venue.PriceHistory(ctx, sym, b.cfg.HistoryInterval, b.cfg.HistoryLimit)
	if err != nil {
		b.venueFailure(err)
		return report, fmt.Errorf("fetch price history %s: %w", sym, err)
	}
	if b.breaker != nil {
		b.breaker.RecordSuccess()
	}

	sig, sigErr := computeSignals(history, b.cfg.Signals)
	var short *indicator.InsufficientDataError
	if sigErr != nil && !errors.As(sigErr, &short) {
		return report, fmt.Errorf("compute signals %s: %w", sym, sigErr)
	}

	if short != nil {
		logger.Warnf("skip decisions %s @ %s: %v", sym, price, short)
		b.ledger.LogMetrics("Performance " + sym)
		return report, nil
	}
	report.Signals = &sig

	active := b.ActiveGrid()
	intents := b.Strategy().Decide(price, active, sig)
	if len(intents) > 0 {
		report.Intents = b.coord.Execute(ctx, intents)
		b.observeResults(report.Intents)
		for _, r := range report.Intents {
			if r.Err != nil {
				logger.Errorf("intent %s %s %s @ %s failed (price %s): %v", r.Intent.Side, r.Intent.Quantity, sym, r.Intent.Price, price, r.Err)
			}
		}
	}

	vol := b.volatility(sig)
	report.Volatility = vol
	if b.cfg.DynamicGrids && vol.GreaterThan(b.cfg.VolatilityThreshold) {
		report.GridReplaced, report.Replacement = b.adjustGrid(ctx, price, vol, active)
	}

	b.ledger.LogMetrics("Performance " + sym)
	return report, nil
}

// adjustGrid 按波动率重算网格；结果与当前快照一致时不动挂单。
func (b *Bot) adjustGrid(ctx context.Context, price, vol decimal.Decimal, active grid.Snapshot) (bool, []order.Result) {
	sym := b.cfg.Symbol
	next, err := b.calc.ComputeDynamic(price, vol, b.cfg.PricePrecision)
	if err != nil {
		logger.Warnf("dynamic grid %s @ %s skipped, keeping %s grid: %v", sym, price, active.Mode, err)
		return false, nil
	}
	if next.Equal(active) {
		return false, nil
	}
	logger.Infof("adjusting %s grid on volatility %s: %d -> %d levels", sym, vol, len(active.Levels), len(next.Levels))
	results := b.coord.ReplaceGrid(ctx, next)
	b.observeResults(results)
	b.setActive(next)
	b.persistSnapshot(ctx, next)
	b.metrics.ObserveGrid(sym, string(next.Mode), len(next.Levels), true)
	b.notify(ctx, gridReplacedMessage(sym, active, next, placed(results), len(results), b.nowFn()))
	return true, results
}

// volatility 取波动率：rsi 来源按阈值给出 10/5，bollinger 来源取带宽百分比。
func (b *Bot) volatility(sig strategy.Signals) decimal.Decimal {
	if b.cfg.VolatilitySource == VolatilityBollinger && sig.Bands != nil {
		return decimal.NewFromFloat(indicator.Bandwidth(*sig.Bands))
	}
	if sig.RSI > b.cfg.Signals.RSIThreshold {
		return highVolatility
	}
	return lowVolatility
}

func (b *Bot) venueFailure(err error) {
	if b.breaker == nil {
		return
	}
	if exchange.IsVenueError(err) || errors.Is(err, context.DeadlineExceeded) {
		b.breaker.RecordFailure()
	}
}

// computeSignals 计算 RSI、MACD 与布林带；任一指标数据不足时返回 InsufficientDataError。
func computeSignals(closes []float64, p SignalParams) (strategy.Signals, error) {
	var sig strategy.Signals
	rsi, err := indicator.RSI(closes, p.RSIPeriod)
	if err != nil {
		return sig, err
	}
	sig.RSI = rsi
	macd, err := indicator.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if err != nil {
		return sig, err
	}
	sig.MACD = macd
	if p.BollingerPeriod > 0 {
		bands, err := indicator.Bollinger(closes, p.BollingerPeriod, p.BollingerStdDev)
		if err != nil {
			return sig, err
		}
		sig.Bands = &bands
	}
	return sig, nil
}

