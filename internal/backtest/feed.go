package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/market"
	"gridbot/internal/pkg/symbol"
)

const replayName = "replay"

// ReplayFeed 以游标回放 K 线：最新价为游标处收盘价，历史只包含游标及之前的 K 线。
type ReplayFeed struct {
	symbol  string
	candles []market.Candle

	mu     sync.RWMutex
	cursor int
}

var _ market.Source = (*ReplayFeed)(nil)

// NewReplayFeed 游标从 warmup 处开始，前面的 K 线只作为指标历史。
func NewReplayFeed(sym string, candles []market.Candle, warmup int) *ReplayFeed {
	start := warmup
	if start >= len(candles) {
		start = len(candles) - 1
	}
	if start < 0 {
		start = 0
	}
	return &ReplayFeed{symbol: symbol.ToBinance(sym), candles: candles, cursor: start}
}

func (f *ReplayFeed) Name() string { return replayName }

func (f *ReplayFeed) LatestPrice(_ context.Context, sym string) (float64, error) {
	if err := f.check(sym); err != nil {
		return 0, err
	}
	return f.Current().Close, nil
}

func (f *ReplayFeed) FetchHistory(_ context.Context, sym, _ string, limit int) ([]market.Candle, error) {
	if err := f.check(sym); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	end := f.cursor + 1
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	return append([]market.Candle(nil), f.candles[start:end]...), nil
}

func (f *ReplayFeed) check(sym string) error {
	if len(f.candles) == 0 {
		return &exchange.ExchangeError{Venue: replayName, Op: "replay", Message: "no candles loaded"}
	}
	if got := symbol.ToBinance(sym); got != f.symbol {
		return fmt.Errorf("replay feed serves %s, got %s", f.symbol, got)
	}
	return nil
}

// Advance 前进一根 K 线；已到末尾时返回 false。
func (f *ReplayFeed) Advance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor+1 >= len(f.candles) {
		return false
	}
	f.cursor++
	return true
}

func (f *ReplayFeed) Current() market.Candle {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.candles) == 0 {
		return market.Candle{}
	}
	return f.candles[f.cursor]
}

// Now 返回游标处 K 线的收盘时间，作为回放时钟。
func (f *ReplayFeed) Now() time.Time {
	return f.Current().Time()
}
