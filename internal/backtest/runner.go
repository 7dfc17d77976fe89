package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gridbot/internal/engine"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/paper"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/pkg/symbol"
	"gridbot/internal/risk"
	"gridbot/internal/scheduler"

	"github.com/google/uuid"
)

// BotFactory 在给定 venue 与回放时钟上装配一个引擎。
type BotFactory func(venue exchange.Venue, clock func() time.Time) (*engine.Bot, error)

// Request 描述一次回放。Start 为零时取最近 Limit 根 K 线。
type Request struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
	Limit    int
	// Warmup 根 K 线只用于指标历史，不参与撮合。
	Warmup int
}

type Runner struct {
	source  CandleSource
	store   *Store
	factory BotFactory
}

// NewRunner store 可为空，此时不缓存 K 线也不保存结果。
func NewRunner(source CandleSource, store *Store, factory BotFactory) *Runner {
	return &Runner{source: source, store: store, factory: factory}
}

// LoadCandles 优先读缓存；缓存不完整时从数据源分页补齐并写回。
func (r *Runner) LoadCandles(ctx context.Context, req Request) ([]market.Candle, error) {
	dur, ok := scheduler.ParseIntervalDuration(req.Interval)
	if !ok {
		return nil, fmt.Errorf("invalid interval %q", req.Interval)
	}
	sym := symbol.ToBinance(req.Symbol)
	if req.Start.IsZero() {
		return r.loadLatest(ctx, sym, req)
	}
	end := req.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	startMs, endMs := req.Start.UnixMilli(), end.UnixMilli()
	if endMs < startMs {
		return nil, fmt.Errorf("backtest end %s is before start %s", end, req.Start)
	}
	expected := int((endMs-startMs)/dur.Milliseconds()) + 1
	if r.store != nil {
		cached, err := r.store.RangeCandles(ctx, sym, req.Interval, startMs, endMs)
		if err != nil {
			logger.Warnf("read candle cache %s %s failed: %v", sym, req.Interval, err)
		} else if len(cached) >= expected {
			logger.Infof("candle cache hit %s %s: %d candles", sym, req.Interval, len(cached))
			return cached, nil
		}
	}
	fetched, err := r.fetchRange(ctx, sym, req.Interval, startMs, endMs, dur)
	if err != nil {
		return nil, err
	}
	if r.store == nil {
		return fetched, nil
	}
	if _, err := r.store.InsertCandles(ctx, sym, req.Interval, fetched); err != nil {
		logger.Warnf("write candle cache %s %s failed: %v", sym, req.Interval, err)
		return fetched, nil
	}
	return r.store.RangeCandles(ctx, sym, req.Interval, startMs, endMs)
}

func (r *Runner) loadLatest(ctx context.Context, sym string, req Request) ([]market.Candle, error) {
	candles, err := r.source.Fetch(ctx, FetchRequest{Symbol: sym, Interval: req.Interval, Limit: req.Limit})
	if err != nil {
		if r.store == nil {
			return nil, err
		}
		cached, cacheErr := r.store.LatestCandles(ctx, sym, req.Interval, req.Limit)
		if cacheErr != nil || len(cached) == 0 {
			return nil, err
		}
		logger.Warnf("fetch %s %s from %s failed, using %d cached candles: %v", sym, req.Interval, r.source.Name(), len(cached), err)
		return cached, nil
	}
	if r.store != nil {
		if _, err := r.store.InsertCandles(ctx, sym, req.Interval, candles); err != nil {
			logger.Warnf("write candle cache %s %s failed: %v", sym, req.Interval, err)
		}
	}
	return dedupe(candles), nil
}

func (r *Runner) fetchRange(ctx context.Context, sym, interval string, startMs, endMs int64, dur time.Duration) ([]market.Candle, error) {
	var out []market.Candle
	cursor := startMs
	for cursor <= endMs {
		batch, err := r.source.Fetch(ctx, FetchRequest{Symbol: sym, Interval: interval, Start: cursor, End: endMs, Limit: binanceMaxLimit})
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s from %s: %w", sym, interval, r.source.Name(), err)
		}
		if len(batch) == 0 {
			break
		}
		out = append(out, batch...)
		next := batch[len(batch)-1].OpenTime + dur.Milliseconds()
		if next <= cursor {
			break
		}
		cursor = next
	}
	logger.Infof("fetched %d %s %s candles from %s", len(out), sym, interval, r.source.Name())
	return dedupe(out), nil
}

func dedupe(candles []market.Candle) []market.Candle {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].OpenTime < candles[j].OpenTime })
	out := candles[:0]
	for i, c := range candles {
		if i > 0 && c.OpenTime == out[len(out)-1].OpenTime {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// Run 逐根回放 K 线驱动引擎，止损或数据耗尽时结束。
func (r *Runner) Run(ctx context.Context, req Request) (RunStats, error) {
	if r.factory == nil {
		return RunStats{}, errors.New("backtest runner requires bot factory")
	}
	candles, err := r.LoadCandles(ctx, req)
	if err != nil {
		return RunStats{}, err
	}
	if len(candles) <= req.Warmup {
		return RunStats{}, fmt.Errorf("backtest needs more than %d candles, got %d", req.Warmup, len(candles))
	}
	feed := NewReplayFeed(req.Symbol, candles, req.Warmup)
	venue := paper.New(feed).WithClock(feed.Now)
	bot, err := r.factory(venue, feed.Now)
	if err != nil {
		return RunStats{}, fmt.Errorf("build engine: %w", err)
	}
	stats := RunStats{
		ID:         uuid.NewString(),
		Symbol:     symbol.ToBinance(req.Symbol),
		Interval:   req.Interval,
		Strategy:   bot.Strategy().Name(),
		Start:      feed.Now(),
		StartPrice: feed.Current().Close,
		Candles:    len(candles),
	}
	if err := bot.Start(ctx); err != nil {
		return stats, fmt.Errorf("start grid: %w", err)
	}
	defer bot.Shutdown()
	stats.addGrid(feed.Now(), bot.ActiveGrid())

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		report, err := bot.Cycle(ctx)
		stats.Cycles++
		var stop *risk.StopLossTriggered
		switch {
		case errors.As(err, &stop):
			stats.StopLoss = true
			stats.StopPrice = stop.StopPrice.InexactFloat64()
		case err != nil:
			stats.Errors++
			logger.Warnf("backtest cycle %s @ %s failed: %v", stats.Symbol, feed.Now().Format(time.RFC3339), err)
		case report.Signals == nil:
			stats.Skipped++
		}
		stats.observe(feed.Now(), feed.Current().Close, report, bot)
		if stats.StopLoss || !feed.Advance() {
			break
		}
	}

	bot.Shutdown()
	stats.Metrics = bot.Status().Metrics
	stats.End = feed.Now()
	stats.EndPrice = feed.Current().Close
	stats.FinishedAt = time.Now().UTC()
	logger.Infof("backtest %s %s done: cycles=%d fills=%d replaces=%d profit=%s stop_loss=%v",
		stats.Symbol, stats.Interval, stats.Cycles, stats.Fills, stats.GridReplaces, stats.Metrics.TotalProfit, stats.StopLoss)
	if r.store != nil {
		if err := r.store.SaveRun(ctx, stats); err != nil {
			logger.Warnf("save backtest run %s failed: %v", stats.ID, err)
		}
	}
	return stats, nil
}

func (s *RunStats) observe(at time.Time, price float64, report engine.CycleReport, bot *engine.Bot) {
	for _, o := range report.Filled {
		s.Fills++
		if o.Side == exchange.SideBuy {
			s.BuyFills++
		} else {
			s.SellFills++
		}
	}
	if report.GridReplaced {
		s.GridReplaces++
		s.addGrid(at, bot.ActiveGrid())
	}
	st := bot.Status()
	s.Points = append(s.Points, Point{
		Time:       at,
		Price:      price,
		Profit:     st.Metrics.TotalProfit.InexactFloat64(),
		OpenOrders: len(st.ActiveOrders),
	})
}

func (s *RunStats) addGrid(at time.Time, snap grid.Snapshot) {
	levels := make([]float64, 0, len(snap.Levels))
	for _, p := range snap.Prices() {
		levels = append(levels, p.InexactFloat64())
	}
	s.Grids = append(s.Grids, GridMark{Time: at, Mode: string(snap.Mode), Levels: levels})
}
