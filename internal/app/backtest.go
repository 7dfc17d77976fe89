package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gridbot/internal/analysis/visual"
	"gridbot/internal/backtest"
	"gridbot/internal/config"
	"gridbot/internal/engine"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/notifier"
	"gridbot/internal/logger"
)

var backtestTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

// RunBacktest 用 backtest 配置回放历史 K 线，写出报告并返回统计。
func RunBacktest(ctx context.Context, cfg *config.Config) (backtest.RunStats, error) {
	if cfg == nil {
		return backtest.RunStats{}, fmt.Errorf("nil config")
	}
	bt := cfg.Backtest
	start, err := parseBacktestTime(bt.Start)
	if err != nil {
		return backtest.RunStats{}, fmt.Errorf("backtest.start: %w", err)
	}
	end, err := parseBacktestTime(bt.End)
	if err != nil {
		return backtest.RunStats{}, fmt.Errorf("backtest.end: %w", err)
	}
	src, err := backtest.NewCandleSource(bt.Source, cfg.Exchange)
	if err != nil {
		return backtest.RunStats{}, err
	}
	st, err := backtest.NewStore(bt.DataDir)
	if err != nil {
		return backtest.RunStats{}, err
	}
	defer st.Close()

	factory := func(venue exchange.Venue, clock func() time.Time) (*engine.Bot, error) {
		return NewBot(cfg, BotDeps{Venue: venue, Notifier: notifier.Noop{}, Clock: clock})
	}
	stats, err := backtest.NewRunner(src, st, factory).Run(ctx, backtest.Request{
		Symbol:   cfg.Trading.Symbol,
		Interval: bt.Interval,
		Start:    start,
		End:      end,
		Limit:    bt.Limit,
		Warmup:   cfg.Trading.HistoryLimit,
	})
	if err != nil {
		return stats, err
	}
	if bt.ReportPath != "" {
		if err := visual.WriteReport(ctx, bt.ReportPath, stats, bt.ReportPNG); err != nil {
			logger.Warnf("write backtest report %s failed: %v", bt.ReportPath, err)
		} else {
			logger.Infof("backtest report written to %s", bt.ReportPath)
		}
	}
	return stats, nil
}

func parseBacktestTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range backtestTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want RFC3339 or YYYY-MM-DD)", raw)
}
