package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gridbot/internal/app"
	"gridbot/internal/config"
	"gridbot/internal/logger"
	"gridbot/internal/risk"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("GRIDBOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := logger.OpenFile(logger.FileOptions{
		Path:       cfg.App.LogPath,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
		out := logger.Tee(logFile)
		log.SetOutput(out)
		logger.SetOutput(out)
	}
	logger.SetFormat(cfg.App.LogFormat)
	logger.SetLevel(cfg.App.LogLevel)
	if unknown, err := config.Lint(cfgPath); err != nil {
		logger.Warnf("config lint skipped: %v", err)
	} else {
		for _, key := range unknown {
			logger.Warnf("config: %s", key)
		}
	}
	logger.Infof("✓ 配置加载成功（环境=%s，交易对=%s）", cfg.App.Env, cfg.Trading.Symbol)

	if len(os.Args) > 1 && os.Args[1] == "backtest" {
		if err := runBacktest(ctx, cfg); err != nil {
			log.Fatalf("回测失败: %v", err)
		}
		return
	}

	watcher, err := config.NewWatcher(cfgPath, cfg)
	if err != nil {
		log.Fatalf("初始化配置监听失败: %v", err)
	}
	a, err := app.NewApp(cfg, watcher)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		var stopLoss *risk.StopLossTriggered
		if errors.As(err, &stopLoss) {
			logger.Warnf("engine stopped: %v", stopLoss)
			return
		}
		log.Fatalf("运行失败: %v", err)
	}
}

func runBacktest(ctx context.Context, cfg *config.Config) error {
	stats, err := app.RunBacktest(ctx, cfg)
	if err != nil {
		return err
	}
	m := stats.Metrics
	logger.InfoBlock(fmt.Sprintf(`Backtest %s
  symbol      %s (%s, %s)
  candles     %d (cycles %d, skipped %d, errors %d)
  fills       %d (buy %d / sell %d)
  grids       %d replacements
  price       %.4f -> %.4f
  stop-loss   %v
  trades      %d (win rate %s%%)
  profit      %s (max drawdown %s)`,
		stats.ID,
		stats.Symbol, stats.Interval, stats.Strategy,
		stats.Candles, stats.Cycles, stats.Skipped, stats.Errors,
		stats.Fills, stats.BuyFills, stats.SellFills,
		stats.GridReplaces,
		stats.StartPrice, stats.EndPrice,
		stats.StopLoss,
		m.TotalTrades, m.WinRate.StringFixed(2),
		m.TotalProfit.StringFixed(4), m.MaxDrawdown.StringFixed(4)))
	return nil
}
