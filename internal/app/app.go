// Package app 负责进程级编排：装配依赖，运行引擎、HTTP 服务与配置热更新。
package app

import (
	"context"
	"fmt"

	"gridbot/internal/config"
	"gridbot/internal/engine"
	"gridbot/internal/logger"
	"gridbot/internal/strategy"
	livehttp "gridbot/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg      *config.Config
	bot      *engine.Bot
	liveHTTP *livehttp.Server
	watcher  *config.Watcher
	cleanup  func()
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。watcher 为空时不热更新。
func NewApp(cfg *config.Config, watcher *config.Watcher) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	a, cleanup, err := initApp(cfg, watcher)
	if err != nil {
		return nil, err
	}
	a.cleanup = cleanup
	return a, nil
}

func newApp(cfg *config.Config, bot *engine.Bot, server *livehttp.Server, watcher *config.Watcher) *App {
	return &App{
		cfg:      cfg,
		bot:      bot,
		liveHTTP: server,
		watcher:  watcher,
		Summary:  newStartupSummary(cfg),
	}
}

// Run 阻塞运行，直到 ctx 结束或引擎停止（止损 / POST /api/live/stop）。
// 止损时返回 *risk.StopLossTriggered。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.bot == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	if a.watcher != nil {
		a.watcher.Subscribe(a.applyConfig)
		group.Go(func() error { return a.watcher.Run(ctx) })
	}
	group.Go(func() error {
		defer cancel()
		return a.bot.Run(ctx)
	})
	return group.Wait()
}

// Close 释放存储等资源，可重复调用。
func (a *App) Close() {
	if a == nil || a.cleanup == nil {
		return
	}
	a.cleanup()
	a.cleanup = nil
}

func (a *App) Bot() *engine.Bot {
	if a == nil {
		return nil
	}
	return a.bot
}

// applyConfig 热更新日志级别、格式与策略；网格区间等参数需重启生效。
func (a *App) applyConfig(next *config.Config) {
	logger.SetFormat(next.App.LogFormat)
	logger.SetLevel(next.App.LogLevel)
	cur := a.cfg.Trading
	nt := next.Trading
	if cur.Symbol != nt.Symbol || cur.LowerPrice != nt.LowerPrice || cur.UpperPrice != nt.UpperPrice ||
		cur.GridCount != nt.GridCount || cur.TotalInvestment != nt.TotalInvestment {
		logger.Warnf("grid range/symbol/investment changed in config; restart required to apply")
	}
	strat, err := strategy.New(nt.Strategy.Type, nt.Strategy.Parameters, PricingOptions(nt))
	if err != nil {
		logger.Errorf("reload strategy %s failed, keeping %s: %v", nt.Strategy.Type, a.bot.Strategy().Name(), err)
		return
	}
	a.bot.UpdateStrategy(strat)
}
