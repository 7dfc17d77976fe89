package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppLogPath       = "logs/gridbot.log"
	defaultAppLogMaxSizeMB  = 50
	defaultAppLogBackups    = 5
	defaultAppHTTPAddr      = ":9992"
	defaultAppDBPath        = "data/gridbot.db"
	defaultExchangeID       = "paper"
	defaultExchangeTimeout  = 15
	defaultExchangeRate     = 10
	defaultMarketSource     = "binance"
	defaultTrailingPct      = 0.05
	defaultVolatilitySource = "rsi"
	defaultPricePrecision   = 2
	defaultSellMarkupPct    = 0.01
	defaultHistoryInterval  = "1h"
	defaultStrategyType     = "default"
	defaultPollInterval     = 60
	defaultBacktestSource   = "binance"
	defaultBacktestDataDir  = "data/candles"
	defaultBacktestInterval = "1h"
	defaultBacktestLimit    = 1000
	defaultBacktestReport   = "data/backtest/report.html"
)

// defaultStrategyParameters 是内置策略共用的指标参数默认值。
var defaultStrategyParameters = map[string]any{
	"volatility_period":  14,
	"rsi_threshold":      70.0,
	"macd_fast_period":   12,
	"macd_slow_period":   26,
	"macd_signal_period": 9,
	"bollinger_period":   20,
	"bollinger_std_dev":  2.0,
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Performance.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.db_path", &a.DBPath, defaultAppDBPath),
		intFieldDefault("app.log_max_size_mb", &a.LogMaxSizeMB, defaultAppLogMaxSizeMB),
		intFieldDefault("app.log_max_backups", &a.LogMaxBackups, defaultAppLogBackups),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.id", &e.ID, defaultExchangeID),
		stringFieldDefault("exchange.market_source", &e.MarketSource, defaultMarketSource),
		boolFieldDefault("exchange.sandbox", &e.Sandbox, true),
		intFieldDefault("exchange.timeout_seconds", &e.TimeoutSeconds, defaultExchangeTimeout),
		fieldDefault{
			key:   "exchange.rate_limit_per_second",
			need:  func() bool { return e.RateLimitPerSecond <= 0 },
			apply: func() { e.RateLimitPerSecond = defaultExchangeRate },
		},
	)
	e.ID = strings.ToLower(strings.TrimSpace(e.ID))
	e.MarketSource = strings.ToLower(strings.TrimSpace(e.MarketSource))
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	applyFieldDefaults(keys,
		stringFieldDefault("trading.volatility_source", &t.VolatilitySource, defaultVolatilitySource),
		stringFieldDefault("trading.history_interval", &t.HistoryInterval, defaultHistoryInterval),
		stringFieldDefault("trading.strategy.type", &t.Strategy.Type, defaultStrategyType),
		intFieldDefault("trading.price_precision", &t.PricePrecision, defaultPricePrecision),
		fieldDefault{
			key:   "trading.trailing_stop.percentage",
			need:  func() bool { return t.TrailingStop.Percentage <= 0 },
			apply: func() { t.TrailingStop.Percentage = defaultTrailingPct },
		},
		fieldDefault{
			key:   "trading.sell_markup_pct",
			need:  func() bool { return t.SellMarkupPct <= 0 },
			apply: func() { t.SellMarkupPct = defaultSellMarkupPct },
		},
	)
	t.VolatilitySource = strings.ToLower(strings.TrimSpace(t.VolatilitySource))
	t.Strategy.Type = strings.ToLower(strings.TrimSpace(t.Strategy.Type))
	if t.Strategy.Parameters == nil {
		t.Strategy.Parameters = make(map[string]any, len(defaultStrategyParameters))
	}
	for k, v := range defaultStrategyParameters {
		if _, ok := t.Strategy.Parameters[k]; !ok {
			t.Strategy.Parameters[k] = v
		}
	}
	if t.HistoryLimit <= 0 {
		if sig, err := t.Strategy.Signals(); err == nil {
			t.HistoryLimit = sig.RequiredHistory()
		}
	}
}

func (p *PerformanceConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("performance.poll_interval_seconds", &p.PollIntervalSeconds, defaultPollInterval),
		boolFieldDefault("performance.restore_ledger", &p.RestoreLedger, true),
	)
	if p.ErrorBackoffSeconds <= 0 {
		p.ErrorBackoffSeconds = p.PollIntervalSeconds
	}
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.source", &b.Source, defaultBacktestSource),
		stringFieldDefault("backtest.data_dir", &b.DataDir, defaultBacktestDataDir),
		stringFieldDefault("backtest.interval", &b.Interval, defaultBacktestInterval),
		stringFieldDefault("backtest.report_path", &b.ReportPath, defaultBacktestReport),
		intFieldDefault("backtest.limit", &b.Limit, defaultBacktestLimit),
	)
	b.Source = strings.ToLower(strings.TrimSpace(b.Source))
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
