package config

import (
	"fmt"
	"strings"

	"gridbot/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Performance.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogFormat) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("app.log_format %q is not supported (text|json)", a.LogFormat)
	}
}

func (e *ExchangeConfig) validate() error {
	switch e.ID {
	case "binance":
		if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
			return fmt.Errorf("exchange.api_key and exchange.api_secret are required for %s (or set %s/%s)", e.ID, EnvAPIKey, EnvAPISecret)
		}
	case "paper":
	default:
		return fmt.Errorf("exchange.id %q is not supported (binance|paper)", e.ID)
	}
	switch e.MarketSource {
	case "binance", "gate":
	default:
		return fmt.Errorf("exchange.market_source %q is not supported (binance|gate)", e.MarketSource)
	}
	if e.TimeoutSeconds <= 0 {
		return fmt.Errorf("exchange.timeout_seconds must be > 0")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if t.LowerPrice <= 0 || t.UpperPrice <= 0 {
		return fmt.Errorf("trading.lower_price and trading.upper_price must be > 0")
	}
	if t.LowerPrice >= t.UpperPrice {
		return fmt.Errorf("trading.lower_price must be < trading.upper_price")
	}
	if t.GridCount < 1 {
		return fmt.Errorf("trading.grid_count must be >= 1")
	}
	if t.TotalInvestment <= 0 {
		return fmt.Errorf("trading.total_investment must be > 0")
	}
	if t.StopLoss < 0 {
		return fmt.Errorf("trading.stop_loss must be >= 0")
	}
	if t.TrailingStop.Percentage <= 0 || t.TrailingStop.Percentage >= 1 {
		return fmt.Errorf("trading.trailing_stop.percentage must be in (0,1)")
	}
	switch t.VolatilitySource {
	case "rsi", "bollinger":
	default:
		return fmt.Errorf("trading.volatility_source %q is not supported (rsi|bollinger)", t.VolatilitySource)
	}
	if t.VolatilityThreshold < 0 {
		return fmt.Errorf("trading.volatility_threshold must be >= 0")
	}
	if t.PricePrecision < 0 || t.PricePrecision > 12 {
		return fmt.Errorf("trading.price_precision must be within [0,12]")
	}
	if t.SellMarkupPct <= 0 {
		return fmt.Errorf("trading.sell_markup_pct must be > 0")
	}
	if _, ok := scheduler.ParseIntervalDuration(t.HistoryInterval); !ok {
		return fmt.Errorf("trading.history_interval %q is invalid", t.HistoryInterval)
	}
	if strings.TrimSpace(t.Strategy.Type) == "" {
		return fmt.Errorf("trading.strategy.type is required")
	}
	sig, err := t.Strategy.Signals()
	if err != nil {
		return fmt.Errorf("trading.strategy.parameters: %w", err)
	}
	if sig.VolatilityPeriod < 1 || sig.MACDFastPeriod < 1 || sig.MACDSlowPeriod < 1 || sig.MACDSignalPeriod < 1 || sig.BollingerPeriod < 1 {
		return fmt.Errorf("trading.strategy.parameters periods must be >= 1")
	}
	if sig.MACDFastPeriod >= sig.MACDSlowPeriod {
		return fmt.Errorf("trading.strategy.parameters.macd_fast_period must be < macd_slow_period")
	}
	if t.HistoryLimit < sig.RequiredHistory() {
		return fmt.Errorf("trading.history_limit must be >= %d for the configured indicator periods", sig.RequiredHistory())
	}
	return nil
}

func (p *PerformanceConfig) validate() error {
	if p.PollIntervalSeconds <= 0 {
		return fmt.Errorf("performance.poll_interval_seconds must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	switch b.Source {
	case "binance", "gate":
	default:
		return fmt.Errorf("backtest.source %q is not supported (binance|gate)", b.Source)
	}
	if _, ok := scheduler.ParseIntervalDuration(b.Interval); !ok {
		return fmt.Errorf("backtest.interval %q is invalid", b.Interval)
	}
	return nil
}
