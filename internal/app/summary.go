package app

import (
	"fmt"
	"strings"

	"gridbot/internal/config"
)

// StartupSummary 在启动时打印一次关键配置。
type StartupSummary struct {
	Exchange   string
	Market     string
	Symbol     string
	Range      string
	GridCount  int
	Investment float64
	Strategy   string
	Dynamic    string
	StopLoss   string
	Trailing   string
	Poll       string
	HTTPAddr   string
	DBPath     string
	Telegram   bool
}

func newStartupSummary(cfg *config.Config) *StartupSummary {
	t := cfg.Trading
	s := &StartupSummary{
		Exchange:   cfg.Exchange.ID,
		Symbol:     t.Symbol,
		Range:      fmt.Sprintf("%g - %g", t.LowerPrice, t.UpperPrice),
		GridCount:  t.GridCount,
		Investment: t.TotalInvestment,
		Strategy:   t.Strategy.Type,
		Dynamic:    "off",
		StopLoss:   "off",
		Trailing:   "off",
		Poll:       fmt.Sprintf("%ds (backoff %ds)", cfg.Performance.PollIntervalSeconds, cfg.Performance.ErrorBackoffSeconds),
		HTTPAddr:   cfg.App.HTTPAddr,
		DBPath:     cfg.App.DBPath,
		Telegram:   cfg.Notify.Telegram.Enabled,
	}
	if cfg.Exchange.ID == "paper" {
		s.Market = cfg.Exchange.MarketSource
	} else if cfg.Exchange.Sandbox {
		s.Market = "testnet"
	}
	if t.DynamicGrids {
		s.Dynamic = fmt.Sprintf("on (%s > %g)", t.VolatilitySource, t.VolatilityThreshold)
	}
	if t.StopLoss > 0 {
		s.StopLoss = fmt.Sprintf("%g", t.StopLoss)
	}
	if t.TrailingStop.Enabled {
		s.Trailing = fmt.Sprintf("%g%%", t.TrailingStop.Percentage*100)
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("%*s\n", 30+len("GRIDBOT STARTUP")/2, "GRIDBOT STARTUP")
	fmt.Println(strings.Repeat("=", 60))
	exchange := s.Exchange
	if s.Market != "" {
		exchange += " (" + s.Market + ")"
	}
	rows := [][2]string{
		{"exchange", exchange},
		{"symbol", s.Symbol},
		{"range", s.Range},
		{"grids", fmt.Sprintf("%d", s.GridCount)},
		{"investment", fmt.Sprintf("%g", s.Investment)},
		{"strategy", s.Strategy},
		{"dynamic", s.Dynamic},
		{"stop-loss", s.StopLoss},
		{"trailing", s.Trailing},
		{"poll", s.Poll},
		{"http", formatOptional(s.HTTPAddr)},
		{"db", formatOptional(s.DBPath)},
		{"telegram", fmt.Sprintf("%v", s.Telegram)},
	}
	for _, r := range rows {
		fmt.Printf("  %-12s %s\n", r[0], r[1])
	}
	fmt.Println(strings.Repeat("=", 60))
}

func formatOptional(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
