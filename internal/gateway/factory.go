// Package gateway 按配置装配交易所 venue 与行情来源。
package gateway

import (
	"fmt"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/gateway/binance"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/gate"
	"gridbot/internal/gateway/paper"
	"gridbot/internal/market"
)

// NewMarketSource 按名称创建只读行情来源（binance | gate）。
func NewMarketSource(name string, cfg config.ExchangeConfig) (market.Source, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch name {
	case "", "binance":
		return binance.New(binance.Config{
			RESTBaseURL:        cfg.RESTBaseURL,
			Sandbox:            cfg.ID != "paper" && cfg.Sandbox,
			HTTPTimeout:        timeout,
			RateLimitPerSecond: cfg.RateLimitPerSecond,
		})
	case "gate":
		return gate.New(gate.Config{RESTBaseURL: cfg.GateRESTURL, HTTPTimeout: timeout})
	default:
		return nil, fmt.Errorf("unsupported market source: %s", name)
	}
}

// NewVenue 创建交易 venue：binance 直连现货；paper 在 market_source 行情上模拟撮合。
func NewVenue(cfg config.ExchangeConfig) (exchange.Venue, error) {
	switch cfg.ID {
	case "binance":
		return binance.New(binance.Config{
			APIKey:             cfg.APIKey,
			APISecret:          cfg.APISecret,
			RESTBaseURL:        cfg.RESTBaseURL,
			Sandbox:            cfg.Sandbox,
			HTTPTimeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
			RateLimitPerSecond: cfg.RateLimitPerSecond,
		})
	case "paper":
		feed, err := NewMarketSource(cfg.MarketSource, cfg)
		if err != nil {
			return nil, err
		}
		return paper.New(feed), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", cfg.ID)
	}
}
