// Package backtest 拉取并缓存历史 K 线，把它们逐根回放给真实的控制循环。
package backtest

import (
	"context"
	"fmt"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/gateway/gate"
	"gridbot/internal/market"
)

// FetchRequest 描述一次远端 K 线请求。
type FetchRequest struct {
	Symbol   string
	Interval string
	Start    int64 // Unix ms
	End      int64 // Unix ms（可选；0 表示不限制）
	Limit    int
}

// CandleSource 统一不同交易所的历史 K 线拉取。
type CandleSource interface {
	Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error)
	Name() string
}

// NewCandleSource 按名称创建数据源（binance | gate）。
func NewCandleSource(name string, cfg config.ExchangeConfig) (CandleSource, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch name {
	case "", "binance":
		return NewBinanceSource(cfg.RESTBaseURL, timeout), nil
	case "gate":
		src, err := gate.New(gate.Config{RESTBaseURL: cfg.GateRESTURL, HTTPTimeout: timeout})
		if err != nil {
			return nil, err
		}
		return &GateSource{src: src}, nil
	default:
		return nil, fmt.Errorf("unsupported candle source: %s", name)
	}
}

// GateSource 把 Gate 永续合约 K 线适配为 CandleSource。
type GateSource struct {
	src *gate.Source
}

func (g *GateSource) Name() string { return g.src.Name() }

func (g *GateSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	if req.Start > 0 {
		end := req.End
		if end <= 0 {
			end = time.Now().UnixMilli()
		}
		return g.src.FetchRange(ctx, req.Symbol, req.Interval, req.Start, end)
	}
	return g.src.FetchHistory(ctx, req.Symbol, req.Interval, req.Limit)
}
