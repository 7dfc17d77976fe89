// Package gate 以 Gate.io USDT 永续合约行情作为 market.Source，
// 供模拟盘与回测使用（只读，不下单）。
package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/pkg/symbol"
	"gridbot/internal/scheduler"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"
)

const (
	venueName           = "gate"
	gateMaxHistoryLimit = 2000
	defaultGateREST     = "https://api.gateio.ws/api/v4"
)

// Config 行情客户端参数。Settle 为合约结算币种，默认 usdt。
type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	Settle      string
}

type Source struct {
	cfg  Config
	rest *gateapi.APIClient
}

var _ market.Source = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	cfg.RESTBaseURL = strings.TrimRight(strings.TrimSpace(cfg.RESTBaseURL), "/")
	if cfg.RESTBaseURL == "" {
		cfg.RESTBaseURL = defaultGateREST
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.Settle = strings.ToLower(strings.TrimSpace(cfg.Settle)); cfg.Settle == "" {
		cfg.Settle = "usdt"
	}
	conf := gateapi.NewConfiguration()
	conf.BasePath = cfg.RESTBaseURL
	conf.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	return &Source{cfg: cfg, rest: gateapi.NewAPIClient(conf)}, nil
}

func (s *Source) Name() string { return venueName }

func (s *Source) LatestPrice(ctx context.Context, sym string) (float64, error) {
	contract := symbol.ToGate(sym)
	tickers, _, err := s.rest.FuturesApi.ListFuturesTickers(ctx, s.cfg.Settle, &gateapi.ListFuturesTickersOpts{
		Contract: optional.NewString(contract),
	})
	if err != nil {
		return 0, classify("price", err)
	}
	for _, tk := range tickers {
		if !strings.EqualFold(tk.Contract, contract) {
			continue
		}
		price := parseFloat(tk.Last)
		if price <= 0 {
			return 0, &exchange.ExchangeError{Venue: venueName, Op: "price", Message: fmt.Sprintf("bad last price %q", tk.Last)}
		}
		return price, nil
	}
	return 0, &exchange.ExchangeError{Venue: venueName, Op: "price", Message: "no ticker for " + contract}
}

func (s *Source) FetchHistory(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > gateMaxHistoryLimit {
		limit = gateMaxHistoryLimit
	}
	return s.candlesticks(ctx, sym, interval, &gateapi.ListFuturesCandlesticksOpts{
		Limit: optional.NewInt32(int32(limit)),
	})
}

// FetchRange 按时间区间（Unix ms，闭区间）拉取 K 线。Gate 不允许 limit 与 from/to 同时使用。
func (s *Source) FetchRange(ctx context.Context, sym, interval string, startMs, endMs int64) ([]market.Candle, error) {
	if startMs <= 0 || endMs < startMs {
		return nil, fmt.Errorf("invalid range %d-%d", startMs, endMs)
	}
	return s.candlesticks(ctx, sym, interval, &gateapi.ListFuturesCandlesticksOpts{
		From: optional.NewInt64(startMs / 1000),
		To:   optional.NewInt64(endMs / 1000),
	})
}

func (s *Source) candlesticks(ctx context.Context, sym, interval string, opts *gateapi.ListFuturesCandlesticksOpts) ([]market.Candle, error) {
	contract := symbol.ToGate(sym)
	if contract == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	opts.Interval = optional.NewString(interval)
	kls, _, err := s.rest.FuturesApi.ListFuturesCandlesticks(ctx, s.cfg.Settle, contract, opts)
	if err != nil {
		logger.Errorf("[gate] fetch kline failed %s %s: %v", contract, interval, err)
		return nil, classify("klines", err)
	}
	dur, hasDur := scheduler.ParseIntervalDuration(interval)
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		openTime := int64(kl.T * 1000)
		closeTime := openTime
		if hasDur {
			closeTime = openTime + dur.Milliseconds() - 1
		}
		out = append(out, market.Candle{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Open:      parseFloat(kl.O),
			High:      parseFloat(kl.H),
			Low:       parseFloat(kl.L),
			Close:     parseFloat(kl.C),
			Volume:    parseFloat(kl.Sum),
		})
	}
	if hasDur {
		out = scheduler.DropUnclosedKline(out, dur)
	}
	return out, nil
}

// classify 将 Gate 的 label 错误映射为 ExchangeError。
func classify(op string, err error) error {
	var apiErr gateapi.GateAPIError
	if errors.As(err, &apiErr) {
		return &exchange.ExchangeError{Venue: venueName, Op: op, Code: apiErr.Label, Message: apiErr.Message, Err: err}
	}
	var generic gateapi.GenericOpenAPIError
	if errors.As(err, &generic) {
		return &exchange.ExchangeError{Venue: venueName, Op: op, Message: generic.Error(), Err: err}
	}
	return exchange.ClassifyTransport(venueName, op, err)
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
