package backtest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gridbot/internal/market"
	"gridbot/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

const (
	defaultBinanceREST = "https://api.binance.com"
	binanceMaxLimit    = 1000
)

// BinanceSource 基于 Binance 现货 REST /api/v3/klines。
type BinanceSource struct {
	baseURL string
	client  *http.Client
}

func NewBinanceSource(base string, timeout time.Duration) *BinanceSource {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = defaultBinanceREST
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BinanceSource{baseURL: base, client: &http.Client{Timeout: timeout}}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	sym := symbol.ToBinance(req.Symbol)
	if sym == "" || req.Interval == "" {
		return nil, fmt.Errorf("symbol/interval is required")
	}
	limit := req.Limit
	if limit <= 0 || limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}
	u, err := url.Parse(b.baseURL + "/api/v3/klines")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("symbol", sym)
	q.Set("interval", req.Interval)
	q.Set("limit", strconv.Itoa(limit))
	if req.Start > 0 {
		q.Set("startTime", strconv.FormatInt(req.Start, 10))
	}
	if req.End > 0 {
		q.Set("endTime", strconv.FormatInt(req.End, 10))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "msg").String()
		return nil, fmt.Errorf("binance klines status %d: %s", resp.StatusCode, msg)
	}
	rows := gjson.ParseBytes(body)
	if !rows.IsArray() {
		return nil, fmt.Errorf("binance klines: unexpected payload")
	}
	out := make([]market.Candle, 0, len(rows.Array()))
	rows.ForEach(func(_, row gjson.Result) bool {
		f := row.Array()
		if len(f) < 7 {
			return true
		}
		c := market.Candle{
			OpenTime:  f[0].Int(),
			Open:      f[1].Float(),
			High:      f[2].Float(),
			Low:       f[3].Float(),
			Close:     f[4].Float(),
			Volume:    f[5].Float(),
			CloseTime: f[6].Int(),
		}
		if len(f) > 8 {
			c.Trades = f[8].Int()
		}
		out = append(out, c)
		return true
	})
	return out, nil
}
