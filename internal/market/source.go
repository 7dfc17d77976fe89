package market

import "context"

// Source 是只读行情来源（最新价 + 历史 K 线），由交易所网关与回放数据实现。
type Source interface {
	Name() string
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
