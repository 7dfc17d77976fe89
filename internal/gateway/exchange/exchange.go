// Package exchange 定义网格引擎依赖的交易所（venue）抽象。
// 具体实现见 gateway/binance（现货）与 gateway/paper（模拟撮合）。
package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Venue 是引擎与交易所之间的最小接口。
type Venue interface {
	Name() string

	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// PriceHistory 返回按时间升序的收盘价。
	PriceHistory(ctx context.Context, symbol, interval string, limit int) ([]float64, error)

	PlaceLimitOrder(ctx context.Context, symbol string, side Side, qty, price decimal.Decimal) (OrderRecord, error)

	// CancelOrder 返回 false 表示订单已不存在（已成交或已撤）。
	CancelOrder(ctx context.Context, symbol, orderID string) (bool, error)

	OpenOrders(ctx context.Context, symbol string) ([]OrderRecord, error)
}

// OrderStatusQuerier 由能够查询单个订单终态的 venue 实现。
type OrderStatusQuerier interface {
	OrderStatus(ctx context.Context, symbol, orderID string) (Status, error)
}
