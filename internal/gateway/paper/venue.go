// Package paper 提供基于真实行情的模拟撮合 venue，用于 paper 交易与回测。
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/pkg/convert"
	"gridbot/internal/pkg/symbol"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const venueName = "paper"

// Venue 在内存中维护挂单；每次取价时按最新价撮合：
// 买单在价格 <= 挂单价时成交，卖单在价格 >= 挂单价时成交，成交价即挂单价。
type Venue struct {
	feed market.Source
	now  func() time.Time

	mu     sync.Mutex
	orders map[string]*exchange.OrderRecord
	fills  []exchange.OrderRecord
}

func New(feed market.Source) *Venue {
	return &Venue{
		feed:   feed,
		now:    func() time.Time { return time.Now().UTC() },
		orders: make(map[string]*exchange.OrderRecord),
	}
}

// WithClock 替换时间源（回放时使用 K 线时间）。
func (v *Venue) WithClock(now func() time.Time) *Venue {
	if now != nil {
		v.now = now
	}
	return v
}

func (v *Venue) Name() string { return venueName }

// CurrentPrice 读取行情来源最新价并撮合挂单。
func (v *Venue) CurrentPrice(ctx context.Context, sym string) (decimal.Decimal, error) {
	if v.feed == nil {
		return decimal.Zero, &exchange.NetworkError{Venue: venueName, Op: "current_price", Err: fmt.Errorf("no market feed")}
	}
	px, err := v.feed.LatestPrice(ctx, sym)
	if err != nil {
		return decimal.Zero, err
	}
	price := convert.Decimal(px)
	if !price.IsPositive() {
		return decimal.Zero, &exchange.ExchangeError{Venue: venueName, Op: "current_price", Message: fmt.Sprintf("invalid price %v", px)}
	}
	v.Match(sym, price)
	return price, nil
}

func (v *Venue) PriceHistory(ctx context.Context, sym, interval string, limit int) ([]float64, error) {
	if v.feed == nil {
		return nil, &exchange.NetworkError{Venue: venueName, Op: "price_history", Err: fmt.Errorf("no market feed")}
	}
	candles, err := v.feed.FetchHistory(ctx, sym, interval, limit)
	if err != nil {
		return nil, err
	}
	return market.Closes(candles), nil
}

func (v *Venue) PlaceLimitOrder(_ context.Context, sym string, side exchange.Side, qty, price decimal.Decimal) (exchange.OrderRecord, error) {
	if side != exchange.SideBuy && side != exchange.SideSell {
		return exchange.OrderRecord{}, &exchange.ExchangeError{Venue: venueName, Op: "place_order", Message: fmt.Sprintf("invalid side %q", side)}
	}
	if !qty.IsPositive() || !price.IsPositive() {
		return exchange.OrderRecord{}, &exchange.ExchangeError{Venue: venueName, Op: "place_order", Message: "quantity and price must be positive"}
	}
	now := v.now()
	rec := exchange.OrderRecord{
		ID:        uuid.NewString(),
		Symbol:    normalize(sym),
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Status:    exchange.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.mu.Lock()
	stored := rec
	v.orders[rec.ID] = &stored
	v.mu.Unlock()
	return rec, nil
}

func (v *Venue) CancelOrder(_ context.Context, sym, orderID string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	o, ok := v.orders[orderID]
	if !ok || o.Symbol != normalize(sym) || o.Status != exchange.StatusOpen {
		return false, nil
	}
	o.Status = exchange.StatusCancelled
	o.UpdatedAt = v.now()
	return true, nil
}

func (v *Venue) OpenOrders(_ context.Context, sym string) ([]exchange.OrderRecord, error) {
	sym = normalize(sym)
	v.mu.Lock()
	out := make([]exchange.OrderRecord, 0, len(v.orders))
	for _, o := range v.orders {
		if o.Symbol == sym && o.Status == exchange.StatusOpen {
			out = append(out, *o)
		}
	}
	v.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID) })
	return out, nil
}

func (v *Venue) OrderStatus(_ context.Context, sym, orderID string) (exchange.Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	o, ok := v.orders[orderID]
	if !ok || o.Symbol != normalize(sym) {
		return "", &exchange.ExchangeError{Venue: venueName, Op: "order_status", Message: fmt.Sprintf("order %s not found", orderID)}
	}
	return o.Status, nil
}

// Match 以 price 撮合 sym 的挂单，返回本次成交的订单。
func (v *Venue) Match(sym string, price decimal.Decimal) []exchange.OrderRecord {
	sym = normalize(sym)
	now := v.now()
	var filled []exchange.OrderRecord
	v.mu.Lock()
	for _, o := range v.orders {
		if o.Symbol != sym || o.Status != exchange.StatusOpen {
			continue
		}
		crossed := (o.Side == exchange.SideBuy && price.LessThanOrEqual(o.Price)) ||
			(o.Side == exchange.SideSell && price.GreaterThanOrEqual(o.Price))
		if !crossed {
			continue
		}
		o.Status = exchange.StatusFilled
		o.UpdatedAt = now
		filled = append(filled, *o)
	}
	v.fills = append(v.fills, filled...)
	v.mu.Unlock()
	for _, o := range filled {
		logger.Debugf("paper fill %s %s %s @ %s (market %s)", o.ID, o.Side, o.Quantity, o.Price, price)
	}
	return filled
}

// Fills 返回所有历史成交副本。
func (v *Venue) Fills() []exchange.OrderRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]exchange.OrderRecord(nil), v.fills...)
}

func normalize(raw string) string { return symbol.ToBinance(raw) }
