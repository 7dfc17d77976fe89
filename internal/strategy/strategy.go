// Package strategy 把（当前价、网格快照、指标信号）映射为下单意图。
package strategy

import (
	"gridbot/internal/analysis/indicator"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"

	"github.com/shopspring/decimal"
)

// Intent 是策略产出的一次下单意图，由 order.Coordinator 立即消费，不做持久化。
type Intent struct {
	Side     exchange.Side   `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Level    grid.Level      `json:"level"`
	// Profit 仅对卖单有意义：卖价与所在网格价之差。
	Profit decimal.Decimal `json:"profit"`
}

// Signals 是一轮循环计算出的指标快照。
type Signals struct {
	RSI   float64              `json:"rsi"`
	MACD  indicator.MACDResult `json:"macd"`
	Bands *indicator.Bands     `json:"bands,omitempty"`
}

// Strategy 决策接口。实现可返回任意数量的意图；无信号时返回空切片。
type Strategy interface {
	Name() string
	Decide(price decimal.Decimal, snap grid.Snapshot, sig Signals) []Intent
}

// Options 是与交易配置相关、而非策略参数的定价约定。
type Options struct {
	PricePrecision int32
	SellMarkup     decimal.Decimal
}

func (o Options) withDefaults() Options {
	if !o.SellMarkup.IsPositive() {
		o.SellMarkup = decimal.NewFromFloat(0.01)
	}
	if o.PricePrecision < 0 {
		o.PricePrecision = 2
	}
	return o
}

// SellPrice 返回 round(level*(1+markup), precision)。
func (o Options) SellPrice(level decimal.Decimal) decimal.Decimal {
	return level.Mul(decimal.NewFromInt(1).Add(o.SellMarkup)).Round(o.PricePrecision)
}

// sellIntent 的 Profit 按取整后的实际挂单价计算，而非未取整的 level*(1+markup)。
func sellIntent(lv grid.Level, opts Options) Intent {
	sell := opts.SellPrice(lv.Price)
	return Intent{
		Side:     exchange.SideSell,
		Price:    sell,
		Quantity: lv.Quantity,
		Level:    lv,
		Profit:   sell.Sub(lv.Price),
	}
}

func buyIntent(lv grid.Level) Intent {
	return Intent{Side: exchange.SideBuy, Price: lv.Price, Quantity: lv.Quantity, Level: lv}
}

// firstLevelAtOrAbove 返回第一个价格 >= price 的网格下标，没有则返回 -1。
func firstLevelAtOrAbove(levels []grid.Level, price decimal.Decimal) int {
	for i, lv := range levels {
		if !lv.Price.LessThan(price) {
			return i
		}
	}
	return -1
}
