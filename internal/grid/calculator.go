package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculator 根据区间、格数与资金生成网格。
type Calculator struct {
	lower   decimal.Decimal
	upper   decimal.Decimal
	count   int
	capital decimal.Decimal
	nowFn   func() time.Time
}

// NewCalculator 校验 lower < upper、count >= 1、capital > 0。
func NewCalculator(lower, upper decimal.Decimal, count int, capital decimal.Decimal) (*Calculator, error) {
	fail := func(reason string) error {
		return &InvalidRangeError{Lower: lower, Upper: upper, Count: count, Capital: capital, Reason: reason}
	}
	switch {
	case !lower.LessThan(upper):
		return nil, fail("lower must be below upper")
	case count < 1:
		return nil, fail("count must be >= 1")
	case !capital.IsPositive():
		return nil, fail("capital must be > 0")
	}
	return &Calculator{lower: lower, upper: upper, count: count, capital: capital, nowFn: time.Now}, nil
}

func (c *Calculator) Lower() decimal.Decimal   { return c.lower }
func (c *Calculator) Upper() decimal.Decimal   { return c.upper }
func (c *Calculator) Count() int               { return c.count }
func (c *Calculator) Capital() decimal.Decimal { return c.capital }

// Contains 判断价格是否落在 [lower, upper] 内。
func (c *Calculator) Contains(price decimal.Decimal) bool {
	return !price.LessThan(c.lower) && !price.GreaterThan(c.upper)
}

// ComputeStatic 生成 count+1 个等距价位（含上下边界），每格数量为 capital/upper/count。
// 按 upper 定量保证全部成交时占用资金不超过 capital。
func (c *Calculator) ComputeStatic() (Snapshot, error) {
	if c == nil {
		return Snapshot{}, &InvalidRangeError{Reason: "calculator not initialised"}
	}
	return Snapshot{
		Mode:      ModeStatic,
		Lower:     c.lower,
		Upper:     c.upper,
		Count:     c.count,
		Precision: -1,
		Levels:    c.levels(c.count, -1),
		CreatedAt: c.nowFn(),
	}, nil
}

// ComputeDynamic 按波动率调整格数：max(1, floor(count*volatility/100))。
// 波动越大网格越密；价格按 precision 位小数取整。
func (c *Calculator) ComputeDynamic(price, volatility decimal.Decimal, precision int32) (Snapshot, error) {
	if c == nil {
		return Snapshot{}, &InvalidRangeError{Reason: "calculator not initialised"}
	}
	if !c.Contains(price) {
		return Snapshot{}, &OutOfRangeError{Price: price, Lower: c.lower, Upper: c.upper}
	}
	adjusted := int(decimal.NewFromInt(int64(c.count)).Mul(volatility).Div(hundred).Floor().IntPart())
	if adjusted < 1 {
		adjusted = 1
	}
	return Snapshot{
		Mode:       ModeDynamic,
		Lower:      c.lower,
		Upper:      c.upper,
		Count:      adjusted,
		Volatility: volatility,
		Precision:  precision,
		Levels:     c.levels(adjusted, precision),
		CreatedAt:  c.nowFn(),
	}, nil
}

// levels 线性插值生成 n+1 个价位；precision < 0 表示不取整。
func (c *Calculator) levels(n int, precision int32) []Level {
	span := c.upper.Sub(c.lower)
	denom := decimal.NewFromInt(int64(n))
	qty := c.capital.Div(c.upper).Div(denom)
	out := make([]Level, n+1)
	for i := 0; i <= n; i++ {
		var price decimal.Decimal
		switch i {
		case 0:
			price = c.lower
		case n:
			price = c.upper
		default:
			price = c.lower.Add(span.Mul(decimal.NewFromInt(int64(i))).Div(denom))
		}
		if precision >= 0 {
			price = price.Round(precision)
		}
		out[i] = Level{Price: price, Quantity: qty}
	}
	return out
}
