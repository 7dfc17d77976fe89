// Package convert 提供 float64 / decimal / 任意参数值之间的转换。
package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal 将 float64 转为 decimal；NaN 与 Inf 视为 0。
func Decimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// Float 返回 decimal 的 float64 近似值。
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// DecimalPtr 将 0 视为未设置。
func DecimalPtr(v float64) *decimal.Decimal {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	d := decimal.NewFromFloat(v)
	return &d
}

// Number 尝试把配置或 JSON 中的值解析为 float64。
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
