// Package grid 计算网格价位与每格下单数量。
package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode 区分静态网格与按波动率重算的动态网格。
type Mode string

const (
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
)

// Level 是一个价位及其下单数量，生成后不再修改。
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Snapshot 是一次网格计算的完整结果。任意时刻引擎只持有一个活动快照，
// 重算时整体替换。
type Snapshot struct {
	Mode       Mode            `json:"mode"`
	Lower      decimal.Decimal `json:"lower"`
	Upper      decimal.Decimal `json:"upper"`
	Count      int             `json:"count"`
	Volatility decimal.Decimal `json:"volatility"`
	Precision  int32           `json:"precision"`
	Levels     []Level         `json:"levels"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Prices 返回按升序排列的价位。
func (s Snapshot) Prices() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s.Levels))
	for i, lv := range s.Levels {
		out[i] = lv.Price
	}
	return out
}

// Equal 判断两份快照的价位与数量是否一致（忽略生成时间）。
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Mode != other.Mode || len(s.Levels) != len(other.Levels) {
		return false
	}
	for i := range s.Levels {
		if !s.Levels[i].Price.Equal(other.Levels[i].Price) || !s.Levels[i].Quantity.Equal(other.Levels[i].Quantity) {
			return false
		}
	}
	return true
}

// Empty 表示快照没有任何价位。
func (s Snapshot) Empty() bool { return len(s.Levels) == 0 }
