package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side 订单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide 接受 buy/sell（大小写不敏感）。
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown order side %q", s)
}

// Status 订单状态；filled 与 cancelled 为终态。
type Status string

const (
	StatusOpen      Status = "open"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool { return s == StatusFilled || s == StatusCancelled }

// OrderRecord 是一笔已被 venue 接受的限价单。
type OrderRecord struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id,omitempty"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Key 用于按 side+price 匹配网格价位与挂单。
func (o OrderRecord) Key() string {
	return OrderKey(o.Side, o.Price)
}

// OrderKey 生成 side@price 形式的匹配键，价格去除尾随零。
func OrderKey(side Side, price decimal.Decimal) string {
	return string(side) + "@" + price.String()
}
