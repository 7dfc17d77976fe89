package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GridSnapshotModel 保存每次生效的网格快照，价格以十进制字符串存储。
type GridSnapshotModel struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol     string         `gorm:"column:symbol;index:idx_snapshot_symbol_time"`
	Mode       string         `gorm:"column:mode"`
	Lower      string         `gorm:"column:lower_price"`
	Upper      string         `gorm:"column:upper_price"`
	Count      int            `gorm:"column:grid_count"`
	Volatility string         `gorm:"column:volatility"`
	Precision  int32          `gorm:"column:price_precision"`
	Levels     datatypes.JSON `gorm:"column:levels"`
	CreatedAt  int64          `gorm:"column:created_at;index:idx_snapshot_symbol_time"`
}

func (GridSnapshotModel) TableName() string { return "grid_snapshots" }

// OrderModel 以交易所订单号为主键，状态变化时整行覆盖。
type OrderModel struct {
	OrderID   string `gorm:"column:order_id;primaryKey"`
	ClientID  string `gorm:"column:client_id"`
	Symbol    string `gorm:"column:symbol;index"`
	Side      string `gorm:"column:side"`
	Price     string `gorm:"column:price"`
	Quantity  string `gorm:"column:quantity"`
	Status    string `gorm:"column:status;index"`
	CreatedAt int64  `gorm:"column:created_at"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (OrderModel) TableName() string { return "grid_orders" }

// TradeModel 是账本中的一笔已实现盈亏。
type TradeModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol     string `gorm:"column:symbol;index"`
	PnL        string `gorm:"column:pnl"`
	RecordedAt int64  `gorm:"column:recorded_at"`
}

func (TradeModel) TableName() string { return "grid_trades" }

func FromSnapshot(symbol string, snap grid.Snapshot) (GridSnapshotModel, error) {
	levels, err := json.Marshal(snap.Levels)
	if err != nil {
		return GridSnapshotModel{}, fmt.Errorf("encode levels: %w", err)
	}
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return GridSnapshotModel{
		Symbol:     symbol,
		Mode:       string(snap.Mode),
		Lower:      snap.Lower.String(),
		Upper:      snap.Upper.String(),
		Count:      snap.Count,
		Volatility: snap.Volatility.String(),
		Precision:  snap.Precision,
		Levels:     datatypes.JSON(levels),
		CreatedAt:  created.UnixMilli(),
	}, nil
}

func (m GridSnapshotModel) Snapshot() (grid.Snapshot, error) {
	lower, err := decimal.NewFromString(m.Lower)
	if err != nil {
		return grid.Snapshot{}, fmt.Errorf("decode lower price: %w", err)
	}
	upper, err := decimal.NewFromString(m.Upper)
	if err != nil {
		return grid.Snapshot{}, fmt.Errorf("decode upper price: %w", err)
	}
	vol, err := decimal.NewFromString(orZero(m.Volatility))
	if err != nil {
		return grid.Snapshot{}, fmt.Errorf("decode volatility: %w", err)
	}
	var levels []grid.Level
	if len(m.Levels) > 0 {
		if err := json.Unmarshal(m.Levels, &levels); err != nil {
			return grid.Snapshot{}, fmt.Errorf("decode levels: %w", err)
		}
	}
	return grid.Snapshot{
		Mode:       grid.Mode(m.Mode),
		Lower:      lower,
		Upper:      upper,
		Count:      m.Count,
		Volatility: vol,
		Precision:  m.Precision,
		Levels:     levels,
		CreatedAt:  time.UnixMilli(m.CreatedAt).UTC(),
	}, nil
}

func FromOrder(o exchange.OrderRecord) OrderModel {
	updated := o.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return OrderModel{
		OrderID:   o.ID,
		ClientID:  o.ClientID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Price:     o.Price.String(),
		Quantity:  o.Quantity.String(),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UnixMilli(),
		UpdatedAt: updated.UnixMilli(),
	}
}

// Order 还原订单；无法解析的价格或数量记为 0。
func (m OrderModel) Order() exchange.OrderRecord {
	price, _ := decimal.NewFromString(m.Price)
	qty, _ := decimal.NewFromString(m.Quantity)
	return exchange.OrderRecord{
		ID:        m.OrderID,
		ClientID:  m.ClientID,
		Symbol:    m.Symbol,
		Side:      exchange.Side(m.Side),
		Price:     price,
		Quantity:  qty,
		Status:    exchange.Status(m.Status),
		CreatedAt: time.UnixMilli(m.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(m.UpdatedAt).UTC(),
	}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
