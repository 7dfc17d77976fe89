package store

import (
	"context"
	"fmt"
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/performance"
	"gridbot/internal/store/model"

	"github.com/shopspring/decimal"
)

// Journal 把引擎的领域对象（快照、订单、成交）映射到仓储。
type Journal struct {
	st     Store
	symbol string
}

func NewJournal(st Store, symbol string) *Journal {
	return &Journal{st: st, symbol: symbol}
}

func (j *Journal) SaveSnapshot(ctx context.Context, snap grid.Snapshot) error {
	m, err := model.FromSnapshot(j.symbol, snap)
	if err != nil {
		return err
	}
	return j.st.Snapshots().Save(ctx, &m)
}

// LatestSnapshot 返回最近一次保存的快照；ok=false 表示尚无记录。
func (j *Journal) LatestSnapshot(ctx context.Context) (grid.Snapshot, bool, error) {
	m, err := j.st.Snapshots().Latest(ctx, j.symbol)
	if err != nil || m == nil {
		return grid.Snapshot{}, false, err
	}
	snap, err := m.Snapshot()
	if err != nil {
		return grid.Snapshot{}, false, fmt.Errorf("snapshot %d: %w", m.ID, err)
	}
	return snap, true, nil
}

// SaveGrid 在同一事务里写入快照和当前挂单，重启时二者一致。
func (j *Journal) SaveGrid(ctx context.Context, snap grid.Snapshot, orders []exchange.OrderRecord) (err error) {
	m, err := model.FromSnapshot(j.symbol, snap)
	if err != nil {
		return err
	}
	uow, err := j.st.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin grid tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()
	if err = uow.Snapshots().Save(ctx, &m); err != nil {
		return err
	}
	for _, o := range orders {
		om := model.FromOrder(o)
		if om.Symbol == "" {
			om.Symbol = j.symbol
		}
		if err = uow.Orders().Save(ctx, &om); err != nil {
			return fmt.Errorf("order %s: %w", o.ID, err)
		}
	}
	return uow.Commit()
}

func (j *Journal) SaveOrder(ctx context.Context, o exchange.OrderRecord) error {
	m := model.FromOrder(o)
	if m.Symbol == "" {
		m.Symbol = j.symbol
	}
	return j.st.Orders().Save(ctx, &m)
}

func (j *Journal) RecentOrders(ctx context.Context, limit int) ([]exchange.OrderRecord, error) {
	rows, err := j.st.Orders().ListRecent(ctx, j.symbol, limit)
	if err != nil {
		return nil, err
	}
	out := make([]exchange.OrderRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Order())
	}
	return out, nil
}

func (j *Journal) SaveTrade(ctx context.Context, t performance.Trade) error {
	at := t.RecordedAt
	if at.IsZero() {
		at = time.Now()
	}
	return j.st.Trades().Insert(ctx, &model.TradeModel{
		Symbol:     j.symbol,
		PnL:        t.PnL.String(),
		RecordedAt: at.UnixMilli(),
	})
}

// Trades 按记账顺序返回成交，用于恢复账本。
func (j *Journal) Trades(ctx context.Context) ([]performance.Trade, error) {
	rows, err := j.st.Trades().List(ctx, j.symbol, 0)
	if err != nil {
		return nil, err
	}
	out := make([]performance.Trade, 0, len(rows))
	for _, r := range rows {
		pnl, err := decimal.NewFromString(r.PnL)
		if err != nil {
			return nil, fmt.Errorf("trade %d pnl %q: %w", r.ID, r.PnL, err)
		}
		out = append(out, performance.Trade{PnL: pnl, RecordedAt: time.UnixMilli(r.RecordedAt).UTC()})
	}
	return out, nil
}
