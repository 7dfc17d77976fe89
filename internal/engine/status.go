package engine

import (
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/performance"
	"gridbot/internal/risk"

	"github.com/shopspring/decimal"
)

// Status 是引擎状态的只读快照。
type Status struct {
	Symbol       string                 `json:"symbol"`
	Venue        string                 `json:"venue"`
	Strategy     string                 `json:"strategy"`
	State        RunState               `json:"state"`
	CurrentPrice decimal.Decimal        `json:"current_price"`
	ActiveOrders []exchange.OrderRecord `json:"active_orders"`
	Metrics      performance.Metrics    `json:"performance_metrics"`
	Risk         risk.State             `json:"risk"`
	Grid         grid.Snapshot          `json:"grid"`
	LastCycleAt  *time.Time             `json:"last_cycle_at,omitempty"`
	LastError    string                 `json:"last_error,omitempty"`
	Breaker      string                 `json:"breaker,omitempty"`
}

func (b *Bot) Status() Status {
	if b == nil {
		return Status{}
	}
	b.mu.RLock()
	st := Status{
		Symbol:       b.cfg.Symbol,
		Venue:        b.venue.Name(),
		Strategy:     b.strat.Name(),
		State:        b.state,
		CurrentPrice: b.lastPrice,
		Grid:         b.active,
		LastError:    b.lastErr,
	}
	if !b.lastCycle.IsZero() {
		at := b.lastCycle.UTC()
		st.LastCycleAt = &at
	}
	b.mu.RUnlock()
	st.ActiveOrders = b.coord.Active()
	st.Metrics = b.ledger.Metrics()
	st.Risk = b.risk.State()
	if b.breaker != nil {
		st.Breaker = b.breaker.State().String()
	}
	return st
}

// Trades 返回账本中的成交记录。
func (b *Bot) Trades() []performance.Trade {
	if b == nil {
		return nil
	}
	return b.ledger.Trades()
}
