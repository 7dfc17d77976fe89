// Package order 维护网格价位与交易所挂单之间的映射，负责下单、撤单与对账。
package order

import (
	"context"
	"sort"
	"sync"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/performance"
	"gridbot/internal/strategy"

	"github.com/shopspring/decimal"
)

// Recorder 接收成交盈亏，通常是 *performance.Ledger。
type Recorder interface {
	RecordTrade(pnl decimal.Decimal) performance.Metrics
}

// OrderListener 在订单被跟踪或进入终态时调用（持久化、指标）。
type OrderListener func(exchange.OrderRecord)

// Result 是单个意图的执行结果；Err 非空时 Order 为 nil。
type Result struct {
	Intent strategy.Intent
	Order  *exchange.OrderRecord
	Err    error
}

// Coordinator 独占某个 symbol 的挂单集合。写操作只应来自控制循环；读操作返回副本。
type Coordinator struct {
	venue    exchange.Venue
	symbol   string
	recorder Recorder
	pricing  strategy.Options

	mu        sync.RWMutex
	orders    map[string]exchange.OrderRecord
	listeners []OrderListener
}

func NewCoordinator(venue exchange.Venue, symbol string, recorder Recorder, pricing strategy.Options) *Coordinator {
	return &Coordinator{
		venue:    venue,
		symbol:   symbol,
		recorder: recorder,
		pricing:  pricing,
		orders:   make(map[string]exchange.OrderRecord),
	}
}

// OnOrder 注册订单变更监听器。
func (c *Coordinator) OnOrder(fn OrderListener) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Coordinator) Symbol() string { return c.symbol }

// Execute 依次执行意图。单个意图失败（校验或交易所拒绝）不影响其余意图。
// 成功下单后记账：买单记 -price*qty，卖单记 Profit。
func (c *Coordinator) Execute(ctx context.Context, intents []strategy.Intent) []Result {
	results := make([]Result, 0, len(intents))
	for _, in := range intents {
		rec, err := c.place(ctx, in)
		if err != nil {
			results = append(results, Result{Intent: in, Err: err})
			continue
		}
		if c.recorder != nil {
			switch in.Side {
			case exchange.SideBuy:
				c.recorder.RecordTrade(in.Price.Mul(in.Quantity).Neg())
			case exchange.SideSell:
				c.recorder.RecordTrade(in.Profit)
			}
		}
		results = append(results, Result{Intent: in, Order: &rec})
	}
	return results
}

// ReplaceGrid 撤掉所有已跟踪挂单（尽力而为），再为新快照每个价位挂一买一卖。
// 非原子：中途崩溃需在重启时 Reconcile。
func (c *Coordinator) ReplaceGrid(ctx context.Context, snap grid.Snapshot) []Result {
	cancelled := c.cancelTracked(ctx)
	logger.Infof("replace grid %s: cancelled %d orders, placing %d levels (%s)", c.symbol, cancelled, len(snap.Levels), snap.Mode)
	return c.placeGrid(ctx, GridIntents(snap, c.pricing))
}

// GridIntents 展开快照为挂单意图：每个价位一买，一卖（价位上浮 markup）。
func GridIntents(snap grid.Snapshot, pricing strategy.Options) []strategy.Intent {
	out := make([]strategy.Intent, 0, len(snap.Levels)*2)
	for _, lv := range snap.Levels {
		sell := pricing.SellPrice(lv.Price)
		out = append(out,
			strategy.Intent{Side: exchange.SideBuy, Price: lv.Price, Quantity: lv.Quantity, Level: lv},
			strategy.Intent{Side: exchange.SideSell, Price: sell, Quantity: lv.Quantity, Level: lv, Profit: sell.Sub(lv.Price)},
		)
	}
	return out
}

func (c *Coordinator) placeGrid(ctx context.Context, intents []strategy.Intent) []Result {
	results := make([]Result, 0, len(intents))
	for _, in := range intents {
		rec, err := c.place(ctx, in)
		if err != nil {
			results = append(results, Result{Intent: in, Err: err})
			continue
		}
		results = append(results, Result{Intent: in, Order: &rec})
	}
	return results
}

func (c *Coordinator) place(ctx context.Context, in strategy.Intent) (exchange.OrderRecord, error) {
	if !in.Price.IsPositive() || !in.Quantity.IsPositive() {
		err := &InvalidOrderError{Intent: in}
		logger.Errorf("skip order %s: %v", c.symbol, err)
		return exchange.OrderRecord{}, err
	}
	rec, err := c.venue.PlaceLimitOrder(ctx, c.symbol, in.Side, in.Quantity, in.Price)
	if err != nil {
		logger.Errorf("place %s %s %s @ %s failed: %v", in.Side, c.symbol, in.Quantity, in.Price, err)
		return exchange.OrderRecord{}, err
	}
	logger.Infof("placed %s limit order %s: %s %s @ %s", in.Side, rec.ID, in.Quantity, c.symbol, in.Price)
	c.track(rec)
	return rec, nil
}

// CancelAll 撤掉已跟踪挂单，并撤掉交易所上该 symbol 的其余挂单，返回撤单数量。
func (c *Coordinator) CancelAll(ctx context.Context) int {
	n := c.cancelTracked(ctx)
	live, err := c.venue.OpenOrders(ctx, c.symbol)
	if err != nil {
		logger.Errorf("list open orders %s failed: %v", c.symbol, err)
		return n
	}
	for _, o := range live {
		if ok, err := c.venue.CancelOrder(ctx, c.symbol, o.ID); err != nil {
			logger.Errorf("cancel untracked order %s failed: %v", o.ID, err)
		} else if ok {
			n++
		}
	}
	return n
}

// cancelTracked 逐个撤单；撤单出错的订单保持跟踪，等待下次重试或 Sync。
func (c *Coordinator) cancelTracked(ctx context.Context) int {
	n := 0
	for _, o := range c.Active() {
		ok, err := c.venue.CancelOrder(ctx, c.symbol, o.ID)
		if err != nil {
			logger.Errorf("cancel order %s (%s @ %s) failed: %v", o.ID, o.Side, o.Price, err)
			continue
		}
		if ok {
			n++
			logger.Infof("cancelled order %s (%s @ %s)", o.ID, o.Side, o.Price)
		}
		o.Status = exchange.StatusCancelled
		c.untrack(o)
	}
	return n
}

// SyncReport 汇总一次同步中进入终态的订单。
type SyncReport struct {
	Filled    []exchange.OrderRecord
	Cancelled []exchange.OrderRecord
}

// Sync 拉取交易所挂单，不在其中的已跟踪订单视为终态并移出跟踪。
// venue 实现 OrderStatusQuerier 时查询真实终态，否则按已成交处理。
func (c *Coordinator) Sync(ctx context.Context) (SyncReport, error) {
	var report SyncReport
	live, err := c.venue.OpenOrders(ctx, c.symbol)
	if err != nil {
		return report, err
	}
	open := make(map[string]struct{}, len(live))
	for _, o := range live {
		open[o.ID] = struct{}{}
	}
	querier, _ := c.venue.(exchange.OrderStatusQuerier)
	for _, o := range c.Active() {
		if _, ok := open[o.ID]; ok {
			continue
		}
		status := exchange.StatusFilled
		if querier != nil {
			st, err := querier.OrderStatus(ctx, c.symbol, o.ID)
			if err != nil {
				logger.Warnf("query order %s status failed: %v", o.ID, err)
				continue
			}
			if !st.Terminal() {
				continue
			}
			status = st
		}
		o.Status = status
		c.untrack(o)
		if status == exchange.StatusFilled {
			report.Filled = append(report.Filled, o)
			logger.Infof("order %s filled: %s %s @ %s", o.ID, o.Side, o.Quantity, o.Price)
		} else {
			report.Cancelled = append(report.Cancelled, o)
		}
	}
	return report, nil
}

// ReconcileReport 汇总启动对账结果。
type ReconcileReport struct {
	Adopted   int
	Cancelled int
	Placed    int
	Failed    int
}

// Reconcile 在启动时比对交易所挂单与快照：匹配的挂单直接接管，多余的撤掉，缺失的补挂。
func (c *Coordinator) Reconcile(ctx context.Context, snap grid.Snapshot) (ReconcileReport, error) {
	var report ReconcileReport
	live, err := c.venue.OpenOrders(ctx, c.symbol)
	if err != nil {
		return report, err
	}
	desired := GridIntents(snap, c.pricing)
	pending := make(map[string][]strategy.Intent, len(desired))
	for _, in := range desired {
		key := exchange.OrderKey(in.Side, in.Price)
		pending[key] = append(pending[key], in)
	}
	for _, o := range live {
		key := o.Key()
		if queue := pending[key]; len(queue) > 0 && queue[0].Quantity.Equal(o.Quantity) {
			pending[key] = queue[1:]
			c.track(o)
			report.Adopted++
			continue
		}
		if ok, err := c.venue.CancelOrder(ctx, c.symbol, o.ID); err != nil {
			logger.Errorf("reconcile: cancel stray order %s failed: %v", o.ID, err)
		} else if ok {
			report.Cancelled++
		}
	}
	var missing []strategy.Intent
	for _, in := range desired {
		key := exchange.OrderKey(in.Side, in.Price)
		if len(pending[key]) > 0 {
			missing = append(missing, pending[key][0])
			pending[key] = pending[key][1:]
		}
	}
	for _, res := range c.placeGrid(ctx, missing) {
		if res.Err != nil {
			report.Failed++
		} else {
			report.Placed++
		}
	}
	logger.Infof("reconcile %s: adopted=%d cancelled=%d placed=%d failed=%d",
		c.symbol, report.Adopted, report.Cancelled, report.Placed, report.Failed)
	return report, nil
}

// Active 返回已跟踪挂单副本，按 side、价格排序。
func (c *Coordinator) Active() []exchange.OrderRecord {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	out := make([]exchange.OrderRecord, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Coordinator) track(o exchange.OrderRecord) {
	if o.Status == "" {
		o.Status = exchange.StatusOpen
	}
	c.mu.Lock()
	c.orders[o.ID] = o
	listeners := append([]OrderListener(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(o)
	}
}

func (c *Coordinator) untrack(o exchange.OrderRecord) {
	c.mu.Lock()
	delete(c.orders, o.ID)
	listeners := append([]OrderListener(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(o)
	}
}
