// Package performance 记录成交盈亏并计算胜率与最大回撤。
package performance

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gridbot/internal/logger"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Trade 是一条只追加的盈亏记录：正数为卖出实现利润，负数为买入占用资金。
type Trade struct {
	PnL        decimal.Decimal `json:"pnl"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// State 是账本的累计状态。PeakProfit 与 MaxDrawdown 只增不减。
type State struct {
	TotalTrades   int             `json:"total_trades"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	PeakProfit    decimal.Decimal `json:"peak_profit"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown"`
}

// Metrics 是对外只读的绩效摘要。
type Metrics struct {
	TotalTrades   int             `json:"total_trades"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	WinRate       decimal.Decimal `json:"win_rate"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	PeakProfit    decimal.Decimal `json:"peak_profit"`
}

// TradeListener 在每次记账后被调用（持久化、指标上报）。
type TradeListener func(Trade, Metrics)

// Ledger 绩效账本，并发安全。
type Ledger struct {
	mu        sync.Mutex
	state     State
	trades    []Trade
	maxKeep   int
	listeners []TradeListener
	nowFn     func() time.Time
}

// NewLedger 创建账本；maxKeep<=0 时保留全部成交记录。
func NewLedger(maxKeep int) *Ledger {
	return &Ledger{maxKeep: maxKeep, nowFn: time.Now}
}

// WithClock 替换记账时间源，回放时使用 K 线时间。
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	if l != nil && now != nil {
		l.nowFn = now
	}
	return l
}

// OnTrade 注册记账监听器。
func (l *Ledger) OnTrade(fn TradeListener) {
	if l == nil || fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// RecordTrade 记一笔盈亏。pnl == 0 计为亏损。
func (l *Ledger) RecordTrade(pnl decimal.Decimal) Metrics {
	if l == nil {
		return Metrics{}
	}
	trade := Trade{PnL: pnl, RecordedAt: l.nowFn()}
	l.mu.Lock()
	l.apply(pnl)
	l.trades = append(l.trades, trade)
	if l.maxKeep > 0 && len(l.trades) > l.maxKeep {
		l.trades = append([]Trade(nil), l.trades[len(l.trades)-l.maxKeep:]...)
	}
	m := l.metricsLocked()
	listeners := append([]TradeListener(nil), l.listeners...)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(trade, m)
	}
	return m
}

// Restore 用历史成交重放账本（不触发监听器），用于重启后恢复。
func (l *Ledger) Restore(trades []Trade) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tr := range trades {
		l.apply(tr.PnL)
		l.trades = append(l.trades, tr)
	}
	if l.maxKeep > 0 && len(l.trades) > l.maxKeep {
		l.trades = append([]Trade(nil), l.trades[len(l.trades)-l.maxKeep:]...)
	}
}

func (l *Ledger) apply(pnl decimal.Decimal) {
	s := &l.state
	s.TotalTrades++
	s.TotalProfit = s.TotalProfit.Add(pnl)
	if pnl.IsPositive() {
		s.WinningTrades++
	} else {
		s.LosingTrades++
	}
	if s.TotalProfit.GreaterThan(s.PeakProfit) {
		s.PeakProfit = s.TotalProfit
	}
	if dd := s.PeakProfit.Sub(s.TotalProfit); dd.GreaterThan(s.MaxDrawdown) {
		s.MaxDrawdown = dd
	}
}

// Metrics 返回当前摘要，无副作用。
func (l *Ledger) Metrics() Metrics {
	if l == nil {
		return Metrics{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metricsLocked()
}

// State 返回累计状态副本。
func (l *Ledger) State() State {
	if l == nil {
		return State{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Trades 返回最近的成交记录副本。
func (l *Ledger) Trades() []Trade {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Trade(nil), l.trades...)
}

func (l *Ledger) metricsLocked() Metrics {
	s := l.state
	winRate := decimal.Zero
	if s.TotalTrades > 0 {
		winRate = decimal.NewFromInt(int64(s.WinningTrades)).Mul(hundred).Div(decimal.NewFromInt(int64(s.TotalTrades)))
	}
	return Metrics{
		TotalTrades:   s.TotalTrades,
		TotalProfit:   s.TotalProfit,
		WinRate:       winRate,
		MaxDrawdown:   s.MaxDrawdown,
		WinningTrades: s.WinningTrades,
		LosingTrades:  s.LosingTrades,
		PeakProfit:    s.PeakProfit,
	}
}

// Summary 以多行文本渲染绩效，用于日志与通知。
func (m Metrics) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Trades: %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "Total Profit: %s\n", m.TotalProfit.StringFixed(4))
	fmt.Fprintf(&b, "Win Rate: %s%%\n", m.WinRate.StringFixed(2))
	fmt.Fprintf(&b, "Max Drawdown: %s", m.MaxDrawdown.StringFixed(4))
	return b.String()
}

// LogMetrics 以块日志输出当前绩效。
func (l *Ledger) LogMetrics(title string) {
	if l == nil {
		return
	}
	logger.InfoBlock(title + "\n" + l.Metrics().Summary())
}
