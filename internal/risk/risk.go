// Package risk 评估止损与移动止损。
package risk

import (
	"fmt"
	"sync"

	"gridbot/internal/logger"

	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

// StopLossTriggered 是终止信号而非普通错误：引擎收到后执行收尾并退出。
type StopLossTriggered struct {
	Price     decimal.Decimal
	StopPrice decimal.Decimal
}

func (e *StopLossTriggered) Error() string {
	return fmt.Sprintf("stop-loss triggered: price %s < stop %s", e.Price, e.StopPrice)
}

// State 风控状态快照。TrailingStopPrice 在启用期间只升不降。
type State struct {
	StopLossPrice     *decimal.Decimal `json:"stop_loss_price,omitempty"`
	TrailingStopPrice *decimal.Decimal `json:"trailing_stop_price,omitempty"`
	TrailingEnabled   bool             `json:"trailing_enabled"`
	TrailingPct       decimal.Decimal  `json:"trailing_pct"`
	Triggered         bool             `json:"triggered"`
}

// Decision 是一次评估的结果。
type Decision struct {
	TrailingUpdated bool
	TrailingStop    *decimal.Decimal
}

// Config 风控参数；StopLoss 为 nil 表示不启用止损。
type Config struct {
	StopLoss        *decimal.Decimal
	TrailingEnabled bool
	TrailingPct     decimal.Decimal
}

// Manager 持有风控状态。每轮循环调用一次 Evaluate。
type Manager struct {
	mu        sync.Mutex
	stopLoss  *decimal.Decimal
	enabled   bool
	pct       decimal.Decimal
	trailing  *decimal.Decimal
	triggered *StopLossTriggered
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.TrailingEnabled && (!cfg.TrailingPct.IsPositive() || !cfg.TrailingPct.LessThan(decOne)) {
		return nil, fmt.Errorf("trailing stop percentage must be in (0,1), got %s", cfg.TrailingPct)
	}
	m := &Manager{enabled: cfg.TrailingEnabled, pct: cfg.TrailingPct}
	if cfg.StopLoss != nil && cfg.StopLoss.IsPositive() {
		sl := *cfg.StopLoss
		m.stopLoss = &sl
	}
	return m, nil
}

// Evaluate 先更新移动止损，再检查止损。止损一旦触发，后续调用始终返回同一触发结果。
//
// 移动止损规则：未设置，或 price > trail/(1-pct)（隐含高点抬升）时，trail = price*(1-pct)。
// 用上一次的 trail 做门限，价格回落时不会下移。
func (m *Manager) Evaluate(price decimal.Decimal) (Decision, error) {
	if m == nil {
		return Decision{}, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.triggered != nil {
		return Decision{TrailingStop: copyDec(m.trailing)}, m.triggered
	}
	var dec Decision
	if m.enabled {
		keep := decOne.Sub(m.pct)
		if m.trailing == nil || price.GreaterThan(m.trailing.Div(keep)) {
			next := price.Mul(keep)
			m.trailing = &next
			dec.TrailingUpdated = true
			logger.Infof("trailing stop updated to %s (price %s)", next, price)
		}
	}
	dec.TrailingStop = copyDec(m.trailing)
	if m.stopLoss != nil && price.LessThan(*m.stopLoss) {
		m.triggered = &StopLossTriggered{Price: price, StopPrice: *m.stopLoss}
		logger.Warnf("stop-loss triggered at %s (stop %s)", price, *m.stopLoss)
		return dec, m.triggered
	}
	return dec, nil
}

// Triggered 报告止损是否已触发。
func (m *Manager) Triggered() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggered != nil
}

func (m *Manager) State() State {
	if m == nil {
		return State{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		StopLossPrice:     copyDec(m.stopLoss),
		TrailingStopPrice: copyDec(m.trailing),
		TrailingEnabled:   m.enabled,
		TrailingPct:       m.pct,
		Triggered:         m.triggered != nil,
	}
}

func copyDec(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
