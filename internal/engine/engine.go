// Package engine 驱动网格控制循环：取价、算指标、风控、策略下单、动态重算网格。
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/notifier"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/metrics"
	"gridbot/internal/order"
	"gridbot/internal/performance"
	"gridbot/internal/pkg/circuit"
	"gridbot/internal/risk"
	"gridbot/internal/scheduler"
	"gridbot/internal/strategy"

	"github.com/shopspring/decimal"
)

const finalizeTimeout = 30 * time.Second

// Journal 持久化快照、订单与成交；nil 表示不落盘。
type Journal interface {
	SaveSnapshot(ctx context.Context, snap grid.Snapshot) error
	LatestSnapshot(ctx context.Context) (grid.Snapshot, bool, error)
	SaveOrder(ctx context.Context, o exchange.OrderRecord) error
	SaveTrade(ctx context.Context, t performance.Trade) error
	Trades(ctx context.Context) ([]performance.Trade, error)
}

// GridJournal 是可选能力：快照与挂单在同一事务内落盘。
type GridJournal interface {
	SaveGrid(ctx context.Context, snap grid.Snapshot, orders []exchange.OrderRecord) error
}

// SignalParams 指标周期。
type SignalParams struct {
	RSIPeriod       int
	RSIThreshold    float64
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerPeriod int
	BollingerStdDev float64
}

// Config 是控制循环的运行参数。
type Config struct {
	Symbol              string
	HistoryInterval     string
	HistoryLimit        int
	Signals             SignalParams
	DynamicGrids        bool
	VolatilitySource    string // rsi | bollinger
	VolatilityThreshold decimal.Decimal
	PricePrecision      int32
	PollInterval        time.Duration
	ErrorBackoff        time.Duration
	RestoreLedger       bool
}

// Params 汇总引擎依赖。Journal、Notifier、Metrics、Breaker 可为空。
type Params struct {
	Config      Config
	Venue       exchange.Venue
	Calculator  *grid.Calculator
	Strategy    strategy.Strategy
	Coordinator *order.Coordinator
	Risk        *risk.Manager
	Ledger      *performance.Ledger
	Journal     Journal
	Notifier    notifier.TextNotifier
	Metrics     *metrics.Metrics
	Breaker     *circuit.Breaker
	// Clock 为空时使用 time.Now。
	Clock func() time.Time
}

// RunState 引擎生命周期状态。
type RunState string

const (
	StateIdle     RunState = "idle"
	StateRunning  RunState = "running"
	StateStopping RunState = "stopping"
	StateStopped  RunState = "stopped"
)

// Bot 是单 symbol 的网格机器人。同一时刻只执行一个 cycle。
type Bot struct {
	cfg      Config
	venue    exchange.Venue
	calc     *grid.Calculator
	coord    *order.Coordinator
	risk     *risk.Manager
	ledger   *performance.Ledger
	journal  Journal
	notifier notifier.TextNotifier
	metrics  *metrics.Metrics
	breaker  *circuit.Breaker
	nowFn    func() time.Time

	cycleMu sync.Mutex

	mu        sync.RWMutex
	strat     strategy.Strategy
	active    grid.Snapshot
	state     RunState
	lastPrice decimal.Decimal
	lastCycle time.Time
	lastErr   string
	stopErr   error
	cancel    context.CancelFunc

	startOnce    sync.Once
	startErr     error
	finalizeOnce sync.Once
}

func New(p Params) (*Bot, error) {
	switch {
	case p.Venue == nil:
		return nil, fmt.Errorf("engine: venue is required")
	case p.Calculator == nil:
		return nil, fmt.Errorf("engine: grid calculator is required")
	case p.Strategy == nil:
		return nil, fmt.Errorf("engine: strategy is required")
	case p.Coordinator == nil:
		return nil, fmt.Errorf("engine: order coordinator is required")
	case p.Risk == nil || p.Ledger == nil:
		return nil, fmt.Errorf("engine: risk manager and ledger are required")
	}
	cfg := p.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = cfg.PollInterval
	}
	if cfg.VolatilitySource == "" {
		cfg.VolatilitySource = VolatilityRSI
	}
	n := p.Notifier
	if n == nil {
		n = notifier.Noop{}
	}
	b := &Bot{
		cfg:      cfg,
		venue:    p.Venue,
		calc:     p.Calculator,
		coord:    p.Coordinator,
		risk:     p.Risk,
		ledger:   p.Ledger,
		journal:  p.Journal,
		notifier: n,
		metrics:  p.Metrics,
		breaker:  p.Breaker,
		nowFn:    time.Now,
		strat:    p.Strategy,
		state:    StateIdle,
	}
	if p.Clock != nil {
		b.nowFn = p.Clock
	}
	if b.breaker != nil && b.metrics != nil {
		b.breaker.OnStateChange(func(name string, from, to circuit.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			b.metrics.SetBreakerState(name, int(to))
		})
	}
	return b, nil
}

// Run 启动网格并阻塞执行控制循环，直到 ctx 结束、Stop 被调用或止损触发。
// 返回前总会执行一次 finalize。止损触发时返回 *risk.StopLossTriggered。
func (b *Bot) Run(ctx context.Context) error {
	if b == nil {
		return errors.New("engine: nil bot")
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.mu.Lock()
	b.cancel = cancel
	b.state = StateRunning
	b.mu.Unlock()

	defer b.finalize()
	if err := b.Start(runCtx); err != nil {
		return err
	}

	sched := scheduler.NewPollScheduler("grid:"+b.cfg.Symbol, b.cfg.PollInterval, b.cfg.ErrorBackoff)
	// runCtx 只在迭代边界检查；已开始的 cycle 不随 Stop 取消，下单批次完整执行。
	err := sched.Run(runCtx, func(ctx context.Context) error {
		_, err := b.Cycle(context.WithoutCancel(ctx))
		var stop *risk.StopLossTriggered
		if errors.As(err, &stop) {
			b.mu.Lock()
			b.stopErr = stop
			b.mu.Unlock()
			return fmt.Errorf("%w: %v", scheduler.ErrStop, stop)
		}
		return err
	})
	b.mu.RLock()
	stopErr := b.stopErr
	b.mu.RUnlock()
	if stopErr != nil {
		return stopErr
	}
	if err != nil && !errors.Is(err, scheduler.ErrStop) {
		return err
	}
	return nil
}

// Start 恢复账本并建立初始网格：存在持久化快照时与交易所对账，否则挂静态网格。
// 只执行一次。
func (b *Bot) Start(ctx context.Context) error {
	b.startOnce.Do(func() { b.startErr = b.start(ctx) })
	return b.startErr
}

func (b *Bot) start(ctx context.Context) error {
	sym := b.cfg.Symbol
	if b.journal != nil && b.cfg.RestoreLedger {
		trades, err := b.journal.Trades(ctx)
		if err != nil {
			logger.Warnf("restore ledger %s failed: %v", sym, err)
		} else if len(trades) > 0 {
			b.ledger.Restore(trades)
			logger.Infof("restored %d trades into ledger for %s", len(trades), sym)
		}
	}
	b.wireListeners()

	static, err := b.calc.ComputeStatic()
	if err != nil {
		return fmt.Errorf("compute static grid: %w", err)
	}
	snap := static
	reconciled := false
	if b.journal != nil {
		prev, ok, err := b.journal.LatestSnapshot(ctx)
		switch {
		case err != nil:
			logger.Warnf("load last snapshot %s failed: %v", sym, err)
		case ok && !prev.Empty():
			report, err := b.coord.Reconcile(ctx, prev)
			if err != nil {
				logger.Warnf("reconcile %s against persisted %s grid failed, placing static grid: %v", sym, prev.Mode, err)
			} else {
				snap = prev
				reconciled = true
				logger.Infof("resumed %s grid %s: adopted=%d placed=%d cancelled=%d",
					prev.Mode, sym, report.Adopted, report.Placed, report.Cancelled)
			}
		}
	}
	if !reconciled {
		results := b.coord.ReplaceGrid(ctx, static)
		b.observeResults(results)
		if placed(results) == 0 && len(results) > 0 {
			return fmt.Errorf("initial grid for %s: no order accepted: %w", sym, firstErr(results))
		}
		b.persistSnapshot(ctx, static)
	}
	b.setActive(snap)
	b.metrics.ObserveGrid(sym, string(snap.Mode), len(snap.Levels), false)
	logger.Infof("gridbot started %s: %s grid %s-%s levels=%d strategy=%s",
		sym, snap.Mode, snap.Lower, snap.Upper, len(snap.Levels), b.Strategy().Name())
	b.notify(ctx, startMessage(sym, snap, b.Strategy().Name(), b.venue.Name(), b.nowFn()))
	return nil
}

func (b *Bot) wireListeners() {
	sym := b.cfg.Symbol
	b.coord.OnOrder(func(o exchange.OrderRecord) {
		if b.journal == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.journal.SaveOrder(ctx, o); err != nil {
			logger.Warnf("persist order %s failed: %v", o.ID, err)
		}
	})
	b.ledger.OnTrade(func(t performance.Trade, m performance.Metrics) {
		b.metrics.ObserveLedger(sym, m)
		if b.journal == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.journal.SaveTrade(ctx, t); err != nil {
			logger.Warnf("persist trade %s failed: %v", t.PnL, err)
		}
	})
}

// Stop 请求停止；正在执行的 cycle 会完成当前批次，之后再撤单退出。
func (b *Bot) Stop() {
	if b == nil {
		return
	}
	b.mu.Lock()
	cancel := b.cancel
	if b.state == StateRunning {
		b.state = StateStopping
	}
	b.mu.Unlock()
	if cancel != nil {
		logger.Infof("stop requested for %s", b.cfg.Symbol)
		cancel()
	}
}

// UpdateStrategy 替换策略实例，下一个 cycle 生效。
func (b *Bot) UpdateStrategy(s strategy.Strategy) {
	if b == nil || s == nil {
		return
	}
	b.mu.Lock()
	prev := b.strat.Name()
	b.strat = s
	b.mu.Unlock()
	logger.Infof("strategy updated for %s: %s -> %s", b.cfg.Symbol, prev, s.Name())
}

func (b *Bot) Strategy() strategy.Strategy {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.strat
}

// ActiveGrid 返回当前生效的快照。
func (b *Bot) ActiveGrid() grid.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *Bot) setActive(snap grid.Snapshot) {
	b.mu.Lock()
	b.active = snap
	b.mu.Unlock()
}

// Shutdown 供不经过 Run 驱动的调用方（回测）收尾，与 Run 共用同一次 finalize。
func (b *Bot) Shutdown() {
	if b == nil {
		return
	}
	b.finalize()
}

// finalize 撤掉所有挂单、输出并推送最终绩效。只执行一次。
func (b *Bot) finalize() {
	b.finalizeOnce.Do(func() {
		b.mu.Lock()
		b.state = StateStopping
		stopErr := b.stopErr
		b.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()
		sym := b.cfg.Symbol
		logger.Infof("shutting down %s...", sym)
		n := b.coord.CancelAll(ctx)
		logger.Infof("cancelled %d orders for %s", n, sym)
		b.metrics.SetOpenOrders(sym, len(b.coord.Active()))
		b.ledger.LogMetrics("Final Performance " + sym)
		b.notify(ctx, shutdownMessage(sym, n, b.ledger.Metrics(), stopErr, b.nowFn()))

		b.mu.Lock()
		b.state = StateStopped
		b.mu.Unlock()
		logger.Infof("shutdown complete for %s", sym)
	})
}

func (b *Bot) persistSnapshot(ctx context.Context, snap grid.Snapshot) {
	if b.journal == nil {
		return
	}
	var err error
	if gj, ok := b.journal.(GridJournal); ok {
		err = gj.SaveGrid(ctx, snap, b.coord.Active())
	} else {
		err = b.journal.SaveSnapshot(ctx, snap)
	}
	if err != nil {
		logger.Warnf("persist %s grid snapshot failed: %v", snap.Mode, err)
	}
}

func (b *Bot) notify(ctx context.Context, msg notifier.Message) {
	if err := b.notifier.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("notify %q failed: %v", msg.Title, err)
	}
}

func (b *Bot) observeResults(results []order.Result) {
	for _, r := range results {
		b.metrics.ObserveOrder(b.cfg.Symbol, string(r.Intent.Side), r.Err == nil)
	}
	b.metrics.SetOpenOrders(b.cfg.Symbol, len(b.coord.Active()))
}

func placed(results []order.Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

func firstErr(results []order.Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
