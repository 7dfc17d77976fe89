package app

import (
	"fmt"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/engine"
	"gridbot/internal/gateway"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/notifier"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/metrics"
	"gridbot/internal/order"
	"gridbot/internal/performance"
	"gridbot/internal/pkg/circuit"
	"gridbot/internal/risk"
	"gridbot/internal/store"
	"gridbot/internal/store/sqlite"
	"gridbot/internal/strategy"
	livehttp "gridbot/internal/transport/http/live"

	"github.com/shopspring/decimal"
)

const (
	maxLedgerTrades  = 5000
	breakerThreshold = 5
	breakerCooldown  = 2 * time.Minute
)

// BotDeps 是 NewBot 在配置之外需要的运行期依赖；除 Venue 外均可为空。
type BotDeps struct {
	Venue    exchange.Venue
	Journal  engine.Journal
	Notifier notifier.TextNotifier
	Metrics  *metrics.Metrics
	Breaker  *circuit.Breaker
	Clock    func() time.Time
}

// NewBot 按配置装配网格引擎。实盘与回测共用这一入口。
func NewBot(cfg *config.Config, deps BotDeps) (*engine.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	t := cfg.Trading
	sig, err := t.Strategy.Signals()
	if err != nil {
		return nil, err
	}
	calc, err := grid.NewCalculator(
		decimal.NewFromFloat(t.LowerPrice),
		decimal.NewFromFloat(t.UpperPrice),
		t.GridCount,
		decimal.NewFromFloat(t.TotalInvestment),
	)
	if err != nil {
		return nil, err
	}
	pricing := PricingOptions(t)
	strat, err := strategy.New(t.Strategy.Type, t.Strategy.Parameters, pricing)
	if err != nil {
		return nil, err
	}
	rm, err := risk.NewManager(riskConfig(t))
	if err != nil {
		return nil, err
	}
	ledger := performance.NewLedger(maxLedgerTrades).WithClock(deps.Clock)
	return engine.New(engine.Params{
		Config:      EngineConfig(cfg, sig),
		Venue:       deps.Venue,
		Calculator:  calc,
		Strategy:    strat,
		Coordinator: order.NewCoordinator(deps.Venue, t.Symbol, ledger, pricing),
		Risk:        rm,
		Ledger:      ledger,
		Journal:     deps.Journal,
		Notifier:    deps.Notifier,
		Metrics:     deps.Metrics,
		Breaker:     deps.Breaker,
		Clock:       deps.Clock,
	})
}

// PricingOptions 把价格精度与卖出加价映射到策略选项。
func PricingOptions(t config.TradingConfig) strategy.Options {
	return strategy.Options{
		PricePrecision: int32(t.PricePrecision),
		SellMarkup:     decimal.NewFromFloat(t.SellMarkupPct),
	}
}

func riskConfig(t config.TradingConfig) risk.Config {
	rc := risk.Config{
		TrailingEnabled: t.TrailingStop.Enabled,
		TrailingPct:     decimal.NewFromFloat(t.TrailingStop.Percentage),
	}
	if t.StopLoss > 0 {
		sl := decimal.NewFromFloat(t.StopLoss)
		rc.StopLoss = &sl
	}
	return rc
}

// EngineConfig 把 trading/performance 配置映射为引擎参数。
func EngineConfig(cfg *config.Config, sig config.SignalParams) engine.Config {
	t := cfg.Trading
	return engine.Config{
		Symbol:          t.Symbol,
		HistoryInterval: t.HistoryInterval,
		HistoryLimit:    t.HistoryLimit,
		Signals: engine.SignalParams{
			RSIPeriod:       sig.VolatilityPeriod,
			RSIThreshold:    sig.RSIThreshold,
			MACDFast:        sig.MACDFastPeriod,
			MACDSlow:        sig.MACDSlowPeriod,
			MACDSignal:      sig.MACDSignalPeriod,
			BollingerPeriod: sig.BollingerPeriod,
			BollingerStdDev: sig.BollingerStdDev,
		},
		DynamicGrids:        t.DynamicGrids,
		VolatilitySource:    t.VolatilitySource,
		VolatilityThreshold: decimal.NewFromFloat(t.VolatilityThreshold),
		PricePrecision:      int32(t.PricePrecision),
		PollInterval:        time.Duration(cfg.Performance.PollIntervalSeconds) * time.Second,
		ErrorBackoff:        time.Duration(cfg.Performance.ErrorBackoffSeconds) * time.Second,
		RestoreLedger:       cfg.Performance.RestoreLedger,
	}
}

func provideVenue(cfg *config.Config) (exchange.Venue, error) {
	venue, err := gateway.NewVenue(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("init venue: %w", err)
	}
	return venue, nil
}

// provideStore 在 db_path 为空时返回 nil，引擎不落盘。
func provideStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.App.DBPath == "" {
		return nil, func() {}, nil
	}
	st, err := sqlite.NewSqliteStore(cfg.App.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", cfg.App.DBPath, err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warnf("close store failed: %v", err)
		}
	}
	return st, cleanup, nil
}

func provideJournal(cfg *config.Config, st store.Store) *store.Journal {
	if st == nil {
		return nil
	}
	return store.NewJournal(st, cfg.Trading.Symbol)
}

func provideNotifier(cfg *config.Config) notifier.TextNotifier {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return notifier.Noop{}
	}
	return notifier.NewTelegram(tg.BotToken, tg.ChatID)
}

func provideBreaker(venue exchange.Venue) *circuit.Breaker {
	return circuit.New("venue:"+venue.Name(), breakerThreshold, breakerCooldown)
}

func provideBot(cfg *config.Config, venue exchange.Venue, journal *store.Journal, n notifier.TextNotifier, m *metrics.Metrics, breaker *circuit.Breaker) (*engine.Bot, error) {
	deps := BotDeps{Venue: venue, Notifier: n, Metrics: m, Breaker: breaker}
	if journal != nil {
		deps.Journal = journal
	}
	return NewBot(cfg, deps)
}

func provideHTTPServer(cfg *config.Config, bot *engine.Bot, journal *store.Journal, m *metrics.Metrics) (*livehttp.Server, error) {
	sc := livehttp.ServerConfig{Addr: cfg.App.HTTPAddr, Bot: bot, Metrics: m.Handler()}
	if journal != nil {
		sc.Orders = journal
	}
	return livehttp.NewServer(sc)
}
