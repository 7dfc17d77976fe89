// Package metrics 以独立注册表暴露网格机器人的运行指标。
package metrics

import (
	"net/http"
	"time"

	"gridbot/internal/logger"
	"gridbot/internal/performance"
	"gridbot/internal/pkg/convert"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "gridbot"

// Metrics 持有注册表与所有预定义指标。nil 接收者上的方法均为空操作。
type Metrics struct {
	registry *prometheus.Registry

	Price          *prometheus.GaugeVec
	GridLevels     *prometheus.GaugeVec
	OpenOrders     *prometheus.GaugeVec
	TotalProfit    *prometheus.GaugeVec
	WinRate        *prometheus.GaugeVec
	MaxDrawdown    *prometheus.GaugeVec
	TrailingStop   *prometheus.GaugeVec
	BreakerState   *prometheus.GaugeVec
	OrdersPlaced   *prometheus.CounterVec
	OrderFailures  *prometheus.CounterVec
	Fills          *prometheus.CounterVec
	Cycles         *prometheus.CounterVec
	GridReplaces   *prometheus.CounterVec
	CycleDurations *prometheus.HistogramVec
}

// New 创建注册表并注册 Go 运行时与进程指标。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := &Metrics{registry: reg}

	m.Price = m.gauge("price", "Last observed market price", "symbol")
	m.GridLevels = m.gauge("grid_levels", "Number of levels in the active grid", "symbol", "mode")
	m.OpenOrders = m.gauge("open_orders", "Tracked open orders", "symbol")
	m.TotalProfit = m.gauge("total_profit", "Cumulative ledger profit", "symbol")
	m.WinRate = m.gauge("win_rate_percent", "Winning trades over total trades", "symbol")
	m.MaxDrawdown = m.gauge("max_drawdown", "Largest drop from peak cumulative profit", "symbol")
	m.TrailingStop = m.gauge("trailing_stop_price", "Current trailing stop price, 0 when unset", "symbol")
	m.BreakerState = m.gauge("breaker_state", "Circuit breaker state (0 closed, 1 open, 2 half-open)", "name")
	m.OrdersPlaced = m.counter("orders_placed_total", "Orders accepted by the venue", "symbol", "side")
	m.OrderFailures = m.counter("order_failures_total", "Orders rejected or failed", "symbol", "side")
	m.Fills = m.counter("fills_total", "Orders observed as filled", "symbol", "side")
	m.Cycles = m.counter("cycles_total", "Control loop iterations by outcome", "symbol", "result")
	m.GridReplaces = m.counter("grid_replacements_total", "Grid replacements by mode", "symbol", "mode")
	m.CycleDurations = m.newHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Control loop iteration latency",
		Buckets:   prometheus.DefBuckets,
	}, "symbol")

	logger.Debugf("metrics registry initialized")
	return m
}

func (m *Metrics) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	m.registry.MustRegister(gv)
	return gv
}

func (m *Metrics) counter(name, help string, labels ...string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	m.registry.MustRegister(cv)
	return cv
}

func (m *Metrics) newHistogram(opts prometheus.HistogramOpts, labels ...string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labels)
	m.registry.MustRegister(hv)
	return hv
}

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObservePrice(symbol string, price decimal.Decimal) {
	if m == nil {
		return
	}
	m.Price.WithLabelValues(symbol).Set(convert.Float(price))
}

func (m *Metrics) ObserveCycle(symbol, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(symbol, result).Inc()
	m.CycleDurations.WithLabelValues(symbol).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveLedger(symbol string, pm performance.Metrics) {
	if m == nil {
		return
	}
	m.TotalProfit.WithLabelValues(symbol).Set(convert.Float(pm.TotalProfit))
	m.WinRate.WithLabelValues(symbol).Set(convert.Float(pm.WinRate))
	m.MaxDrawdown.WithLabelValues(symbol).Set(convert.Float(pm.MaxDrawdown))
}

func (m *Metrics) ObserveGrid(symbol, mode string, levels int, replaced bool) {
	if m == nil {
		return
	}
	m.GridLevels.Reset()
	m.GridLevels.WithLabelValues(symbol, mode).Set(float64(levels))
	if replaced {
		m.GridReplaces.WithLabelValues(symbol, mode).Inc()
	}
}

func (m *Metrics) ObserveOrder(symbol, side string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.OrdersPlaced.WithLabelValues(symbol, side).Inc()
		return
	}
	m.OrderFailures.WithLabelValues(symbol, side).Inc()
}

func (m *Metrics) ObserveFill(symbol, side string) {
	if m == nil {
		return
	}
	m.Fills.WithLabelValues(symbol, side).Inc()
}

func (m *Metrics) SetOpenOrders(symbol string, n int) {
	if m == nil {
		return
	}
	m.OpenOrders.WithLabelValues(symbol).Set(float64(n))
}

// SetTrailingStop 记录移动止损价，nil 记为 0。
func (m *Metrics) SetTrailingStop(symbol string, price *decimal.Decimal) {
	if m == nil {
		return
	}
	v := 0.0
	if price != nil {
		v = convert.Float(*price)
	}
	m.TrailingStop.WithLabelValues(symbol).Set(v)
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
