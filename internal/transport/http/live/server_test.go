package livehttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gridbot/internal/engine"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/performance"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type MockBot struct {
	mock.Mock
}

func (m *MockBot) Status() engine.Status {
	args := m.Called()
	return args.Get(0).(engine.Status)
}

func (m *MockBot) Trades() []performance.Trade {
	args := m.Called()
	trades, _ := args.Get(0).([]performance.Trade)
	return trades
}

func (m *MockBot) Stop() {
	m.Called()
}

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) RecentOrders(ctx context.Context, limit int) ([]exchange.OrderRecord, error) {
	args := m.Called(ctx, limit)
	orders, _ := args.Get(0).([]exchange.OrderRecord)
	return orders, args.Error(1)
}

func sampleStatus() engine.Status {
	return engine.Status{
		Symbol:       "BTCUSDT",
		Venue:        "paper",
		Strategy:     "default",
		State:        engine.StateRunning,
		CurrentPrice: decimal.RequireFromString("150.5"),
		ActiveOrders: []exchange.OrderRecord{{
			ID:       "o-1",
			Symbol:   "BTCUSDT",
			Side:     exchange.SideBuy,
			Price:    decimal.NewFromInt(100),
			Quantity: decimal.NewFromInt(5),
			Status:   exchange.StatusOpen,
		}},
		Grid: grid.Snapshot{
			Mode:   grid.ModeStatic,
			Lower:  decimal.NewFromInt(100),
			Upper:  decimal.NewFromInt(200),
			Count:  2,
			Levels: []grid.Level{{Price: decimal.NewFromInt(100)}, {Price: decimal.NewFromInt(150)}, {Price: decimal.NewFromInt(200)}},
		},
	}
}

func newTestServer(t *testing.T, bot BotView, orders OrderHistory, metrics http.Handler) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Bot: bot, Orders: orders, Metrics: metrics})
	require.NoError(t, err)
	return srv.Handler()
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresBot(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)

	srv, err := NewServer(ServerConfig{Bot: &MockBot{}})
	require.NoError(t, err)
	assert.Equal(t, ":9992", srv.Addr())
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, &MockBot{}, nil, nil)
	rec := do(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}

func TestStatusEndpoints(t *testing.T) {
	bot := &MockBot{}
	bot.On("Status").Return(sampleStatus())
	bot.On("Trades").Return([]performance.Trade{{PnL: decimal.NewFromInt(5), RecordedAt: time.Unix(0, 0).UTC()}})
	h := newTestServer(t, bot, nil, nil)

	t.Run("status", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/live/status")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Equal(t, "BTCUSDT", gjson.Get(body, "symbol").String())
		assert.Equal(t, "running", gjson.Get(body, "state").String())
		assert.Equal(t, "150.5", gjson.Get(body, "current_price").String())
		assert.True(t, gjson.Get(body, "performance_metrics").Exists())
	})

	t.Run("grid", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/live/grid")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(3), gjson.Get(rec.Body.String(), "grid.levels.#").Int())
	})

	t.Run("orders", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/live/orders")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "o-1", gjson.Get(rec.Body.String(), "orders.0.id").String())
	})

	t.Run("trades", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/live/trades")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5", gjson.Get(rec.Body.String(), "trades.0.pnl").String())
	})
}

func TestStopEndpoint(t *testing.T) {
	bot := &MockBot{}
	bot.On("Stop").Return().Once()
	h := newTestServer(t, bot, nil, nil)

	rec := do(h, http.MethodPost, "/api/live/stop")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	bot.AssertExpectations(t)

	rec = do(h, http.MethodGet, "/api/live/stop")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestServer(t, &MockBot{}, nil, nil)
		rec := do(h, http.MethodGet, "/api/live/orders/history")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("limit clamp", func(t *testing.T) {
		orders := &MockOrders{}
		orders.On("RecentOrders", mock.Anything, maxOrderLimit).Return([]exchange.OrderRecord{{ID: "x"}}, nil)
		h := newTestServer(t, &MockBot{}, orders, nil)
		rec := do(h, http.MethodGet, "/api/live/orders/history?limit=9999")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "x", gjson.Get(rec.Body.String(), "orders.0.id").String())
		orders.AssertExpectations(t)
	})

	t.Run("bad limit", func(t *testing.T) {
		h := newTestServer(t, &MockBot{}, &MockOrders{}, nil)
		rec := do(h, http.MethodGet, "/api/live/orders/history?limit=-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("journal error", func(t *testing.T) {
		orders := &MockOrders{}
		orders.On("RecentOrders", mock.Anything, defaultOrderLimit).Return(nil, errors.New("disk full"))
		h := newTestServer(t, &MockBot{}, orders, nil)
		rec := do(h, http.MethodGet, "/api/live/orders/history")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "disk full", gjson.Get(rec.Body.String(), "error").String())
	})
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("gridbot_up 1\n"))
	})
	h := newTestServer(t, &MockBot{}, nil, metrics)
	rec := do(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gridbot_up 1")
}

func TestStartStopsOnCancel(t *testing.T) {
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Bot: &MockBot{}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStartServesOnBoundAddr(t *testing.T) {
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Bot: &MockBot{}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "127.0.0.1:0" }, 5*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
