package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/performance"
	"gridbot/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var pricing = strategy.Options{PricePrecision: 2, SellMarkup: d("0.01")}

type MockVenue struct {
	mock.Mock
}

func (m *MockVenue) Name() string { return "mock" }

func (m *MockVenue) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockVenue) PriceHistory(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	args := m.Called(ctx, symbol, interval, limit)
	return args.Get(0).([]float64), args.Error(1)
}

func (m *MockVenue) PlaceLimitOrder(ctx context.Context, symbol string, side exchange.Side, qty, price decimal.Decimal) (exchange.OrderRecord, error) {
	args := m.Called(ctx, symbol, side, qty.String(), price.String())
	return args.Get(0).(exchange.OrderRecord), args.Error(1)
}

func (m *MockVenue) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockVenue) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderRecord, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).([]exchange.OrderRecord), args.Error(1)
}

// memVenue 是内存中的挂单簿，用于验证幂等与对账。
type memVenue struct {
	mu       sync.Mutex
	seq      int
	open     map[string]exchange.OrderRecord
	status   map[string]exchange.Status
	cancelFn func(id string) error
}

func newMemVenue() *memVenue {
	return &memVenue{open: map[string]exchange.OrderRecord{}, status: map[string]exchange.Status{}}
}

func (v *memVenue) Name() string { return "mem" }

func (v *memVenue) CurrentPrice(context.Context, string) (decimal.Decimal, error) {
	return d("100"), nil
}

func (v *memVenue) PriceHistory(context.Context, string, string, int) ([]float64, error) {
	return nil, nil
}

func (v *memVenue) PlaceLimitOrder(_ context.Context, symbol string, side exchange.Side, qty, price decimal.Decimal) (exchange.OrderRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	rec := exchange.OrderRecord{ID: fmt.Sprintf("o-%d", v.seq), Symbol: symbol, Side: side, Price: price, Quantity: qty, Status: exchange.StatusOpen}
	v.open[rec.ID] = rec
	v.status[rec.ID] = exchange.StatusOpen
	return rec, nil
}

func (v *memVenue) CancelOrder(_ context.Context, _ string, id string) (bool, error) {
	if v.cancelFn != nil {
		if err := v.cancelFn(id); err != nil {
			return false, err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.open[id]; !ok {
		return false, nil
	}
	delete(v.open, id)
	v.status[id] = exchange.StatusCancelled
	return true, nil
}

func (v *memVenue) OpenOrders(context.Context, string) ([]exchange.OrderRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]exchange.OrderRecord, 0, len(v.open))
	for _, o := range v.open {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *memVenue) OrderStatus(_ context.Context, _ string, id string) (exchange.Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.status[id]
	if !ok {
		return "", errors.New("unknown order")
	}
	return st, nil
}

func (v *memVenue) fill(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.open, id)
	v.status[id] = exchange.StatusFilled
}

func keys(orders []exchange.OrderRecord) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.Key() + "x" + o.Quantity.String()
	}
	sort.Strings(out)
	return out
}

func snapshot(prices ...string) grid.Snapshot {
	snap := grid.Snapshot{Mode: grid.ModeStatic}
	for _, p := range prices {
		snap.Levels = append(snap.Levels, grid.Level{Price: d(p), Quantity: d("1")})
	}
	return snap
}

func TestExecuteRecordsTradesAndContinuesOnFailure(t *testing.T) {
	venue := new(MockVenue)
	ledger := performance.NewLedger(0)
	c := NewCoordinator(venue, "BTCUSDT", ledger, pricing)
	ctx := context.Background()

	venue.On("PlaceLimitOrder", ctx, "BTCUSDT", exchange.SideBuy, "1", "100").
		Return(exchange.OrderRecord{ID: "b1", Side: exchange.SideBuy, Price: d("100"), Quantity: d("1")}, nil).Once()
	venue.On("PlaceLimitOrder", ctx, "BTCUSDT", exchange.SideSell, "1", "111.1").
		Return(exchange.OrderRecord{}, &exchange.ExchangeError{Venue: "mock", Op: "place", Message: "rejected"}).Once()
	venue.On("PlaceLimitOrder", ctx, "BTCUSDT", exchange.SideSell, "2", "121.2").
		Return(exchange.OrderRecord{ID: "s2", Side: exchange.SideSell, Price: d("121.2"), Quantity: d("2")}, nil).Once()

	intents := []strategy.Intent{
		{Side: exchange.SideBuy, Price: d("100"), Quantity: d("1")},
		{Side: exchange.SideSell, Price: d("111.1"), Quantity: d("1"), Profit: d("1.1")},
		{Side: exchange.SideBuy, Price: d("0"), Quantity: d("1")},
		{Side: exchange.SideSell, Price: d("121.2"), Quantity: d("2"), Profit: d("2.4")},
	}
	results := c.Execute(ctx, intents)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Order)
	assert.Equal(t, "b1", results[0].Order.ID)

	var exErr *exchange.ExchangeError
	assert.ErrorAs(t, results[1].Err, &exErr)
	assert.Nil(t, results[1].Order)

	var invalid *InvalidOrderError
	assert.ErrorAs(t, results[2].Err, &invalid)

	assert.NoError(t, results[3].Err)

	m := ledger.Metrics()
	assert.Equal(t, 2, m.TotalTrades)
	assert.True(t, m.TotalProfit.Equal(d("-97.6")), "profit %s", m.TotalProfit)
	assert.Len(t, c.Active(), 2)
	venue.AssertExpectations(t)
}

func TestExecuteSkipsNonPositiveQuantity(t *testing.T) {
	venue := new(MockVenue)
	c := NewCoordinator(venue, "BTCUSDT", nil, pricing)
	results := c.Execute(context.Background(), []strategy.Intent{{Side: exchange.SideBuy, Price: d("10"), Quantity: d("-1")}})
	require.Len(t, results, 1)
	var invalid *InvalidOrderError
	assert.ErrorAs(t, results[0].Err, &invalid)
	venue.AssertNotCalled(t, "PlaceLimitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReplaceGridIsIdempotent(t *testing.T) {
	venue := newMemVenue()
	ledger := performance.NewLedger(0)
	c := NewCoordinator(venue, "BTCUSDT", ledger, pricing)
	ctx := context.Background()
	snap := snapshot("100", "110", "120")

	c.ReplaceGrid(ctx, grid.Snapshot{})
	assert.Empty(t, c.Active())

	first := c.ReplaceGrid(ctx, snap)
	require.Len(t, first, 6)
	for _, r := range first {
		require.NoError(t, r.Err)
	}
	afterFirst, _ := venue.OpenOrders(ctx, "BTCUSDT")

	c.ReplaceGrid(ctx, snap)
	afterSecond, _ := venue.OpenOrders(ctx, "BTCUSDT")

	assert.Len(t, afterSecond, 6)
	assert.Equal(t, keys(afterFirst), keys(afterSecond))
	assert.Equal(t, keys(afterSecond), keys(c.Active()))
	assert.Contains(t, keys(afterSecond), "sell@111.1x1")
	assert.Equal(t, 0, ledger.Metrics().TotalTrades, "grid placement is not a trade")
}

func TestReplaceGridKeepsOrdersWhoseCancelFailed(t *testing.T) {
	venue := newMemVenue()
	c := NewCoordinator(venue, "BTCUSDT", nil, pricing)
	ctx := context.Background()
	c.ReplaceGrid(ctx, snapshot("100"))

	venue.cancelFn = func(id string) error {
		if id == "o-1" {
			return &exchange.NetworkError{Venue: "mem", Op: "cancel", Err: errors.New("timeout")}
		}
		return nil
	}
	c.ReplaceGrid(ctx, snapshot("100"))

	active := c.Active()
	assert.Len(t, active, 3)
	ids := make([]string, 0, len(active))
	for _, o := range active {
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, "o-1")
}

func TestCancelAllIncludesUntrackedOrders(t *testing.T) {
	venue := newMemVenue()
	c := NewCoordinator(venue, "BTCUSDT", nil, pricing)
	ctx := context.Background()
	c.ReplaceGrid(ctx, snapshot("100", "110"))
	_, _ = venue.PlaceLimitOrder(ctx, "BTCUSDT", exchange.SideBuy, d("1"), d("90"))

	n := c.CancelAll(ctx)
	assert.Equal(t, 5, n)
	assert.Empty(t, c.Active())
	open, _ := venue.OpenOrders(ctx, "BTCUSDT")
	assert.Empty(t, open)
}

func TestSyncResolvesTerminalOrders(t *testing.T) {
	venue := newMemVenue()
	c := NewCoordinator(venue, "BTCUSDT", nil, pricing)
	ctx := context.Background()
	c.ReplaceGrid(ctx, snapshot("100", "110"))

	var seen []exchange.OrderRecord
	c.OnOrder(func(o exchange.OrderRecord) { seen = append(seen, o) })

	venue.fill("o-1")
	_, _ = venue.CancelOrder(ctx, "BTCUSDT", "o-2")

	report, err := c.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, report.Filled, 1)
	assert.Equal(t, "o-1", report.Filled[0].ID)
	require.Len(t, report.Cancelled, 1)
	assert.Equal(t, "o-2", report.Cancelled[0].ID)
	assert.Len(t, c.Active(), 2)
	assert.Len(t, seen, 2)
}

func TestSyncWithoutStatusQuerierAssumesFilled(t *testing.T) {
	venue := new(MockVenue)
	c := NewCoordinator(venue, "BTCUSDT", nil, pricing)
	ctx := context.Background()
	c.track(exchange.OrderRecord{ID: "x", Side: exchange.SideBuy, Price: d("100"), Quantity: d("1")})

	venue.On("OpenOrders", ctx, "BTCUSDT").Return([]exchange.OrderRecord{}, nil).Once()
	report, err := c.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, report.Filled, 1)
	assert.Empty(t, c.Active())

	venue.On("OpenOrders", ctx, "BTCUSDT").Return([]exchange.OrderRecord(nil), errors.New("boom")).Once()
	_, err = c.Sync(ctx)
	assert.Error(t, err)
	venue.AssertExpectations(t)
}

func TestReconcileAdoptsCancelsAndPlaces(t *testing.T) {
	venue := newMemVenue()
	ctx := context.Background()
	// 上次运行留下的挂单：一个匹配，一个偏离快照，一个数量不符
	_, _ = venue.PlaceLimitOrder(ctx, "BTCUSDT", exchange.SideBuy, d("1"), d("100"))
	_, _ = venue.PlaceLimitOrder(ctx, "BTCUSDT", exchange.SideBuy, d("1"), d("95"))
	_, _ = venue.PlaceLimitOrder(ctx, "BTCUSDT", exchange.SideSell, d("3"), d("101"))

	c := NewCoordinator(venue, "BTCUSDT", nil, pricing)
	report, err := c.Reconcile(ctx, snapshot("100", "110"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Adopted)
	assert.Equal(t, 2, report.Cancelled)
	assert.Equal(t, 3, report.Placed)
	assert.Equal(t, 0, report.Failed)

	open, _ := venue.OpenOrders(ctx, "BTCUSDT")
	assert.Equal(t, []string{"buy@100x1", "buy@110x1", "sell@101x1", "sell@111.1x1"}, keys(open))
	assert.Equal(t, keys(open), keys(c.Active()))

	// 再次对账不应产生任何变化
	again, err := c.Reconcile(ctx, snapshot("100", "110"))
	require.NoError(t, err)
	assert.Equal(t, 4, again.Adopted)
	assert.Equal(t, 0, again.Placed+again.Cancelled)
}
