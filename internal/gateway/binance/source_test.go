package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gridbot/internal/gateway/exchange"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "k", APISecret: "s", RESTBaseURL: srv.URL, RateLimitPerSecond: 1000})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestCurrentPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		writeJSON(w, http.StatusOK, []map[string]string{{"symbol": "BTCUSDT", "price": "64000.12"}})
	})
	price, err := c.CurrentPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "64000.12", price.String())
}

func TestPriceHistoryDropsOpenCandle(t *testing.T) {
	hour := time.Hour.Milliseconds()
	base := time.Now().Add(-3 * time.Hour).Truncate(time.Hour).UnixMilli()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		rows := [][]any{}
		for i, close := range []string{"10", "11", "12", "13"} {
			open := base + int64(i)*hour
			rows = append(rows, []any{open, "1", "2", "0.5", close, "100", open + hour - 1, "0", 5, "0", "0", "0"})
		}
		writeJSON(w, http.StatusOK, rows)
	})
	closes, err := c.PriceHistory(context.Background(), "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, closes)
}

func TestPlaceLimitOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		form := r.Form
		assert.Equal(t, "BTCUSDT", form.Get("symbol"))
		assert.Equal(t, "BUY", form.Get("side"))
		assert.Equal(t, "LIMIT", form.Get("type"))
		assert.Equal(t, "GTC", form.Get("timeInForce"))
		assert.Equal(t, "0.5", form.Get("quantity"))
		assert.Equal(t, "100", form.Get("price"))
		assert.True(t, strings.HasPrefix(form.Get("newClientOrderId"), "grid-"))
		writeJSON(w, http.StatusOK, map[string]any{
			"symbol": "BTCUSDT", "orderId": 42, "clientOrderId": form.Get("newClientOrderId"),
			"transactTime": 1700000000000, "price": "100", "origQty": "0.5", "status": "NEW", "side": "BUY",
		})
	})
	rec, err := c.PlaceLimitOrder(context.Background(), "BTCUSDT", exchange.SideBuy, decimal.RequireFromString("0.5"), decimal.RequireFromString("100"))
	require.NoError(t, err)
	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, exchange.StatusOpen, rec.Status)
	assert.Equal(t, exchange.SideBuy, rec.Side)
}

func TestAPIErrorsAreClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": -2011, "msg": "Unknown order sent."})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": -2010, "msg": "Account has insufficient balance."})
		}
	})
	ok, err := c.CancelOrder(context.Background(), "BTCUSDT", "7")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.PlaceLimitOrder(context.Background(), "BTCUSDT", exchange.SideSell, decimal.NewFromInt(1), decimal.NewFromInt(1))
	var exErr *exchange.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "-2010", exErr.Code)
	assert.Contains(t, exErr.Message, "insufficient balance")
}

func TestOpenOrdersAndStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/openOrders":
			writeJSON(w, http.StatusOK, []map[string]any{{
				"symbol": "BTCUSDT", "orderId": 9, "clientOrderId": "grid-a", "price": "111.10",
				"origQty": "1.000", "status": "PARTIALLY_FILLED", "side": "SELL", "time": 1700000000000, "updateTime": 1700000000000,
			}})
		case "/api/v3/order":
			writeJSON(w, http.StatusOK, map[string]any{"symbol": "BTCUSDT", "orderId": 9, "status": "FILLED", "side": "SELL"})
		default:
			http.NotFound(w, r)
		}
	})
	orders, err := c.OpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "sell@111.1", orders[0].Key())
	assert.Equal(t, exchange.StatusOpen, orders[0].Status)

	st, err := c.OrderStatus(context.Background(), "BTCUSDT", "9")
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusFilled, st)

	_, err = c.OrderStatus(context.Background(), "BTCUSDT", "abc")
	assert.Error(t, err)
}

func TestNetworkErrorsAreClassified(t *testing.T) {
	c, err := New(Config{RESTBaseURL: "http://127.0.0.1:1", HTTPTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.CurrentPrice(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.True(t, exchange.IsVenueError(err))
}
