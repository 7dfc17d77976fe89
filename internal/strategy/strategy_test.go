package strategy

import (
	"errors"
	"testing"

	"gridbot/internal/analysis/indicator"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshotOf(prices ...string) grid.Snapshot {
	snap := grid.Snapshot{Mode: grid.ModeStatic}
	for _, p := range prices {
		snap.Levels = append(snap.Levels, grid.Level{Price: d(p), Quantity: d("1")})
	}
	return snap
}

var pricing = Options{PricePrecision: 2, SellMarkup: d("0.01")}

func TestDefaultBuyAndSell(t *testing.T) {
	s := NewDefault(DefaultParams{RSIThreshold: 70}, pricing)
	sig := Signals{RSI: 65, MACD: indicator.MACDResult{Histogram: []float64{0.5, 0.3}}}

	intents := s.Decide(d("95"), snapshotOf("100", "110", "120"), sig)
	require.Len(t, intents, 2)

	buy := intents[0]
	assert.Equal(t, exchange.SideBuy, buy.Side)
	assert.True(t, buy.Price.Equal(d("100")))
	assert.True(t, buy.Quantity.Equal(d("1")))

	sell := intents[1]
	assert.Equal(t, exchange.SideSell, sell.Side)
	assert.True(t, sell.Price.Equal(d("111.1")), "sell price %s", sell.Price)
	assert.True(t, sell.Quantity.Equal(d("1")))
	assert.True(t, sell.Profit.Equal(d("1.1")), "profit %s", sell.Profit)
	assert.True(t, sell.Level.Price.Equal(d("110")))
}

func TestDefaultNoSignals(t *testing.T) {
	s := NewDefault(DefaultParams{RSIThreshold: 70}, pricing)
	sig := Signals{RSI: 80, MACD: indicator.MACDResult{Histogram: []float64{-0.2, -0.1}}}
	intents := s.Decide(d("95"), snapshotOf("100", "110", "120"), sig)
	assert.Empty(t, intents)
	assert.NotNil(t, intents)
}

func TestDefaultBuyPicksFirstLevelAtOrAbovePrice(t *testing.T) {
	s := NewDefault(DefaultParams{RSIThreshold: 70}, pricing)
	sig := Signals{RSI: 10}

	t.Run("exact match", func(t *testing.T) {
		intents := s.Decide(d("110"), snapshotOf("100", "110", "120"), sig)
		require.Len(t, intents, 1)
		assert.True(t, intents[0].Price.Equal(d("110")))
	})

	t.Run("price above every level", func(t *testing.T) {
		intents := s.Decide(d("130"), snapshotOf("100", "110", "120"), sig)
		assert.Empty(t, intents)
	})

	t.Run("rsi equal to threshold does not buy", func(t *testing.T) {
		intents := s.Decide(d("95"), snapshotOf("100"), Signals{RSI: 70})
		assert.Empty(t, intents)
	})
}

func TestDefaultSellOnlyUsesFirstLevel(t *testing.T) {
	s := NewDefault(DefaultParams{RSIThreshold: 70}, pricing)
	sig := Signals{RSI: 90, MACD: indicator.MACDResult{Histogram: []float64{0.1}}}
	intents := s.Decide(d("130"), snapshotOf("100", "110"), sig)
	require.Len(t, intents, 1)
	assert.Equal(t, exchange.SideSell, intents[0].Side)
	assert.True(t, intents[0].Price.Equal(d("101")))
	assert.True(t, intents[0].Profit.Equal(d("1")))
}

func TestDefaultSingleLevelBuyClaimsIt(t *testing.T) {
	s := NewDefault(DefaultParams{RSIThreshold: 70}, pricing)
	sig := Signals{RSI: 10, MACD: indicator.MACDResult{Histogram: []float64{0.1}}}
	intents := s.Decide(d("95"), snapshotOf("100"), sig)
	require.Len(t, intents, 1)
	assert.Equal(t, exchange.SideBuy, intents[0].Side)
}

func TestBollinger(t *testing.T) {
	s := NewBollinger(pricing)
	snap := snapshotOf("100", "110", "120")

	assert.Empty(t, s.Decide(d("105"), snap, Signals{}))

	bands := &indicator.Bands{Upper: 118, Middle: 110, Lower: 102}
	buys := s.Decide(d("101"), snap, Signals{Bands: bands})
	require.Len(t, buys, 1)
	assert.Equal(t, exchange.SideBuy, buys[0].Side)
	assert.True(t, buys[0].Price.Equal(d("110")))

	sells := s.Decide(d("119"), snap, Signals{Bands: bands})
	require.Len(t, sells, 1)
	assert.Equal(t, exchange.SideSell, sells[0].Side)
	assert.True(t, sells[0].Level.Price.Equal(d("110")))
	assert.True(t, sells[0].Price.Equal(d("111.1")))

	assert.Empty(t, s.Decide(d("110"), snap, Signals{Bands: bands}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"bollinger", "default"}, r.Names())

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := r.New("martingale", nil, pricing)
		var unknown *UnknownStrategyError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "martingale", unknown.Name)
		assert.Contains(t, err.Error(), "default")
	})

	t.Run("numeric strings are accepted", func(t *testing.T) {
		s, err := r.New(" Default ", map[string]any{"rsi_threshold": "65", "volatility_period": 14}, pricing)
		require.NoError(t, err)
		require.IsType(t, &Default{}, s)
		assert.Equal(t, 65.0, s.(*Default).Params().RSIThreshold)
	})

	t.Run("schema rejects bad values", func(t *testing.T) {
		_, err := r.New("default", map[string]any{"rsi_threshold": 150}, pricing)
		assert.ErrorContains(t, err, "invalid parameters")

		_, err = r.New("default", map[string]any{"rsi_threshold": 70, "grid_spacing": 2}, pricing)
		assert.Error(t, err)

		_, err = r.New("default", map[string]any{}, pricing)
		assert.Error(t, err)
	})

	t.Run("custom registration", func(t *testing.T) {
		err := r.Register(Definition{Name: "noop", Factory: func(map[string]any, Options) (Strategy, error) {
			return NewBollinger(pricing), nil
		}})
		require.NoError(t, err)
		_, err = r.New("noop", map[string]any{"anything": true}, pricing)
		assert.NoError(t, err)

		assert.Error(t, r.Register(Definition{Name: "broken", Schema: "{", Factory: newBollingerFromMap}))
		assert.Error(t, r.Register(Definition{Name: "nofactory"}))
	})
}

func TestSellPriceRounding(t *testing.T) {
	opts := Options{PricePrecision: 0, SellMarkup: d("0.01")}
	assert.Equal(t, "111", opts.SellPrice(d("110")).String())
	assert.Equal(t, "101", Options{PricePrecision: 2}.withDefaults().SellPrice(d("100")).String())
}

func TestSellProfitUsesRoundedPrice(t *testing.T) {
	lv := grid.Level{Price: d("110.4"), Quantity: d("2")}
	in := sellIntent(lv, Options{PricePrecision: 0, SellMarkup: d("0.01")})
	assert.Equal(t, "112", in.Price.String())
	// 112 - 110.4，不是 110.4*0.01
	assert.True(t, in.Profit.Equal(d("1.6")), "profit %s", in.Profit)
	assert.True(t, in.Level.Price.Equal(d("110.4")))
}
