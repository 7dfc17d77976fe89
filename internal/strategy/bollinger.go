package strategy

import (
	"gridbot/internal/grid"
	"gridbot/internal/logger"

	"github.com/shopspring/decimal"
)

const BollingerName = "bollinger"

const bollingerSchema = `{
  "type": "object",
  "properties": {
    "volatility_period":  {"type": "integer", "minimum": 1},
    "rsi_threshold":      {"type": "number", "minimum": 0, "maximum": 100},
    "macd_fast_period":   {"type": "integer", "minimum": 1},
    "macd_slow_period":   {"type": "integer", "minimum": 2},
    "macd_signal_period": {"type": "integer", "minimum": 1},
    "bollinger_period":   {"type": "integer", "minimum": 2},
    "bollinger_std_dev":  {"type": "number", "exclusiveMinimum": 0}
  },
  "additionalProperties": false
}`

// Bollinger 均值回归网格：价格触及下轨时在上方最近网格买入，
// 触及上轨时卖出当前价下方最近网格的仓位。
type Bollinger struct {
	opts Options
}

func NewBollinger(opts Options) *Bollinger {
	return &Bollinger{opts: opts.withDefaults()}
}

func newBollingerFromMap(_ map[string]any, opts Options) (Strategy, error) {
	return NewBollinger(opts), nil
}

func (s *Bollinger) Name() string { return BollingerName }

func (s *Bollinger) Decide(price decimal.Decimal, snap grid.Snapshot, sig Signals) []Intent {
	if sig.Bands == nil || len(snap.Levels) == 0 {
		return nil
	}
	p, _ := price.Float64()
	var intents []Intent
	switch {
	case p <= sig.Bands.Lower:
		if idx := firstLevelAtOrAbove(snap.Levels, price); idx >= 0 {
			intents = append(intents, buyIntent(snap.Levels[idx]))
		}
	case p >= sig.Bands.Upper:
		for i := len(snap.Levels) - 1; i >= 0; i-- {
			if snap.Levels[i].Price.LessThanOrEqual(price) {
				intents = append(intents, sellIntent(snap.Levels[i], s.opts))
				break
			}
		}
	}
	if len(intents) > 0 {
		logger.Debugf("strategy %s: price %s bands [%.4f, %.4f], %d intents", s.Name(), price, sig.Bands.Lower, sig.Bands.Upper, len(intents))
	}
	return intents
}
