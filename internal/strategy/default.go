package strategy

import (
	"fmt"

	"gridbot/internal/grid"
	"gridbot/internal/logger"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
)

const DefaultName = "default"

const defaultSchema = `{
  "type": "object",
  "properties": {
    "volatility_period":  {"type": "integer", "minimum": 1},
    "rsi_threshold":      {"type": "number", "minimum": 0, "maximum": 100},
    "macd_fast_period":   {"type": "integer", "minimum": 1},
    "macd_slow_period":   {"type": "integer", "minimum": 2},
    "macd_signal_period": {"type": "integer", "minimum": 1},
    "bollinger_period":   {"type": "integer", "minimum": 1},
    "bollinger_std_dev":  {"type": "number", "exclusiveMinimum": 0}
  },
  "required": ["rsi_threshold"],
  "additionalProperties": false
}`

// DefaultParams 默认策略只关心 RSI 阈值，其余周期参数由引擎计算指标时使用。
type DefaultParams struct {
	RSIThreshold float64 `mapstructure:"rsi_threshold"`
}

// Default 实现 RSI 买入 / MACD 柱卖出的网格策略：
//   - RSI < 阈值：在第一个价格 >= 当前价的网格买入（按升序首个命中，不比较优劣）；
//   - 最新 MACD 柱 > 0：在第一个未被本次买单占用的网格卖出，卖价为网格价上浮 markup。
//
// 每次最多产出一买一卖。
type Default struct {
	params DefaultParams
	opts   Options
}

func NewDefault(params DefaultParams, opts Options) *Default {
	return &Default{params: params, opts: opts.withDefaults()}
}

func newDefaultFromMap(raw map[string]any, opts Options) (Strategy, error) {
	var p DefaultParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return NewDefault(p, opts), nil
}

func (s *Default) Name() string { return DefaultName }

func (s *Default) Params() DefaultParams { return s.params }

func (s *Default) Decide(price decimal.Decimal, snap grid.Snapshot, sig Signals) []Intent {
	intents := make([]Intent, 0, 2)
	buyIdx := -1
	if sig.RSI < s.params.RSIThreshold {
		if idx := firstLevelAtOrAbove(snap.Levels, price); idx >= 0 {
			buyIdx = idx
			in := buyIntent(snap.Levels[idx])
			intents = append(intents, in)
			logger.Debugf("strategy %s: rsi %.2f < %.2f, buy %s @ %s", s.Name(), sig.RSI, s.params.RSIThreshold, in.Quantity, in.Price)
		}
	}
	if last, ok := sig.MACD.LastHistogram(); ok && last > 0 {
		for i, lv := range snap.Levels {
			if i == buyIdx {
				continue
			}
			in := sellIntent(lv, s.opts)
			intents = append(intents, in)
			logger.Debugf("strategy %s: macd hist %.4f > 0, sell %s @ %s profit %s", s.Name(), last, in.Quantity, in.Price, in.Profit)
			break
		}
	}
	return intents
}

func decodeParams(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode strategy params: %w", err)
	}
	return nil
}
