package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Config 是 gridbot 的主配置载体。
type Config struct {
	App         AppConfig         `toml:"app"`
	Exchange    ExchangeConfig    `toml:"exchange"`
	Trading     TradingConfig     `toml:"trading"`
	Performance PerformanceConfig `toml:"performance"`
	Notify      NotifyConfig      `toml:"notify"`
	Backtest    BacktestConfig    `toml:"backtest"`
}

type AppConfig struct {
	Env           string `toml:"env"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"` // text | json
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	HTTPAddr      string `toml:"http_addr"`
	DBPath        string `toml:"db_path"`
}

// ExchangeConfig 描述交易所身份、凭证与行情来源。
type ExchangeConfig struct {
	ID                 string  `toml:"id"` // binance | paper
	APIKey             string  `toml:"api_key"`
	APISecret          string  `toml:"api_secret"`
	Sandbox            bool    `toml:"sandbox"`
	RESTBaseURL        string  `toml:"rest_base_url"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	RateLimitPerSecond float64 `toml:"rate_limit_per_second"`
	MarketSource       string  `toml:"market_source"` // paper 模式下的行情来源：binance | gate
	GateRESTURL        string  `toml:"gate_rest_url"`
}

// TradingConfig 网格区间、风控与策略参数。
type TradingConfig struct {
	Symbol              string             `toml:"symbol"`
	LowerPrice          float64            `toml:"lower_price"`
	UpperPrice          float64            `toml:"upper_price"`
	GridCount           int                `toml:"grid_count"`
	TotalInvestment     float64            `toml:"total_investment"`
	StopLoss            float64            `toml:"stop_loss"` // 0 表示不启用
	TrailingStop        TrailingStopConfig `toml:"trailing_stop"`
	DynamicGrids        bool               `toml:"dynamic_grids"`
	VolatilitySource    string             `toml:"volatility_source"` // rsi | bollinger
	VolatilityThreshold float64            `toml:"volatility_threshold"`
	PricePrecision      int                `toml:"price_precision"`
	SellMarkupPct       float64            `toml:"sell_markup_pct"`
	HistoryInterval     string             `toml:"history_interval"`
	HistoryLimit        int                `toml:"history_limit"` // 0 表示按指标周期自动推算
	Strategy            StrategyConfig     `toml:"strategy"`
}

type TrailingStopConfig struct {
	Enabled    bool    `toml:"enabled"`
	Percentage float64 `toml:"percentage"`
}

// StrategyConfig 选择策略实现并携带其原始参数。
type StrategyConfig struct {
	Type       string         `toml:"type"`
	Parameters map[string]any `toml:"parameters"`
}

// SignalParams 是 strategy.parameters 中与指标计算相关的强类型视图。
type SignalParams struct {
	VolatilityPeriod int     `mapstructure:"volatility_period"`
	RSIThreshold     float64 `mapstructure:"rsi_threshold"`
	MACDFastPeriod   int     `mapstructure:"macd_fast_period"`
	MACDSlowPeriod   int     `mapstructure:"macd_slow_period"`
	MACDSignalPeriod int     `mapstructure:"macd_signal_period"`
	BollingerPeriod  int     `mapstructure:"bollinger_period"`
	BollingerStdDev  float64 `mapstructure:"bollinger_std_dev"`
}

// Signals 解码 strategy.parameters；未知键被忽略，交由策略自身的 schema 校验。
func (s StrategyConfig) Signals() (SignalParams, error) {
	var out SignalParams
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return SignalParams{}, err
	}
	if err := dec.Decode(s.Parameters); err != nil {
		return SignalParams{}, fmt.Errorf("decode strategy parameters: %w", err)
	}
	return out, nil
}

// RequiredHistory 返回指标计算所需的最少收盘价数量。
func (p SignalParams) RequiredHistory() int {
	need := p.VolatilityPeriod + 1
	if v := p.MACDSlowPeriod + p.MACDSignalPeriod - 1; v > need {
		need = v
	}
	if p.BollingerPeriod > need {
		need = p.BollingerPeriod
	}
	return need
}

type PerformanceConfig struct {
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	ErrorBackoffSeconds int  `toml:"error_backoff_seconds"`
	RestoreLedger       bool `toml:"restore_ledger"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// BacktestConfig 控制历史回放。
type BacktestConfig struct {
	Source     string `toml:"source"` // binance | gate
	DataDir    string `toml:"data_dir"`
	Interval   string `toml:"interval"`
	Start      string `toml:"start"`
	End        string `toml:"end"`
	Limit      int    `toml:"limit"`
	ReportPath string `toml:"report_path"`
	ReportPNG  bool   `toml:"report_png"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
