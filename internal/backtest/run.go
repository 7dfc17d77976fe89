package backtest

import (
	"time"

	"gridbot/internal/performance"
)

// Point 是回放曲线上的一个采样（每根 K 线一次）。
type Point struct {
	Time       time.Time `json:"time"`
	Price      float64   `json:"price"`
	Profit     float64   `json:"profit"`
	OpenOrders int       `json:"open_orders"`
}

// GridMark 记录某一时刻生效的网格价位。
type GridMark struct {
	Time   time.Time `json:"time"`
	Mode   string    `json:"mode"`
	Levels []float64 `json:"levels"`
}

// RunStats 汇总一次回放的结果。
type RunStats struct {
	ID           string              `json:"id"`
	Symbol       string              `json:"symbol"`
	Interval     string              `json:"interval"`
	Strategy     string              `json:"strategy"`
	Start        time.Time           `json:"start"`
	End          time.Time           `json:"end"`
	Candles      int                 `json:"candles"`
	Cycles       int                 `json:"cycles"`
	Skipped      int                 `json:"skipped"`
	Errors       int                 `json:"errors"`
	Fills        int                 `json:"fills"`
	BuyFills     int                 `json:"buy_fills"`
	SellFills    int                 `json:"sell_fills"`
	GridReplaces int                 `json:"grid_replaces"`
	StartPrice   float64             `json:"start_price"`
	EndPrice     float64             `json:"end_price"`
	StopLoss     bool                `json:"stop_loss"`
	StopPrice    float64             `json:"stop_price,omitempty"`
	Metrics      performance.Metrics `json:"performance_metrics"`
	Points       []Point             `json:"points,omitempty"`
	Grids        []GridMark          `json:"grids,omitempty"`
	FinishedAt   time.Time           `json:"finished_at"`
}
