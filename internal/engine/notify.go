package engine

import (
	"fmt"
	"time"

	"gridbot/internal/gateway/notifier"
	"gridbot/internal/grid"
	"gridbot/internal/performance"
	"gridbot/internal/risk"
)

func startMessage(sym string, snap grid.Snapshot, strategyName, venue string, at time.Time) notifier.Message {
	return notifier.Message{
		Icon:  "🚀",
		Title: "gridbot started " + sym,
		Fields: []notifier.Field{
			notifier.F("venue", venue),
			notifier.F("strategy", strategyName),
			notifier.F("grid", string(snap.Mode)),
			notifier.F("range", snap.Lower.String()+" - "+snap.Upper.String()),
			notifier.F("levels", len(snap.Levels)),
		},
		Timestamp: at,
	}
}

func gridReplacedMessage(sym string, prev, next grid.Snapshot, placed, total int, at time.Time) notifier.Message {
	return notifier.Message{
		Icon:  "🔁",
		Title: "grid adjusted " + sym,
		Fields: []notifier.Field{
			notifier.F("volatility", next.Volatility.String()),
			notifier.F("levels", fmt.Sprintf("%d -> %d", len(prev.Levels), len(next.Levels))),
			notifier.F("orders_placed", fmt.Sprintf("%d/%d", placed, total)),
		},
		Timestamp: at,
	}
}

func stopLossMessage(sym string, stop *risk.StopLossTriggered, m performance.Metrics, at time.Time) notifier.Message {
	return notifier.Message{
		Icon:  "🛑",
		Title: "stop-loss triggered " + sym,
		Fields: []notifier.Field{
			notifier.F("price", stop.Price.String()),
			notifier.F("stop", stop.StopPrice.String()),
			notifier.F("total_profit", m.TotalProfit.StringFixed(4)),
		},
		Footer:    "bot is shutting down",
		Timestamp: at,
	}
}

func shutdownMessage(sym string, cancelled int, m performance.Metrics, cause error, at time.Time) notifier.Message {
	msg := notifier.Message{
		Icon:  "⏹",
		Title: "gridbot stopped " + sym,
		Fields: []notifier.Field{
			notifier.F("cancelled_orders", cancelled),
			notifier.F("total_trades", m.TotalTrades),
			notifier.F("total_profit", m.TotalProfit.StringFixed(4)),
			notifier.F("win_rate", m.WinRate.StringFixed(2)+"%"),
			notifier.F("max_drawdown", m.MaxDrawdown.StringFixed(4)),
		},
		Timestamp: at,
	}
	if cause != nil {
		msg.Footer = cause.Error()
	}
	return msg
}

