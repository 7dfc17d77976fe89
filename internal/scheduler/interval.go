package scheduler

import (
	"strconv"
	"strings"
	"time"

	"gridbot/internal/market"
)

// KlineGrace 是判定最后一根 K 线已收盘时额外等待的时间。
const KlineGrace = 10 * time.Second

var intervalUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseIntervalDuration 解析 K 线周期（"30s"、"15m"、"1h"、"1d"、"1w"，大小写不敏感）。
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return 0, false
	}
	unit, ok := intervalUnits[interval[len(interval)-1]]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// DropUnclosedKline 去掉交易所附带的未收盘 K 线（总在末尾）。
func DropUnclosedKline(klines []market.Candle, interval time.Duration) []market.Candle {
	return dropUnclosedKlineAt(klines, interval, time.Now().UTC(), KlineGrace)
}

func dropUnclosedKlineAt(klines []market.Candle, interval time.Duration, now time.Time, grace time.Duration) []market.Candle {
	n := len(klines)
	if n == 0 || interval <= 0 || klines[n-1].OpenTime <= 0 {
		return klines
	}
	closeAt := time.UnixMilli(klines[n-1].OpenTime).Add(interval + max(grace, 0))
	if now.Before(closeAt) {
		return klines[:n-1]
	}
	return klines
}
