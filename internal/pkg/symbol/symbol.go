// Package symbol 在内部格式 BASE/QUOTE 与各交易所格式之间转换交易对。
package symbol

import "strings"

// knownQuotes 用于拆分无分隔符的交易对（如 BTCUSDT），按长度优先匹配。
var knownQuotes = []string{"FDUSD", "USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Valid() bool { return s.Base != "" && s.Quote != "" }

// Internal 返回 BASE/QUOTE。
func (s Symbol) Internal() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Binance 返回 BASEQUOTE。
func (s Symbol) Binance() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + s.Quote
}

// Gate 返回 BASE_QUOTE。
func (s Symbol) Gate() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + "_" + s.Quote
}

// Parse 接受 BTC/USDT、BTC_USDT、BTC-USDT、BTCUSDT 以及带 :SETTLE 后缀的写法。
func Parse(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	for _, sep := range []string{"/", "_", "-"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1])}
		}
	}
	for _, quote := range knownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// Normalize 返回内部格式；无法识别时返回空串。
func Normalize(raw string) string { return Parse(raw).Internal() }

// ToBinance 无法识别报价币时退化为去掉分隔符的大写形式。
func ToBinance(raw string) string {
	if sym := Parse(raw); sym.Valid() {
		return sym.Binance()
	}
	return strings.NewReplacer("/", "", "_", "", "-", "").Replace(strings.ToUpper(strings.TrimSpace(raw)))
}

// ToGate 无法识别报价币时原样返回大写形式。
func ToGate(raw string) string {
	if sym := Parse(raw); sym.Valid() {
		return sym.Gate()
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}
