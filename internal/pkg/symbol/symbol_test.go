package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := map[string]Symbol{
		"btc/usdt":       {Base: "BTC", Quote: "USDT"},
		"ETH_USDT":       {Base: "ETH", Quote: "USDT"},
		"SOL-USDC":       {Base: "SOL", Quote: "USDC"},
		"BTCUSDT":        {Base: "BTC", Quote: "USDT"},
		"ETHBTC":         {Base: "ETH", Quote: "BTC"},
		"BTCFDUSD":       {Base: "BTC", Quote: "FDUSD"},
		"BTC/USDT:USDT":  {Base: "BTC", Quote: "USDT"},
		"USDT":           {},
		"":               {},
	}
	for in, want := range cases {
		assert.Equal(t, want, Parse(in), in)
	}
}

func TestConversions(t *testing.T) {
	assert.Equal(t, "BTCUSDT", ToBinance("btc/usdt"))
	assert.Equal(t, "BTC_USDT", ToGate("BTCUSDT"))
	assert.Equal(t, "BTC/USDT", Normalize("btc_usdt"))
	assert.Equal(t, "XYZ", ToBinance("xyz"))
	assert.Equal(t, "FOO", ToGate("foo"))
}
