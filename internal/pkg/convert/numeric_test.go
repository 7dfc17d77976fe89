package convert

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecimal(t *testing.T) {
	assert.True(t, Decimal(1.25).Equal(Decimal(1.25)))
	assert.True(t, Decimal(math.NaN()).IsZero())
	assert.True(t, Decimal(math.Inf(1)).IsZero())
	assert.Equal(t, 1.25, Float(Decimal(1.25)))
}

func TestDecimalPtr(t *testing.T) {
	assert.Nil(t, DecimalPtr(0))
	p := DecimalPtr(90)
	if assert.NotNil(t, p) {
		assert.Equal(t, "90", p.String())
	}
}

func TestNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 3, want: 3, ok: true},
		{in: int64(4), want: 4, ok: true},
		{in: " 65.5 ", want: 65.5, ok: true},
		{in: json.Number("7"), want: 7, ok: true},
		{in: "abc", ok: false},
		{in: true, ok: false},
	}
	for _, tc := range cases {
		got, ok := Number(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}
