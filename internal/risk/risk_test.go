package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestTrailingStopNeverDecreases(t *testing.T) {
	m, err := NewManager(Config{TrailingEnabled: true, TrailingPct: d("0.05")})
	require.NoError(t, err)

	dec, err := m.Evaluate(d("100"))
	require.NoError(t, err)
	assert.True(t, dec.TrailingUpdated)
	assert.True(t, dec.TrailingStop.Equal(d("95")))

	prices := []string{"90", "80", "99", "100"}
	for _, p := range prices {
		dec, err = m.Evaluate(d(p))
		require.NoError(t, err)
		assert.False(t, dec.TrailingUpdated, "price %s", p)
		assert.True(t, m.State().TrailingStopPrice.Equal(d("95")), "price %s", p)
	}

	dec, err = m.Evaluate(d("120"))
	require.NoError(t, err)
	assert.True(t, dec.TrailingUpdated)
	assert.True(t, dec.TrailingStop.Equal(d("114")))

	_, _ = m.Evaluate(d("101"))
	assert.True(t, m.State().TrailingStopPrice.Equal(d("114")))
}

func TestTrailingDisabledIsNotTracked(t *testing.T) {
	m, err := NewManager(Config{TrailingPct: d("0.05")})
	require.NoError(t, err)
	dec, err := m.Evaluate(d("100"))
	require.NoError(t, err)
	assert.Nil(t, dec.TrailingStop)
	assert.Nil(t, m.State().TrailingStopPrice)
}

func TestStopLossIsTerminal(t *testing.T) {
	m, err := NewManager(Config{StopLoss: ptr("90"), TrailingEnabled: true, TrailingPct: d("0.1")})
	require.NoError(t, err)

	_, err = m.Evaluate(d("90"))
	require.NoError(t, err, "equal to stop does not trigger")
	assert.False(t, m.Triggered())

	dec, err := m.Evaluate(d("89.99"))
	var sl *StopLossTriggered
	require.True(t, errors.As(err, &sl))
	assert.True(t, sl.StopPrice.Equal(d("90")))
	assert.NotNil(t, dec.TrailingStop)
	assert.True(t, m.Triggered())

	_, err = m.Evaluate(d("150"))
	require.ErrorAs(t, err, &sl)
	assert.True(t, sl.Price.Equal(d("89.99")))
	assert.True(t, m.State().TrailingStopPrice.Equal(d("81")), "trailing is frozen after trigger")
}

func TestNoStopLossConfigured(t *testing.T) {
	m, err := NewManager(Config{StopLoss: ptr("0")})
	require.NoError(t, err)
	_, err = m.Evaluate(d("0.0001"))
	assert.NoError(t, err)
	assert.Nil(t, m.State().StopLossPrice)
}

func TestNewManagerValidatesPct(t *testing.T) {
	_, err := NewManager(Config{TrailingEnabled: true, TrailingPct: d("1")})
	assert.Error(t, err)
	_, err = NewManager(Config{TrailingEnabled: true})
	assert.Error(t, err)
}
