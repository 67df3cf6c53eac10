package values

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		currency  string
		wantError bool
	}{
		{
			name:     "valid USD amount",
			amount:   "100.50",
			currency: "USD",
		},
		{
			name:     "lowercase currency is normalized",
			amount:   "10",
			currency: "usd",
		},
		{
			name:      "empty currency",
			amount:    "10",
			currency:  "",
			wantError: true,
		},
		{
			name:      "unknown currency",
			amount:    "10",
			currency:  "XXX",
			wantError: true,
		},
		{
			name:      "malformed currency code",
			amount:    "10",
			currency:  "DOLLARS",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.amount, tt.currency)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "USD", m.Currency())
		})
	}
}

func TestMoney_Comparisons(t *testing.T) {
	a := MustNewMoneyFromFloat(100, USD)
	b := MustNewMoneyFromFloat(150, USD)

	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.LessThan(b))
	assert.True(t, a.GreaterThanOrEqual(a))
	assert.True(t, a.Equal(MustNewMoney(decimal.NewFromInt(100), USD)))
	assert.Equal(t, a, a.Min(b))
	assert.Equal(t, a, b.Min(a))

	assert.Panics(t, func() {
		a.Compare(MustNewMoneyFromFloat(100, EUR))
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustNewMoneyFromFloat(100, USD)
	step := MustNewMoneyFromFloat(10, USD)

	sum := a.MustAdd(step)
	assert.Equal(t, "110.00 USD", sum.String())

	diff, err := sum.Sub(step)
	require.NoError(t, err)
	assert.True(t, diff.Equal(a))

	_, err = a.Add(MustNewMoneyFromFloat(1, EUR))
	require.Error(t, err)
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := MustNewMoneyFromFloat(130.5, USD)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equal(decoded))
}

func TestMoney_ScanFromFloat(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan(float64(42.5)))
	assert.Equal(t, "42.50 USD", m.String())
}
