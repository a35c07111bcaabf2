package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/spendtrack/internal/money"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr error
	}{
		{in: "1", want: 100},
		{in: "1.5", want: 150},
		{in: "1234.56", want: 123456},
		{in: " 2.50 ", want: 250},
		{in: "-10.25", want: -1025},
		{in: "0", want: 0},
		{in: "1.005", wantErr: money.ErrTooPrecise},
		{in: "abc", wantErr: money.ErrInvalidAmount},
		{in: "", wantErr: money.ErrInvalidAmount},
		{in: "99999999999999999999", wantErr: money.ErrOutOfRange},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := money.Parse(tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseEuropean(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr error
	}{
		{in: "1.234,56", want: 123456},
		{in: "-588,74", want: -58874},
		{in: "10,00", want: 1000},
		{in: "8.608,52", want: 860852},
		{in: "999.999.999.999,99", want: money.MaxCents},
		{in: "10,005", wantErr: money.ErrTooPrecise},
		{in: "0,004", wantErr: money.ErrTooPrecise},
		{in: "1.000.000.000.000,00", wantErr: money.ErrOutOfRange},
		{in: "99.999.999.999.999.999,99", wantErr: money.ErrOutOfRange},
		{in: "n/a", wantErr: money.ErrInvalidAmount},
		{in: " ", wantErr: money.ErrInvalidAmount},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := money.ParseEuropean(tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromDecimal_Limit(t *testing.T) {
	got, err := money.FromDecimal(decimal.RequireFromString("-999999999999.99"))
	require.NoError(t, err)
	assert.Equal(t, -money.MaxCents, got)

	_, err = money.FromDecimal(decimal.RequireFromString("50000000000000000.00"))
	assert.ErrorIs(t, err, money.ErrOutOfRange)
}

func TestAddSub(t *testing.T) {
	const maxInt64 = 1<<63 - 1

	sum, err := money.Add(maxInt64-1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(maxInt64), sum)

	_, err = money.Add(maxInt64, 1)
	assert.ErrorIs(t, err, money.ErrOutOfRange)

	_, err = money.Add(-maxInt64-1, -1)
	assert.ErrorIs(t, err, money.ErrOutOfRange)

	diff, err := money.Sub(100, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(-150), diff)

	_, err = money.Sub(-maxInt64-1, 1)
	assert.ErrorIs(t, err, money.ErrOutOfRange)

	_, err = money.Sub(0, -maxInt64-1)
	assert.ErrorIs(t, err, money.ErrOutOfRange)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "10.50", money.Format(1050))
	assert.Equal(t, "-0.05", money.Format(-5))
	assert.Equal(t, "0.00", money.Format(0))
	assert.True(t, money.Decimal(123456).Equal(decimal.RequireFromString("1234.56")))
}
