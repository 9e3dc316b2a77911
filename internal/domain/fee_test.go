package domain_test

import (
	"testing"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFee_NonPositiveAmountsAreFree(t *testing.T) {
	for _, amount := range []string{"0", "-0.01", "-100", "-250.75"} {
		assert.True(t, domain.Fee(dec(amount)).IsZero(), "amount %s", amount)
	}
}

func TestFee_OneUnitPerStartedHundred(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"0.01", 1},
		{"1", 1},
		{"99.99", 1},
		{"100", 1},
		{"100.01", 2},
		{"150", 2},
		{"200", 2},
		{"200.001", 3},
		{"300", 3},
		{"999.99", 10},
		{"1000", 10},
		{"123456.78", 1235},
	}
	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			got := domain.Fee(dec(tc.amount))
			assert.True(t, got.Equal(decimal.NewFromInt(tc.want)), "fee(%s) = %s, want %d", tc.amount, got, tc.want)
		})
	}
}

func TestFee_BucketBoundariesForManyHundreds(t *testing.T) {
	for k := int64(0); k < 50; k++ {
		low := decimal.NewFromInt(100 * k)
		justAbove := low.Add(dec("0.01"))
		top := low.Add(decimal.NewFromInt(100))
		want := decimal.NewFromInt(k + 1)

		assert.True(t, domain.Fee(justAbove).Equal(want), "k=%d lower edge", k)
		assert.True(t, domain.Fee(top).Equal(want), "k=%d upper edge", k)
	}
}

func TestTotal_IsExactSum(t *testing.T) {
	amount := dec("250.35")
	fee := domain.Fee(amount)

	assert.Equal(t, "253.35", domain.Total(amount, fee).StringFixed(2))
}

func TestQuoteFee_RoundsToCurrencyPrecision(t *testing.T) {
	q := domain.QuoteFee(dec("100.004"))

	assert.Equal(t, "100.00", q.Amount.StringFixed(2))
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "101.00", q.Total.StringFixed(2))
}

func TestCheckAmount(t *testing.T) {
	for _, ok := range []string{"0", "100.004", "-999999999999.99", "999999999999.99", "1e11"} {
		assert.NoError(t, domain.CheckAmount("amount", dec(ok)), ok)
	}
	for _, bad := range []string{"1000000000000", "999999999999.991", "1e12", "1e1000000", "0e1000000", "1e-1000000"} {
		err := domain.CheckAmount("amount", dec(bad))
		var verr *domain.ErrValidation
		if assert.ErrorAs(t, err, &verr, bad) {
			assert.Equal(t, "amount", verr.Field)
		}
	}
}
