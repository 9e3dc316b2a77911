package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision monetary values are kept at.
const CurrencyPlaces = 2

// MaxAmount is the largest magnitude an amount may have. It is what a
// NUMERIC(14,2) column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

const (
	maxIntegerDigits = 12
	// maxScale bounds the decimal places accepted before rounding.
	maxScale = 20
)

var feeStep = decimal.NewFromInt(100)

// CheckAmount rejects values outside [-MaxAmount, MaxAmount] or with more
// than maxScale decimal places. It only inspects digit counts before
// comparing, so inputs like "1e1000000" are refused without expanding them.
func CheckAmount(field string, d decimal.Decimal) error {
	if d.Exponent() < -maxScale {
		return &ErrValidation{Field: field, Message: fmt.Sprintf("more than %d decimal places", maxScale)}
	}
	if int64(d.NumDigits())+int64(d.Exponent()) > maxIntegerDigits || d.Abs().Cmp(MaxAmount) > 0 {
		return &ErrValidation{Field: field, Message: "must not exceed " + MaxAmount.String()}
	}
	return nil
}

// Fee returns the commission charged for amount: one currency unit per
// started hundred, with no upper bound. Amounts <= 0 carry no fee.
//
//	(0, 100] -> 1, (100, 200] -> 2, ...
func Fee(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	q, r := amount.QuoRem(feeStep, 0)
	if !r.IsZero() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

// Total returns amount + fee.
func Total(amount, fee decimal.Decimal) decimal.Decimal {
	return amount.Add(fee)
}

// RoundMoney rounds v to currency precision.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(CurrencyPlaces)
}

// FeeQuote is returned by the fee quote endpoint and CLI.
type FeeQuote struct {
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
	Total  decimal.Decimal `json:"total"`
}

// QuoteFee computes the fee and total for an amount without creating a receipt.
func QuoteFee(amount decimal.Decimal) FeeQuote {
	amount = RoundMoney(amount)
	fee := Fee(amount)
	return FeeQuote{Amount: amount, Fee: fee, Total: Total(amount, fee)}
}
