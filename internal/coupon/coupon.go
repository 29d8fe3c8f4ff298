// Package coupon maps coupon codes to discount rates.
package coupon

import (
	"strings"

	"github.com/shopspring/decimal"
)

var rates = map[string]decimal.Decimal{
	"SAVE10": decimal.RequireFromString("0.10"),
	"SAVE5":  decimal.RequireFromString("0.05"),
}

// Result is the outcome of evaluating a code. Code is the normalized code
// when recognized and empty otherwise, so applying an unknown code clears
// any previous coupon.
type Result struct {
	Code       string          `json:"code,omitempty"`
	Rate       decimal.Decimal `json:"rate"`
	Recognized bool            `json:"recognized"`
}

// Normalize trims and upper-cases a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate looks code up in the static table.
func Evaluate(code string) Result {
	norm := Normalize(code)
	rate, ok := rates[norm]
	if !ok {
		return Result{Rate: decimal.Zero}
	}
	return Result{Code: norm, Rate: rate, Recognized: true}
}

// Discount returns subtotal * rate(code), rounded to cents.
func Discount(subtotal decimal.Decimal, code string) decimal.Decimal {
	return subtotal.Mul(Evaluate(code).Rate).Round(2)
}
