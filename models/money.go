package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// amounts go out as plain JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// MoneyScale is the number of fractional digits kept for stored amounts.
const MoneyScale = 2

// RoundMoney rounds an amount to MoneyScale places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}
