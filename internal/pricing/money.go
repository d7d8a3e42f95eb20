package pricing

import "github.com/shopspring/decimal"

// Persistence stores money as int64 paise; these helpers convert at the
// repository boundary so the engine only ever sees currency-unit decimals.

// ToMinorUnits converts a currency amount to whole paise, rounding half-up.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts whole paise back to a currency amount.
func FromMinorUnits(p int64) decimal.Decimal {
	return decimal.New(p, -2)
}
