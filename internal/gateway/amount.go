package gateway

import (
	"math"
	"strings"

	"clinic-booking/pkg/apperror"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places of each supported currency.
var minorUnitExponent = map[string]int32{
	"usd": 2,
	"inr": 2,
	"eur": 2,
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a major-unit amount to the processor's integer
// representation, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp, ok := minorUnitExponent[strings.ToLower(currency)]
	if !ok {
		return 0, apperror.New(apperror.KindInvalidAmount, "unsupported currency %q", currency)
	}
	if !amount.IsPositive() {
		return 0, apperror.New(apperror.KindInvalidAmount, "amount must be greater than 0, got %s", amount)
	}

	scaled := amount.Shift(exp).Round(0)
	if scaled.Sign() <= 0 {
		return 0, apperror.New(apperror.KindInvalidAmount, "amount %s is below the smallest %s unit", amount, currency)
	}
	if scaled.GreaterThan(maxMinorUnits) {
		return 0, apperror.New(apperror.KindInvalidAmount, "amount %s is too large", amount)
	}
	return scaled.IntPart(), nil
}

// ToMajorUnits is the inverse of ToMinorUnits. Unknown currencies are treated
// as having two decimal places.
func ToMajorUnits(minor int64, currency string) decimal.Decimal {
	exp, ok := minorUnitExponent[strings.ToLower(currency)]
	if !ok {
		exp = 2
	}
	return decimal.New(minor, -exp)
}
