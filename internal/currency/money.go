package currency

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// MinorPerMajor is the number of minor units (cents) in one major unit.
const MinorPerMajor = 100

// ToMinorUnits converts a major-unit amount to integer cents, rounding
// half away from zero. Non-finite input converts to 0.
func ToMinorUnits(major float64) int64 {
	if math.IsNaN(major) || math.IsInf(major, 0) {
		return 0
	}
	return decimal.NewFromFloat(major).Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts integer cents to a major-unit amount.
func FromMinorUnits(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatUSD renders an amount as "$1,234.50".
func FormatUSD(v float64) string {
	s := humanize.FormatFloat("#,###.##", math.Abs(Round2(v)))
	if v < 0 && strings.Trim(s, "0.,") != "" {
		return "-$" + s
	}
	return "$" + s
}
