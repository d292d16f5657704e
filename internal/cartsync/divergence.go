package cartsync

import (
	"github.com/kitco/pricer/internal/currency"
	"github.com/kitco/pricer/internal/domain"
)

// DefaultToleranceBps is the drift, in basis points of the target price,
// a line item may have before it is overridden. Any mismatch counts.
const DefaultToleranceBps = 0

// Divergent returns the indices of items whose price drifted from
// currentPrice by more than toleranceBps. A tolerance of 0 requires an
// exact match in minor units.
func Divergent(items []domain.OrderItem, currentPrice float64, toleranceBps int64) []int {
	target := currency.ToMinorUnits(currentPrice)
	if target <= 0 {
		return nil
	}
	if toleranceBps < 0 {
		toleranceBps = 0
	}

	var out []int
	for i, it := range items {
		diff := it.Price - target
		if diff < 0 {
			diff = -diff
		}
		// diff/target > bps/10000, kept in integers.
		if diff*10000 > toleranceBps*target {
			out = append(out, i)
		}
	}
	return out
}
