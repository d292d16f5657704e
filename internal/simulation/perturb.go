// Package simulation produces the simulated product prices: a bounded
// random walk around each product's anchor price on a fixed clock.
package simulation

import (
	"math"
	"math/rand"

	"github.com/kitco/pricer/internal/currency"
)

// DefaultRadius is the perturbation radius used when none is configured.
const DefaultRadius = 0.05

// Perturb draws a price uniformly from [anchor*(1-radius), anchor*(1+radius)]
// and rounds it to whole currency units. It reports false when the anchor
// is not a usable price.
func Perturb(rng *rand.Rand, anchor, radius float64) (float64, bool) {
	if math.IsNaN(anchor) || math.IsInf(anchor, 0) || anchor <= 0 {
		return 0, false
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		radius = DefaultRadius
	}
	radius = math.Abs(radius)
	if radius > 1 {
		radius = 1
	}
	lo := anchor * (1 - radius)
	hi := anchor * (1 + radius)
	v := lo + rng.Float64()*(hi-lo)

	p := math.Round(v)
	if p <= 0 {
		// Sub-unit anchors would round to zero.
		p = currency.Round2(v)
	}
	return p, true
}
