// Package discount computes the tiered bulk price table and the
// original-versus-current price summary shown next to a product.
package discount

import (
	"errors"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kitco/pricer/internal/currency"
	"github.com/kitco/pricer/internal/domain"
)

// ErrUnavailable is returned when a payment method has no rate for a tier.
var ErrUnavailable = errors.New("discount: rate unavailable")

// Price returns base*(1-paymentDiscount-tierDiscount) rounded to two
// decimal places. An invalid base yields 0 and a warning.
func Price(base, paymentDiscount, tierDiscount float64) float64 {
	if math.IsNaN(base) || math.IsInf(base, 0) || base <= 0 {
		log.Warn().Str("component", "discount").Float64("base", base).Msg("invalid base price for calculation")
		return 0
	}
	total := decimal.NewFromFloat(paymentDiscount).Add(decimal.NewFromFloat(tierDiscount))
	p := decimal.NewFromFloat(base).Mul(decimal.NewFromInt(1).Sub(total))
	return p.Round(2).InexactFloat64()
}

// Schedule maps payment methods and quantity tiers to additive discounts.
type Schedule struct {
	// Methods is the display order of payment columns.
	Methods []domain.PaymentMethod
	// MethodDiscount is the base discount per payment method.
	MethodDiscount map[domain.PaymentMethod]float64
	// Tiers are ordered by ascending MinQuantity.
	Tiers []domain.Tier
	// Unavailable lists method/tier cells that have no rate.
	Unavailable map[domain.PaymentMethod]int
}

// DefaultSchedule is the storefront schedule: wire/check 4%, bitcoin 3%,
// 10+ an extra 1%, 40+ an extra 2%, and no bitcoin rate at 40+.
func DefaultSchedule() Schedule {
	return Schedule{
		Methods: []domain.PaymentMethod{domain.PaymentWireCheck, domain.PaymentCard, domain.PaymentBitcoin},
		MethodDiscount: map[domain.PaymentMethod]float64{
			domain.PaymentCard:      0,
			domain.PaymentWireCheck: 0.04,
			domain.PaymentBitcoin:   0.03,
		},
		Tiers: []domain.Tier{
			{MinQuantity: 1, Discount: 0},
			{MinQuantity: 10, Discount: 0.01},
			{MinQuantity: 40, Discount: 0.02},
		},
		Unavailable: map[domain.PaymentMethod]int{
			domain.PaymentBitcoin: 40,
		},
	}
}

// TierFor returns the highest tier whose threshold quantity reaches.
func (s Schedule) TierFor(quantity int) (domain.Tier, bool) {
	var (
		tier  domain.Tier
		found bool
	)
	for _, t := range s.Tiers {
		if quantity >= t.MinQuantity {
			tier, found = t, true
		}
	}
	return tier, found
}

// Available reports whether method has a rate at tier.
func (s Schedule) Available(method domain.PaymentMethod, tier domain.Tier) bool {
	if _, ok := s.MethodDiscount[method]; !ok {
		return false
	}
	if from, ok := s.Unavailable[method]; ok && tier.MinQuantity >= from {
		return false
	}
	return true
}

// Quote is the price of a purchase of Quantity units paid with Method.
type Quote struct {
	Method    domain.PaymentMethod `json:"method"`
	Quantity  int                  `json:"quantity"`
	Tier      int                  `json:"tier"`
	UnitPrice float64              `json:"unit_price"`
	Total     float64              `json:"total"`
	Formatted string               `json:"formatted_total"`
}

// Quote prices quantity units at the current price.
func (s Schedule) Quote(current float64, method domain.PaymentMethod, quantity int) (*Quote, error) {
	tier, ok := s.TierFor(quantity)
	if !ok {
		return nil, errors.New("discount: quantity below lowest tier")
	}
	if !s.Available(method, tier) {
		return nil, ErrUnavailable
	}
	unit := Price(current, s.MethodDiscount[method], tier.Discount)
	total := decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
	return &Quote{
		Method:    method,
		Quantity:  quantity,
		Tier:      tier.MinQuantity,
		UnitPrice: unit,
		Total:     total,
		Formatted: currency.FormatUSD(total),
	}, nil
}
