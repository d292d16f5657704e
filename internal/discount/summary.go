package discount

import (
	"github.com/kitco/pricer/internal/currency"
)

// Summary compares the current price with the original one.
// DiscountPercent is negative when the price went up.
type Summary struct {
	Loading           bool    `json:"loading"`
	OriginalPrice     float64 `json:"original_price"`
	CurrentPrice      float64 `json:"current_price"`
	OriginalFormatted string  `json:"original_formatted"`
	CurrentFormatted  string  `json:"current_formatted"`
	DiscountPercent   float64 `json:"discount_percent"`
	Increased         bool    `json:"increased"`
}

func Summarize(original, current float64) Summary {
	s := Summary{
		Loading:           original <= 0 || current <= 0,
		OriginalPrice:     original,
		CurrentPrice:      current,
		OriginalFormatted: currency.FormatUSD(original),
		CurrentFormatted:  currency.FormatUSD(current),
	}
	if !s.Loading {
		s.DiscountPercent = currency.RoundTo((1-current/original)*100, 1)
	}
	s.Increased = s.DiscountPercent < 0
	return s
}
