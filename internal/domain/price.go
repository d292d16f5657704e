package domain

import "time"

type PriceOrigin string

const (
	OriginLocal    PriceOrigin = "local"
	OriginRemote   PriceOrigin = "remote"
	OriginFallback PriceOrigin = "fallback"
)

// PriceState is the simulated price of one product. OriginalPrice is the
// anchor and never changes after registration; CurrentPrice is recomputed
// from it on every tick.
type PriceState struct {
	ProductID     string      `json:"product_id"`
	OriginalPrice float64     `json:"original_price"`
	CurrentPrice  float64     `json:"current_price"`
	Origin        PriceOrigin `json:"origin,omitempty"`
	Seq           uint64      `json:"seq"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Loading reports whether the state has no usable price yet.
func (s PriceState) Loading() bool {
	return s.OriginalPrice <= 0 || s.CurrentPrice <= 0
}

// PriceTick is a single emitted price.
type PriceTick struct {
	ProductID     string      `json:"product_id"`
	OriginalPrice float64     `json:"original_price"`
	Price         float64     `json:"price"`
	Origin        PriceOrigin `json:"origin"`
	Seq           uint64      `json:"seq"`
	EmittedAt     time.Time   `json:"emitted_at"`
}
