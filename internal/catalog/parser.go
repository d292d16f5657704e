package catalog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kitco/pricer/internal/domain"
)

var (
	// ErrNoPrice is returned for a product snapshot without a usable price.
	ErrNoPrice = errors.New("catalog: no product price available")
	// ErrInvalidSnapshot is returned for a snapshot that does not decode.
	ErrInvalidSnapshot = errors.New("catalog: invalid product snapshot")
)

// productContext accepts both a bare product and the host's
// {"product": {...}} context wrapper.
type productContext struct {
	Product *domain.Product `json:"product"`
}

// ParseProduct decodes a product snapshot as published by the host
// product context.
func ParseProduct(data []byte) (*domain.Product, error) {
	var wrapped productContext
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	p := wrapped.Product
	if p == nil {
		p = &domain.Product{}
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidSnapshot)
	}
	return p, nil
}
