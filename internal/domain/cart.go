package domain

import "time"

// OrderForm mirrors the host checkout order form. Only the fields the
// pricer reads are decoded.
type OrderForm struct {
	ID          string      `json:"id,omitempty"`
	OrderFormID string      `json:"orderFormId,omitempty"`
	Items       []OrderItem `json:"items"`
	Value       int64       `json:"value,omitempty"`
}

// Key returns orderFormId, falling back to id.
func (o *OrderForm) Key() string {
	if o.OrderFormID != "" {
		return o.OrderFormID
	}
	return o.ID
}

// IndexOfSKU returns the index of the first line item with the given SKU, or -1.
func (o *OrderForm) IndexOfSKU(sku string) int {
	for i, it := range o.Items {
		if it.ID == sku {
			return i
		}
	}
	return -1
}

// OrderItem is a cart line item. Price is in minor currency units.
type OrderItem struct {
	ID        string `json:"id"`
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	Seller    string `json:"seller,omitempty"`
	Price     int64  `json:"price"`
	ListPrice int64  `json:"listPrice,omitempty"`
}

type OverrideStatus string

const (
	OverrideApplied OverrideStatus = "applied"
	OverrideFailed  OverrideStatus = "failed"
)

// PriceOverride records one attempt to force a line item price.
type PriceOverride struct {
	ID          string         `json:"id"`
	OrderFormID string         `json:"order_form_id"`
	ProductID   string         `json:"product_id,omitempty"`
	ItemIndex   int            `json:"item_index"`
	SKU         string         `json:"sku,omitempty"`
	FromCents   int64          `json:"from_cents"`
	PriceCents  int64          `json:"price_cents"`
	Status      OverrideStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	AttemptedAt time.Time      `json:"attempted_at"`
}
