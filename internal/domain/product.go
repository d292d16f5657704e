package domain

import "time"

// Product is the subset of the host product context the pricer reads.
type Product struct {
	ID         string        `json:"productId"`
	Name       string        `json:"productName,omitempty"`
	PriceRange *PriceRange   `json:"priceRange,omitempty"`
	Items      []ProductItem `json:"items,omitempty"`

	SnapshotHash string    `json:"-"`
	IngestedAt   time.Time `json:"-"`
}

type PriceRange struct {
	SellingPrice *PriceBand `json:"sellingPrice,omitempty"`
	ListPrice    *PriceBand `json:"listPrice,omitempty"`
}

type PriceBand struct {
	LowPrice  float64 `json:"lowPrice"`
	HighPrice float64 `json:"highPrice"`
}

type ProductItem struct {
	ItemID  string   `json:"itemId"`
	Name    string   `json:"name,omitempty"`
	Sellers []Seller `json:"sellers,omitempty"`
}

type Seller struct {
	SellerID        string          `json:"sellerId"`
	CommertialOffer CommertialOffer `json:"commertialOffer"`
}

// CommertialOffer keeps the host's spelling so snapshots decode as-is.
type CommertialOffer struct {
	Price     float64 `json:"Price"`
	ListPrice float64 `json:"ListPrice"`
}

// AnchorPrice returns the price simulated prices are perturbed around:
// the selling low price, or the first seller offer of the first item.
func (p *Product) AnchorPrice() (float64, bool) {
	if p.PriceRange != nil && p.PriceRange.SellingPrice != nil && p.PriceRange.SellingPrice.LowPrice > 0 {
		return p.PriceRange.SellingPrice.LowPrice, true
	}
	if len(p.Items) > 0 && len(p.Items[0].Sellers) > 0 {
		if price := p.Items[0].Sellers[0].CommertialOffer.Price; price > 0 {
			return price, true
		}
	}
	return 0, false
}

// SKUs lists the item ids of the product in catalog order.
func (p *Product) SKUs() []string {
	skus := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		if it.ItemID != "" {
			skus = append(skus, it.ItemID)
		}
	}
	return skus
}

// DefaultSKU is the item added to the cart when the caller names none.
func (p *Product) DefaultSKU() string {
	if skus := p.SKUs(); len(skus) > 0 {
		return skus[0]
	}
	return ""
}
