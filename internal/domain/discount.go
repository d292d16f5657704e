package domain

type PaymentMethod string

const (
	PaymentCard      PaymentMethod = "card"
	PaymentWireCheck PaymentMethod = "wire_check"
	PaymentBitcoin   PaymentMethod = "bitcoin"
)

// Label is the column heading shown to shoppers.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCard:
		return "MC/Visa/PayPal"
	case PaymentWireCheck:
		return "Wire/Check"
	case PaymentBitcoin:
		return "Bitcoin"
	default:
		return string(m)
	}
}

// Tier is a quantity threshold: a purchase of MinQuantity or more units
// qualifies.
type Tier struct {
	MinQuantity int     `json:"min_quantity"`
	Discount    float64 `json:"discount"`
}
