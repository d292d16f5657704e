package discount

import (
	"fmt"

	"github.com/kitco/pricer/internal/currency"
	"github.com/kitco/pricer/internal/domain"
)

type Cell struct {
	Method    domain.PaymentMethod `json:"method"`
	Price     float64              `json:"price"`
	Formatted string               `json:"formatted"`
	Available bool                 `json:"available"`
}

type Row struct {
	Label string `json:"label"`
	Tier  int    `json:"tier"`
	Cells []Cell `json:"cells"`
}

type Column struct {
	Method domain.PaymentMethod `json:"method"`
	Label  string               `json:"label"`
}

// Table is the bulk discount grid: one row per tier, one cell per method.
type Table struct {
	Loading bool     `json:"loading"`
	Columns []Column `json:"columns,omitempty"`
	Rows    []Row    `json:"rows,omitempty"`
}

// Table builds the grid for the given current price. A non-positive price
// yields a loading table.
func (s Schedule) Table(current float64) Table {
	if current <= 0 {
		return Table{Loading: true}
	}

	t := Table{Columns: make([]Column, 0, len(s.Methods))}
	for _, m := range s.Methods {
		t.Columns = append(t.Columns, Column{Method: m, Label: m.Label()})
	}

	for _, tier := range s.Tiers {
		row := Row{
			Label: fmt.Sprintf("%d+", tier.MinQuantity),
			Tier:  tier.MinQuantity,
			Cells: make([]Cell, 0, len(s.Methods)),
		}
		for _, m := range s.Methods {
			if !s.Available(m, tier) {
				row.Cells = append(row.Cells, Cell{Method: m, Formatted: "N/A"})
				continue
			}
			p := Price(current, s.MethodDiscount[m], tier.Discount)
			row.Cells = append(row.Cells, Cell{
				Method:    m,
				Price:     p,
				Formatted: currency.FormatUSD(p),
				Available: true,
			})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Cell returns the cell for method in the row of tier.
func (t Table) Cell(tier int, method domain.PaymentMethod) (Cell, bool) {
	for _, r := range t.Rows {
		if r.Tier != tier {
			continue
		}
		for _, c := range r.Cells {
			if c.Method == method {
				return c, true
			}
		}
	}
	return Cell{}, false
}
