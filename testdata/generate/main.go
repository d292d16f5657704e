// Command generate writes testdata/products.json, the product snapshots
// the server seeds an empty catalog with.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/kitco/pricer/internal/currency"
	"github.com/kitco/pricer/internal/domain"
)

type metal struct {
	name   string
	prefix string
	// USD per troy ounce.
	spot float64
}

type bar struct {
	label  string
	ounces float64
}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	metals := []metal{
		{"Gold", "AU", 2350},
		{"Silver", "AG", 29.5},
		{"Platinum", "PT", 980},
	}
	bars := []bar{
		{"1 oz Bar", 1},
		{"10 oz Bar", 10},
		{"1 kilo Bar", 32.15},
	}

	var products []domain.Product
	sku := 1000
	for mi, m := range metals {
		for bi, b := range bars {
			// Premium over spot between 2% and 8%.
			premium := 1.02 + rng.Float64()*0.06
			price := currency.Round2(m.spot * b.ounces * premium)
			list := currency.Round2(price * 1.04)

			p := domain.Product{
				ID:   fmt.Sprintf("%s-%d%d", m.prefix, mi+1, bi+1),
				Name: fmt.Sprintf("%s %s", b.label, m.name),
			}

			// Every other product carries only seller offers, exercising the
			// anchor fallback.
			if (mi+bi)%2 == 0 {
				p.PriceRange = &domain.PriceRange{
					SellingPrice: &domain.PriceBand{LowPrice: price, HighPrice: price},
					ListPrice:    &domain.PriceBand{LowPrice: list, HighPrice: list},
				}
			}

			for v := 0; v < 2; v++ {
				sku++
				p.Items = append(p.Items, domain.ProductItem{
					ItemID: fmt.Sprintf("%d", sku),
					Name:   fmt.Sprintf("%s (%s)", p.Name, []string{"Minted", "Cast"}[v]),
					Sellers: []domain.Seller{{
						SellerID:        "1",
						CommertialOffer: domain.CommertialOffer{Price: price, ListPrice: list},
					}},
				})
			}
			products = append(products, p)
		}
	}

	writeJSONFile(filepath.Join(baseDir, "products.json"), products)
	fmt.Printf("Generated %d products -> products.json\n", len(products))
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "../testdata", "."} {
		if info, err := os.Stat(filepath.Join(c, "generate")); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
