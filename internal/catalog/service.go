// Package catalog ingests host product snapshots and anchors their prices
// in the simulation.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/domain"
	"github.com/kitco/pricer/internal/repository"
)

// Registrar anchors a product in the price simulation.
type Registrar interface {
	Register(productID string, anchor float64) bool
}

// IngestResult is returned from a successful ingestion.
type IngestResult struct {
	ProductID   string   `json:"product_id"`
	AnchorPrice float64  `json:"anchor_price"`
	SKUs        []string `json:"skus"`
	Duplicate   bool     `json:"duplicate"`
}

type Service struct {
	repo      *repository.ProductRepo
	registrar Registrar
	bySKU     *lru.Cache[string, *domain.Product]
}

func NewService(repo *repository.ProductRepo, registrar Registrar, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, *domain.Product](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("sku cache: %w", err)
	}
	return &Service{repo: repo, registrar: registrar, bySKU: cache}, nil
}

// Ingest parses a product snapshot, stores it and anchors its price.
// Ingesting an identical snapshot again is a no-op.
func (s *Service) Ingest(ctx context.Context, data []byte) (*IngestResult, error) {
	p, err := ParseProduct(data)
	if err != nil {
		return nil, fmt.Errorf("parse product: %w", err)
	}
	anchor, ok := p.AnchorPrice()
	if !ok {
		log.Warn().Str("component", "catalog").Str("product_id", p.ID).Msg("could not find valid price in product snapshot")
		return nil, ErrNoPrice
	}

	res := &IngestResult{ProductID: p.ID, AnchorPrice: anchor, SKUs: p.SKUs()}

	// Canonical form so formatting differences hash the same.
	canonical, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(canonical))
	exists, err := s.repo.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		res.Duplicate = true
		s.registrar.Register(p.ID, anchor)
		return res, nil
	}

	p.SnapshotHash = hash
	p.IngestedAt = time.Now().UTC()
	if err := s.repo.Upsert(ctx, p, canonical); err != nil {
		return nil, fmt.Errorf("store product: %w", err)
	}
	for _, k := range s.bySKU.Keys() {
		if cached, ok := s.bySKU.Peek(k); ok && cached.ID == p.ID {
			s.bySKU.Remove(k)
		}
	}

	s.registrar.Register(p.ID, anchor)
	log.Info().Str("component", "catalog").Str("product_id", p.ID).
		Float64("anchor", anchor).Int("skus", len(res.SKUs)).Msg("product ingested")
	return res, nil
}

// Product returns a stored product.
func (s *Service) Product(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

// ProductForSKU resolves the product a SKU belongs to.
func (s *Service) ProductForSKU(ctx context.Context, sku string) (*domain.Product, error) {
	if p, ok := s.bySKU.Get(sku); ok {
		return p, nil
	}
	p, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	s.bySKU.Add(sku, p)
	return p, nil
}

// ProductSKUs lists the item SKUs of a stored product.
func (s *Service) ProductSKUs(ctx context.Context, id string) ([]string, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.SKUs(), nil
}

// Restore anchors every stored product. Products without a usable price
// are skipped.
func (s *Service) Restore(ctx context.Context) (int, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	n := 0
	for i := range products {
		anchor, ok := products[i].AnchorPrice()
		if !ok {
			continue
		}
		if s.registrar.Register(products[i].ID, anchor) {
			n++
		}
	}
	return n, nil
}

// IsNotFound reports whether err means the product is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
