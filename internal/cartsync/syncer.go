// Package cartsync keeps cart line item prices in step with the simulated
// product price and adds items to carts at that price.
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/checkout"
	"github.com/kitco/pricer/internal/currency"
	"github.com/kitco/pricer/internal/domain"
)

var (
	// ErrPriceLoading is returned when the product has no simulated price yet.
	ErrPriceLoading = errors.New("cartsync: price not available yet")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cartsync: syncer closed")
	// ErrForeignSKU is returned when a SKU is not an item of the product.
	ErrForeignSKU = errors.New("cartsync: sku does not belong to product")
)

// CartAPI is the subset of the checkout client the syncer uses.
type CartAPI interface {
	GetOrderForm(ctx context.Context, orderFormID string) (*domain.OrderForm, error)
	AddItems(ctx context.Context, orderFormID string, items []checkout.AddItem) (*domain.OrderForm, error)
	SetItemPrice(ctx context.Context, orderFormID string, index int, priceCents int64) (*domain.OrderForm, error)
}

// PriceReader exposes simulated prices.
type PriceReader interface {
	State(productID string) (domain.PriceState, bool)
}

// SKUIndex lists the SKUs of a product.
type SKUIndex interface {
	ProductSKUs(ctx context.Context, productID string) ([]string, error)
}

// Recorder persists override attempts.
type Recorder interface {
	Insert(ctx context.Context, o *domain.PriceOverride) error
}

// Result summarises one sync of a cart.
type Result struct {
	OrderFormID string            `json:"order_form_id"`
	ProductID   string            `json:"product_id"`
	Skipped     bool              `json:"skipped"`
	PriceCents  int64             `json:"price_cents"`
	Checked     int               `json:"checked"`
	Overridden  int               `json:"overridden"`
	Failed      int               `json:"failed"`
	OrderForm   *domain.OrderForm `json:"order_form,omitempty"`
}

type Options struct {
	ToleranceBps int64
	Recorder     Recorder
	// SKUs scopes a sync to the product's own line items. Without it only
	// the productId the host reports on each item is used.
	SKUs SKUIndex
}

// Syncer serializes all price work per cart.
type Syncer struct {
	cart      CartAPI
	prices    PriceReader
	recorder  Recorder
	skus      SKUIndex
	tolerance int64

	cancel context.CancelFunc
	q      *queue

	mu      sync.RWMutex
	watches map[string]string
}

func NewSyncer(cart CartAPI, prices PriceReader, opts Options) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		cart:      cart,
		prices:    prices,
		recorder:  opts.Recorder,
		skus:      opts.SKUs,
		tolerance: opts.ToleranceBps,
		cancel:    cancel,
		watches:   make(map[string]string),
	}
	s.q = newQueue(ctx, func(ctx context.Context, orderFormID, productID string) {
		if _, err := s.SyncCart(ctx, orderFormID, productID); err != nil {
			log.Warn().Str("component", "cartsync").Str("order_form_id", orderFormID).
				Err(err).Msg("cart sync failed")
		}
	})
	return s
}

// Close stops the queue after in-flight work finishes.
func (s *Syncer) Close() {
	s.q.close()
	s.cancel()
}

// Watch keeps orderFormID synced to productID on every price tick.
func (s *Syncer) Watch(orderFormID, productID string) {
	s.mu.Lock()
	s.watches[orderFormID] = productID
	s.mu.Unlock()
	s.Enqueue(orderFormID, productID)
}

func (s *Syncer) Unwatch(orderFormID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[orderFormID]
	delete(s.watches, orderFormID)
	return ok
}

// Watching returns the carts watching productID, sorted.
func (s *Syncer) Watching(productID string) []string {
	s.mu.RLock()
	var carts []string
	for cart, p := range s.watches {
		if p == productID {
			carts = append(carts, cart)
		}
	}
	s.mu.RUnlock()
	sort.Strings(carts)
	return carts
}

// Enqueue schedules an asynchronous sync of the cart.
func (s *Syncer) Enqueue(orderFormID, productID string) bool {
	return s.q.sync(orderFormID, productID)
}

// Run enqueues a sync of every watching cart for each tick until ticks
// is closed or ctx is done.
func (s *Syncer) Run(ctx context.Context, ticks <-chan domain.PriceTick) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			for _, cart := range s.Watching(t.ProductID) {
				s.Enqueue(cart, t.ProductID)
			}
		}
	}
}

// Sync runs a sync in the cart's turn and waits for its result.
func (s *Syncer) Sync(ctx context.Context, orderFormID, productID string) (*Result, error) {
	var (
		res *Result
		err error
	)
	done := make(chan struct{})
	if !s.q.call(orderFormID, func() {
		defer close(done)
		res, err = s.SyncCart(ctx, orderFormID, productID)
	}) {
		return nil, ErrClosed
	}
	select {
	case <-done:
		return res, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SyncCart overrides every line item whose price diverges from the
// product's current price. Override failures are logged and recorded,
// never retried. Callers outside the queue must not overlap it for a cart.
func (s *Syncer) SyncCart(ctx context.Context, orderFormID, productID string) (*Result, error) {
	res := &Result{OrderFormID: orderFormID, ProductID: productID}

	state, ok := s.prices.State(productID)
	if !ok || state.Loading() {
		res.Skipped = true
		log.Debug().Str("component", "cartsync").Str("product_id", productID).Msg("price loading, sync skipped")
		return res, nil
	}
	res.PriceCents = currency.ToMinorUnits(state.CurrentPrice)

	of, err := s.cart.GetOrderForm(ctx, orderFormID)
	if err != nil {
		return nil, fmt.Errorf("get order form: %w", err)
	}
	res.OrderForm = of

	owned, err := s.ownedItems(ctx, productID, of.Items)
	if err != nil {
		return nil, err
	}
	res.Checked = len(owned)
	candidates := make([]domain.OrderItem, len(owned))
	for i, idx := range owned {
		candidates[i] = of.Items[idx]
	}

	for _, c := range Divergent(candidates, state.CurrentPrice, s.tolerance) {
		idx := owned[c]
		item := of.Items[idx]
		updated, err := s.cart.SetItemPrice(ctx, orderFormID, idx, res.PriceCents)
		s.record(ctx, orderFormID, productID, idx, item, res.PriceCents, err)
		if err != nil {
			res.Failed++
			log.Warn().Str("component", "cartsync").Str("order_form_id", orderFormID).
				Int("index", idx).Err(err).Msg("price override failed")
			continue
		}
		res.Overridden++
		res.OrderForm = updated
	}

	if res.Overridden+res.Failed > 0 {
		log.Info().Str("component", "cartsync").Str("order_form_id", orderFormID).
			Str("product_id", productID).Int64("price_cents", res.PriceCents).
			Int("overridden", res.Overridden).Int("failed", res.Failed).Msg("cart synced")
	}
	return res, nil
}

// ownedItems returns the cart indices of the items that belong to
// productID. An item the host tags with a productId is matched on it,
// otherwise on the product's SKUs. Untagged items count as the product's
// own only when no SKU index is configured.
func (s *Syncer) ownedItems(ctx context.Context, productID string, items []domain.OrderItem) ([]int, error) {
	var skus map[string]bool
	if s.skus != nil {
		list, err := s.skus.ProductSKUs(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("product skus: %w", err)
		}
		skus = make(map[string]bool, len(list))
		for _, sku := range list {
			skus[sku] = true
		}
	}

	var out []int
	for i, it := range items {
		switch {
		case it.ProductID != "":
			if it.ProductID == productID {
				out = append(out, i)
			}
		case skus != nil:
			if skus[it.ID] {
				out = append(out, i)
			}
		default:
			out = append(out, i)
		}
	}
	return out, nil
}

// belongs reports whether sku is an item of productID. Without a SKU
// index every SKU is accepted.
func (s *Syncer) belongs(ctx context.Context, productID, sku string) (bool, error) {
	if s.skus == nil {
		return true, nil
	}
	list, err := s.skus.ProductSKUs(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("product skus: %w", err)
	}
	for _, v := range list {
		if v == sku {
			return true, nil
		}
	}
	return false, nil
}

func (s *Syncer) record(ctx context.Context, orderFormID, productID string, idx int, item domain.OrderItem, cents int64, callErr error) {
	if s.recorder == nil {
		return
	}
	o := &domain.PriceOverride{
		ID:          uuid.NewString(),
		OrderFormID: orderFormID,
		ProductID:   productID,
		ItemIndex:   idx,
		SKU:         item.ID,
		FromCents:   item.Price,
		PriceCents:  cents,
		Status:      domain.OverrideApplied,
		AttemptedAt: time.Now().UTC(),
	}
	if callErr != nil {
		o.Status = domain.OverrideFailed
		o.Error = callErr.Error()
	}
	if err := s.recorder.Insert(context.WithoutCancel(ctx), o); err != nil {
		log.Warn().Str("component", "cartsync").Err(err).Msg("record override failed")
	}
}
