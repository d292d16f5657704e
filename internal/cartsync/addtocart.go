package cartsync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/checkout"
	"github.com/kitco/pricer/internal/currency"
	"github.com/kitco/pricer/internal/domain"
)

// Step names one stage of AddToCart.
type Step string

const (
	StepAddItem  Step = "add_item"
	StepLocate   Step = "locate_item"
	StepOverride Step = "override_price"
	StepRefresh  Step = "refresh"
)

// StepError reports the stage at which AddToCart aborted. Stages after
// StepAddItem leave the item in the cart at its catalog price.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("add to cart: %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// AddToCart adds one unit of sku, overrides its price to the current
// simulated price of productID and returns the refreshed order form. It
// runs in the cart's turn, so it never interleaves with a sync.
func (s *Syncer) AddToCart(ctx context.Context, orderFormID, sku, productID string) (*domain.OrderForm, error) {
	var (
		of  *domain.OrderForm
		err error
	)
	done := make(chan struct{})
	if !s.q.call(orderFormID, func() {
		defer close(done)
		of, err = s.addToCart(ctx, orderFormID, sku, productID)
	}) {
		return nil, ErrClosed
	}
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err != nil {
		log.Error().Str("component", "cartsync").Str("order_form_id", orderFormID).
			Str("sku", sku).Err(err).Msg("custom add to cart failed")
	}
	return of, err
}

func (s *Syncer) addToCart(ctx context.Context, orderFormID, sku, productID string) (*domain.OrderForm, error) {
	if sku == "" || orderFormID == "" {
		return nil, &StepError{Step: StepAddItem, Err: fmt.Errorf("missing sku or order form id")}
	}
	state, ok := s.prices.State(productID)
	if !ok || state.Loading() {
		return nil, &StepError{Step: StepAddItem, Err: ErrPriceLoading}
	}
	cents := currency.ToMinorUnits(state.CurrentPrice)

	ok, err := s.belongs(ctx, productID, sku)
	if err != nil {
		return nil, &StepError{Step: StepAddItem, Err: err}
	}
	if !ok {
		return nil, &StepError{Step: StepAddItem, Err: fmt.Errorf("%w: %s not in %s", ErrForeignSKU, sku, productID)}
	}

	added, err := s.cart.AddItems(ctx, orderFormID, []checkout.AddItem{{ID: sku, Quantity: 1, Seller: checkout.DefaultSeller}})
	if err != nil {
		return nil, &StepError{Step: StepAddItem, Err: err}
	}

	idx := added.IndexOfSKU(sku)
	if idx < 0 {
		return nil, &StepError{Step: StepLocate, Err: fmt.Errorf("sku %s not found in cart", sku)}
	}
	item := added.Items[idx]

	_, err = s.cart.SetItemPrice(ctx, orderFormID, idx, cents)
	s.record(ctx, orderFormID, productID, idx, item, cents, err)
	if err != nil {
		return nil, &StepError{Step: StepOverride, Err: err}
	}

	refreshed, err := s.cart.GetOrderForm(ctx, orderFormID)
	if err != nil {
		return nil, &StepError{Step: StepRefresh, Err: err}
	}

	log.Info().Str("component", "cartsync").Str("order_form_id", orderFormID).Str("sku", sku).
		Int("index", idx).Int64("price_cents", cents).Msg("item added at simulated price")
	return refreshed, nil
}
