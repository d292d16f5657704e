package cartsync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitco/pricer/internal/checkout"
	"github.com/kitco/pricer/internal/checkout/checkouttest"
	"github.com/kitco/pricer/internal/domain"
)

func TestAddToCart_OverridesNewItem(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetListPrice("sku-9", 12345)
	h.SetCart("of-1", domain.OrderItem{ID: "other", Price: 500, Quantity: 1})
	rec := &recorder{}

	s := newTestSyncer(t, h, newPrices("p1", 101.0), rec)
	of, err := s.AddToCart(context.Background(), "of-1", "sku-9", "p1")
	require.NoError(t, err)

	idx := of.IndexOfSKU("sku-9")
	require.Equal(t, 1, idx)
	assert.Equal(t, int64(10100), of.Items[idx].Price)
	assert.Equal(t, 1, of.Items[idx].Quantity)
	assert.Equal(t, []checkouttest.PriceCall{{OrderFormID: "of-1", Index: 1, Price: 10100}}, h.PriceCalls())

	overrides := rec.all()
	require.Len(t, overrides, 1)
	assert.Equal(t, int64(12345), overrides[0].FromCents)
}

func TestAddToCart_OverrideFailureLeavesListPrice(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetListPrice("sku-9", 12345)
	h.FailPrice(http.StatusForbidden)

	s := newTestSyncer(t, h, newPrices("p1", 101.0), nil)
	_, err := s.AddToCart(context.Background(), "of-1", "sku-9", "p1")

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepOverride, stepErr.Step)

	cart := h.Cart("of-1")
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(12345), cart.Items[0].Price)
}

func TestAddToCart_AddFailureAborts(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.FailAdd(http.StatusBadRequest)

	s := newTestSyncer(t, h, newPrices("p1", 101.0), nil)
	_, err := s.AddToCart(context.Background(), "of-1", "sku-9", "p1")

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepAddItem, stepErr.Step)
	assert.Empty(t, h.PriceCalls())
}

func TestAddToCart_RefreshFailure(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.FailGet(http.StatusBadGateway)

	s := newTestSyncer(t, h, newPrices("p1", 3.0), nil)
	_, err := s.AddToCart(context.Background(), "of-1", "sku-1", "p1")

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepRefresh, stepErr.Step)
	assert.Equal(t, int64(300), h.Cart("of-1").Items[0].Price)
}

func TestAddToCart_RequiresPrice(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()

	s := newTestSyncer(t, h, newPrices(), nil)
	_, err := s.AddToCart(context.Background(), "of-1", "sku-1", "p1")
	assert.ErrorIs(t, err, ErrPriceLoading)
	assert.Zero(t, h.AddCalls())

	_, err = s.AddToCart(context.Background(), "of-1", "", "p1")
	assert.Error(t, err)
}

func TestAddToCart_RejectsForeignSKU(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()

	client := checkout.NewClient(checkout.Config{BaseURL: h.URL, Timeout: time.Second})
	s := NewSyncer(client, newPrices("p-gold", 2400.00), Options{
		SKUs: skuIndex{"p-gold": {"g1"}, "p-silver": {"s1"}},
	})
	t.Cleanup(s.Close)

	_, err := s.AddToCart(context.Background(), "of-1", "s1", "p-gold")
	require.ErrorIs(t, err, ErrForeignSKU)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepAddItem, stepErr.Step)
	assert.Zero(t, h.AddCalls())

	of, err := s.AddToCart(context.Background(), "of-1", "g1", "p-gold")
	require.NoError(t, err)
	assert.Equal(t, int64(240000), of.Items[of.IndexOfSKU("g1")].Price)
}
