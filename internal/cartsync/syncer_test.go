package cartsync

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitco/pricer/internal/checkout"
	"github.com/kitco/pricer/internal/checkout/checkouttest"
	"github.com/kitco/pricer/internal/domain"
)

type prices struct {
	mu sync.Mutex
	m  map[string]float64
}

func newPrices(kv ...any) *prices {
	p := &prices{m: map[string]float64{}}
	for i := 0; i+1 < len(kv); i += 2 {
		p.m[kv[i].(string)] = kv[i+1].(float64)
	}
	return p
}

func (p *prices) set(id string, v float64) {
	p.mu.Lock()
	p.m[id] = v
	p.mu.Unlock()
}

func (p *prices) State(id string) (domain.PriceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[id]
	return domain.PriceState{ProductID: id, OriginalPrice: v, CurrentPrice: v}, ok
}

type recorder struct {
	mu  sync.Mutex
	out []domain.PriceOverride
}

func (r *recorder) Insert(_ context.Context, o *domain.PriceOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, *o)
	return nil
}

func (r *recorder) all() []domain.PriceOverride {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PriceOverride(nil), r.out...)
}

type skuIndex map[string][]string

func (x skuIndex) ProductSKUs(_ context.Context, productID string) ([]string, error) {
	skus, ok := x[productID]
	if !ok {
		return nil, errors.New("unknown product")
	}
	return skus, nil
}

func newTestSyncer(t *testing.T, h *checkouttest.Host, p PriceReader, rec Recorder) *Syncer {
	t.Helper()
	client := checkout.NewClient(checkout.Config{BaseURL: h.URL, Timeout: time.Second})
	s := NewSyncer(client, p, Options{ToleranceBps: DefaultToleranceBps, Recorder: rec})
	t.Cleanup(s.Close)
	return s
}

func TestSyncCart_MatchingPriceIssuesNoCall(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "sku-1", Price: 10000})

	s := newTestSyncer(t, h, newPrices("p1", 100.00), nil)
	res, err := s.SyncCart(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Overridden)
	assert.Empty(t, h.PriceCalls())
}

func TestSyncCart_OneCentOffIsOverridden(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "sku-1", Price: 9999})

	s := newTestSyncer(t, h, newPrices("p1", 100.00), nil)
	res, err := s.SyncCart(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Overridden)
	assert.Equal(t, int64(10000), h.Cart("of-1").Items[0].Price)
}

func TestSyncCart_ConfiguredToleranceSkipsSmallDrift(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "sku-1", Price: 9900})

	client := checkout.NewClient(checkout.Config{BaseURL: h.URL, Timeout: time.Second})
	s := NewSyncer(client, newPrices("p1", 100.00), Options{ToleranceBps: 100})
	t.Cleanup(s.Close)

	res, err := s.SyncCart(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.Zero(t, res.Overridden)
	assert.Empty(t, h.PriceCalls())
}

func TestSyncCart_DivergentPriceIssuesOneCall(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "sku-1", Price: 9000})
	rec := &recorder{}

	s := newTestSyncer(t, h, newPrices("p1", 100.00), rec)
	res, err := s.SyncCart(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Overridden)
	assert.Equal(t, int64(10000), res.PriceCents)
	assert.Equal(t, []checkouttest.PriceCall{{OrderFormID: "of-1", Index: 0, Price: 10000}}, h.PriceCalls())
	assert.Equal(t, int64(10000), h.Cart("of-1").Items[0].Price)

	overrides := rec.all()
	require.Len(t, overrides, 1)
	assert.Equal(t, domain.OverrideApplied, overrides[0].Status)
	assert.Equal(t, int64(9000), overrides[0].FromCents)
	assert.Equal(t, "sku-1", overrides[0].SKU)
	assert.NotEmpty(t, overrides[0].ID)
}

func TestSyncCart_OneCallPerDivergentItem(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1",
		domain.OrderItem{ID: "a", Price: 5000},
		domain.OrderItem{ID: "b", Price: 10000},
		domain.OrderItem{ID: "c", Price: 12000},
	)

	s := newTestSyncer(t, h, newPrices("p1", 100.00), nil)
	res, err := s.SyncCart(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Overridden)

	calls := h.PriceCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 0, calls[0].Index)
	assert.Equal(t, 2, calls[1].Index)
}

func TestSyncCart_FailuresAreRecordedNotRetried(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "a", Price: 1})
	h.FailPrice(http.StatusInternalServerError)
	rec := &recorder{}

	s := newTestSyncer(t, h, newPrices("p1", 50.00), rec)
	res, err := s.SyncCart(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, h.PriceCalls(), 1)

	overrides := rec.all()
	require.Len(t, overrides, 1)
	assert.Equal(t, domain.OverrideFailed, overrides[0].Status)
	assert.Contains(t, overrides[0].Error, "500")
}

func TestSyncCart_LoadingPriceSkips(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "a", Price: 1})

	s := newTestSyncer(t, h, newPrices("p1", 0.0), nil)
	res, err := s.SyncCart(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	res, err = s.SyncCart(context.Background(), "of-1", "unknown")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, h.PriceCalls())
}

func TestSyncCart_OrderFormUnavailable(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.FailGet(http.StatusNotFound)

	s := newTestSyncer(t, h, newPrices("p1", 10.0), nil)
	_, err := s.SyncCart(context.Background(), "of-1", "p1")
	var apiErr *checkout.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestSync_RunsThroughQueue(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "a", Price: 100})

	s := newTestSyncer(t, h, newPrices("p1", 2.0), nil)
	res, err := s.Sync(context.Background(), "of-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Overridden)
	assert.Equal(t, int64(200), h.Cart("of-1").Items[0].Price)
}

func TestWatch_RunSyncsWatchingCarts(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1", domain.OrderItem{ID: "a", Price: 10000})
	h.SetCart("of-2", domain.OrderItem{ID: "b", Price: 10000})
	p := newPrices("p1", 100.0, "p2", 100.0)

	s := newTestSyncer(t, h, p, nil)
	s.Watch("of-1", "p1")
	s.Watch("of-2", "p2")
	assert.Equal(t, []string{"of-1"}, s.Watching("p1"))

	ticks := make(chan domain.PriceTick, 1)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), ticks) }()

	p.set("p1", 80.0)
	ticks <- domain.PriceTick{ProductID: "p1", Price: 80}
	close(ticks)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool {
		return h.Cart("of-1").Items[0].Price == 8000
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(10000), h.Cart("of-2").Items[0].Price)

	assert.True(t, s.Unwatch("of-1"))
	assert.False(t, s.Unwatch("of-1"))
	assert.Empty(t, s.Watching("p1"))
}

func TestEnqueue_AfterCloseIsRejected(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()

	client := checkout.NewClient(checkout.Config{BaseURL: h.URL, Timeout: time.Second})
	s := NewSyncer(client, newPrices("p1", 1.0), Options{})
	s.Close()

	assert.False(t, s.Enqueue("of-1", "p1"))
	_, err := s.Sync(context.Background(), "of-1", "p1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSyncCart_LeavesOtherProductsTagged(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1",
		domain.OrderItem{ID: "g1", ProductID: "p-gold", Price: 200000, Quantity: 1},
		domain.OrderItem{ID: "s1", ProductID: "p-silver", Price: 3000, Quantity: 1},
	)

	s := newTestSyncer(t, h, newPrices("p-gold", 2400.00, "p-silver", 31.00), nil)
	res, err := s.SyncCart(context.Background(), "of-1", "p-gold")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Overridden)
	assert.Equal(t, []checkouttest.PriceCall{{OrderFormID: "of-1", Index: 0, Price: 240000}}, h.PriceCalls())

	cart := h.Cart("of-1")
	assert.Equal(t, int64(240000), cart.Items[0].Price)
	assert.Equal(t, int64(3000), cart.Items[1].Price)
}

func TestSyncCart_LeavesOtherProductsBySKU(t *testing.T) {
	h := checkouttest.NewHost()
	defer h.Close()
	h.SetCart("of-1",
		domain.OrderItem{ID: "s1", Price: 3000, Quantity: 1},
		domain.OrderItem{ID: "g1", Price: 200000, Quantity: 1},
	)

	client := checkout.NewClient(checkout.Config{BaseURL: h.URL, Timeout: time.Second})
	s := NewSyncer(client, newPrices("p-gold", 2400.00), Options{
		ToleranceBps: DefaultToleranceBps,
		SKUs:         skuIndex{"p-gold": {"g1", "g2"}, "p-silver": {"s1"}},
	})
	t.Cleanup(s.Close)

	res, err := s.SyncCart(context.Background(), "of-1", "p-gold")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, []checkouttest.PriceCall{{OrderFormID: "of-1", Index: 1, Price: 240000}}, h.PriceCalls())
	assert.Equal(t, int64(3000), h.Cart("of-1").Items[0].Price)

	_, err = s.SyncCart(context.Background(), "of-1", "p-missing")
	assert.NoError(t, err, "unpriced product skips before the lookup")
}
