package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitco/pricer/internal/repository"
)

const eagleSnapshot = `{
	"product": {
		"productId": "42",
		"productName": "1 oz Gold Eagle",
		"priceRange": {"sellingPrice": {"lowPrice": 2150.75, "highPrice": 2150.75}},
		"items": [{"itemId": "4201", "sellers": [{"sellerId": "1", "commertialOffer": {"Price": 2199, "ListPrice": 2250}}]}]
	}
}`

const offerOnlySnapshot = `{
	"productId": "43",
	"items": [
		{"itemId": "4301", "sellers": [{"sellerId": "1", "commertialOffer": {"Price": 31.5}}]},
		{"itemId": "4302", "sellers": [{"sellerId": "1", "commertialOffer": {"Price": 60}}]}
	]
}`

type registrar struct {
	mu      sync.Mutex
	anchors map[string]float64
}

func (r *registrar) Register(id string, anchor float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.anchors == nil {
		r.anchors = map[string]float64{}
	}
	r.anchors[id] = anchor
	return anchor > 0
}

func newTestService(t *testing.T) (*Service, *registrar) {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := &registrar{}
	svc, err := NewService(repository.NewProductRepo(db), reg, 8)
	require.NoError(t, err)
	return svc, reg
}

func TestParseProduct(t *testing.T) {
	p, err := ParseProduct([]byte(eagleSnapshot))
	require.NoError(t, err)
	assert.Equal(t, "42", p.ID)
	anchor, ok := p.AnchorPrice()
	require.True(t, ok)
	assert.Equal(t, 2150.75, anchor)

	p, err = ParseProduct([]byte(offerOnlySnapshot))
	require.NoError(t, err)
	anchor, ok = p.AnchorPrice()
	require.True(t, ok)
	assert.Equal(t, 31.5, anchor, "falls back to the first seller offer")
	assert.Equal(t, []string{"4301", "4302"}, p.SKUs())
	assert.Equal(t, "4301", p.DefaultSKU())

	_, err = ParseProduct([]byte(`{"productName":"nameless"}`))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
	_, err = ParseProduct([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	svc, reg := newTestService(t)

	res, err := svc.Ingest(ctx, []byte(eagleSnapshot))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 2150.75, res.AnchorPrice)
	assert.Equal(t, 2150.75, reg.anchors["42"])

	res, err = svc.Ingest(ctx, []byte(eagleSnapshot))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	p, err := svc.ProductForSKU(ctx, "4201")
	require.NoError(t, err)
	assert.Equal(t, "42", p.ID)

	_, err = svc.ProductForSKU(ctx, "nope")
	assert.True(t, IsNotFound(err))
}

func TestIngest_NoPrice(t *testing.T) {
	svc, reg := newTestService(t)

	_, err := svc.Ingest(context.Background(), []byte(`{"productId":"9","items":[{"itemId":"91"}]}`))
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Empty(t, reg.anchors)
}

func TestIngest_ReanchorInvalidatesSKUCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Ingest(ctx, []byte(offerOnlySnapshot))
	require.NoError(t, err)
	p, err := svc.ProductForSKU(ctx, "4301")
	require.NoError(t, err)
	anchor, _ := p.AnchorPrice()
	assert.Equal(t, 31.5, anchor)

	_, err = svc.Ingest(ctx, []byte(`{"productId":"43","priceRange":{"sellingPrice":{"lowPrice":40}},"items":[{"itemId":"4301"}]}`))
	require.NoError(t, err)
	p, err = svc.ProductForSKU(ctx, "4301")
	require.NoError(t, err)
	anchor, _ = p.AnchorPrice()
	assert.Equal(t, 40.0, anchor)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Ingest(ctx, []byte(eagleSnapshot))
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, []byte(offerOnlySnapshot))
	require.NoError(t, err)

	fresh := &registrar{}
	svc.registrar = fresh
	n, err := svc.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 31.5, fresh.anchors["43"])

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
