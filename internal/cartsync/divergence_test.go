package cartsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kitco/pricer/internal/domain"
)

func TestDivergent_DefaultIsStrict(t *testing.T) {
	items := []domain.OrderItem{{ID: "a", Price: 9900}}
	assert.Equal(t, []int{0}, Divergent(items, 100.00, DefaultToleranceBps))

	items = []domain.OrderItem{{ID: "a", Price: 10000}}
	assert.Empty(t, Divergent(items, 100.00, DefaultToleranceBps))
}

func TestDivergent_OnePercentTolerance(t *testing.T) {
	items := []domain.OrderItem{{ID: "a", Price: 9900}}
	assert.Empty(t, Divergent(items, 100.00, 100))

	items = []domain.OrderItem{{ID: "a", Price: 9000}}
	assert.Equal(t, []int{0}, Divergent(items, 100.00, 100))
}

func TestDivergent_Strict(t *testing.T) {
	items := []domain.OrderItem{
		{ID: "a", Price: 10000},
		{ID: "b", Price: 9999},
		{ID: "c", Price: 10001},
		{ID: "d", Price: 0},
	}
	assert.Equal(t, []int{1, 2, 3}, Divergent(items, 100.00, 0))
}

func TestDivergent_RoundsTarget(t *testing.T) {
	items := []domain.OrderItem{{ID: "a", Price: 1999}}
	assert.Empty(t, Divergent(items, 19.99, 0))
	assert.Empty(t, Divergent(items, 19.994, 0))
	assert.Equal(t, []int{0}, Divergent(items, 19.996, 0))
}

func TestDivergent_NoTarget(t *testing.T) {
	items := []domain.OrderItem{{ID: "a", Price: 500}}
	assert.Nil(t, Divergent(items, 0, 0))
	assert.Nil(t, Divergent(nil, 10, 0))
}
