package cart

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func audit() Item {
	return Item{ID: 1, Title: "Business Audit", Slug: "business-audit", PriceFrom: 50000, PillarName: "Strategy", PillarSlug: "strategy"}
}

func bookkeeping() Item {
	return Item{ID: 2, Title: "Bookkeeping Setup", Slug: "bookkeeping-setup", PriceFrom: 25000, PillarName: "Finance", PillarSlug: "finance"}
}

func TestAddIncrementsTotalItems(t *testing.T) {
	var c Cart
	assert.True(t, c.IsEmpty())

	assert.True(t, c.Add(audit()))
	assert.Equal(t, 1, c.TotalItems())

	assert.True(t, c.Add(bookkeeping()))
	assert.Equal(t, 2, c.TotalItems())
	assert.Equal(t, int64(75000), c.TotalPrice())
}

func TestAddIsNoOpWhenPresent(t *testing.T) {
	var c Cart
	c.Add(audit())
	c.UpdateQuantity(1, 3)

	assert.False(t, c.Add(audit()))
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity, "re-adding must not touch the quantity")
}

func TestAddForcesQuantityOne(t *testing.T) {
	var c Cart
	item := audit()
	item.Quantity = 9
	c.Add(item)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestUpdateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		wantLines int
		wantQty   int
	}{
		{"set", 4, 2, 4},
		{"zero removes", 0, 1, 0},
		{"negative clamps to one", -3, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cart
			c.Add(audit())
			c.Add(bookkeeping())

			c.UpdateQuantity(1, tt.quantity)

			assert.Len(t, c.Items, tt.wantLines)
			if tt.wantLines == 2 {
				assert.Equal(t, tt.wantQty, c.Items[0].Quantity)
			} else {
				assert.False(t, c.Contains(1))
			}
		})
	}
}

func TestUpdateQuantityUnknownID(t *testing.T) {
	var c Cart
	c.Add(audit())
	c.UpdateQuantity(99, 5)
	assert.Equal(t, 1, c.TotalItems())
}

func TestRemoveAllRestoresEmptyCart(t *testing.T) {
	var c Cart
	c.Add(audit())
	c.Add(bookkeeping())

	c.Remove(1)
	c.Remove(2)

	assert.True(t, c.IsEmpty())
	assert.Zero(t, c.TotalItems())
	assert.Zero(t, c.TotalPrice())
}

func TestRemoveKeepsOrder(t *testing.T) {
	var c Cart
	c.Add(audit())
	c.Add(bookkeeping())
	third := Item{ID: 3, Title: "Payroll", PriceFrom: 1000}
	c.Add(third)

	c.Remove(2)

	ids := []int64{}
	for _, it := range c.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestClear(t *testing.T) {
	var c Cart
	c.Add(audit())
	c.Add(bookkeeping())
	c.Clear()
	assert.True(t, c.IsEmpty())
}

func TestSaveLoadPreservesCart(t *testing.T) {
	var c Cart
	c.Add(audit())
	c.Add(bookkeeping())
	c.UpdateQuantity(2, 3)

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(c.Items, loaded.Items); diff != "" {
		t.Errorf("loaded cart mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadNormalisesStaleDocument(t *testing.T) {
	doc := `{"items":[
		{"id":1,"title":"Business Audit","price_from":100,"quantity":2},
		{"id":2,"title":"Bookkeeping","price_from":50,"quantity":0},
		{"id":1,"title":"Business Audit","price_from":100,"quantity":1}
	]}`

	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.Equal(t, int64(350), c.TotalPrice())
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(strings.NewReader("not json"))
	assert.Error(t, err)
}
