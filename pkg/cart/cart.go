// Package cart is the ordered, quantity-aware basket used by checkout. The
// "in cart" state of an item is binary from the storefront's point of view:
// adding an item that is already present changes nothing.
package cart

import (
	"encoding/json"
	"fmt"
	"io"
)

// Item is one cart line. Prices are in minor units.
type Item struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	PriceFrom  int64  `json:"price_from"`
	PriceLabel string `json:"price_label"`
	PillarName string `json:"pillar_name"`
	PillarSlug string `json:"pillar_slug"`
	Quantity   int    `json:"quantity"`
}

// LineTotal is PriceFrom × Quantity.
func (i Item) LineTotal() int64 {
	return i.PriceFrom * int64(i.Quantity)
}

// Cart keeps items in insertion order. The zero value is an empty cart.
type Cart struct {
	Items []Item `json:"items"`
}

// Add appends item with quantity 1. It is a no-op when an item with the same
// ID is already present; it reports whether the cart changed.
func (c *Cart) Add(item Item) bool {
	if c.Contains(item.ID) {
		return false
	}
	item.Quantity = 1
	c.Items = append(c.Items, item)
	return true
}

// UpdateQuantity sets the quantity of id. Zero removes the line; negative
// values clamp to 1. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(id int64, quantity int) {
	idx := c.index(id)
	if idx < 0 {
		return
	}
	if quantity == 0 {
		c.removeAt(idx)
		return
	}
	if quantity < 1 {
		quantity = 1
	}
	c.Items[idx].Quantity = quantity
}

// Remove drops the line for id, if any.
func (c *Cart) Remove(id int64) {
	if idx := c.index(id); idx >= 0 {
		c.removeAt(idx)
	}
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) Contains(id int64) bool {
	return c.index(id) >= 0
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalItems sums the quantities of every line.
func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// TotalPrice sums every line total.
func (c *Cart) TotalPrice() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.LineTotal()
	}
	return total
}

func (c *Cart) index(id int64) int {
	for i, it := range c.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	if len(c.Items) == 0 {
		c.Items = nil
	}
}

// Save writes the cart as JSON.
func (c *Cart) Save(w io.Writer) error {
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	if err := json.NewEncoder(w).Encode(Cart{Items: items}); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Load reads a cart written by Save. Lines with duplicate ids are merged and
// non-positive quantities are clamped to 1, so a hand-edited or stale
// document still yields a consistent cart.
func Load(r io.Reader) (*Cart, error) {
	var raw Cart
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	c := &Cart{}
	for _, it := range raw.Items {
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		if idx := c.index(it.ID); idx >= 0 {
			c.Items[idx].Quantity += it.Quantity
			continue
		}
		c.Items = append(c.Items, it)
	}
	return c, nil
}
