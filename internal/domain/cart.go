package domain

import (
	"errors"
	"sort"
)

// MaxLineQuantity caps the quantity of a single cart entry.
const MaxLineQuantity = 999

var ErrQuantityLimit = errors.New("cart line quantity limit exceeded")

type CartEntry struct {
	Key      string `json:"key"`
	Quantity int    `json:"quantity"`
}

// Cart is the session-held cart. Entries keep insertion order and keys are
// unique in canonical form; quantities stay within 1..MaxLineQuantity.
type Cart struct {
	Entries []CartEntry `json:"entries"`
}

// CartFromMap converts the legacy key->quantity mapping. Map iteration order is
// undefined, so entries are ordered by key. Aliases of one item are merged and
// out-of-range quantities dropped.
func CartFromMap(m map[string]int) Cart {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var c Cart
	for _, k := range keys {
		if q := m[k]; q > 0 && q <= MaxLineQuantity {
			c.Set(k, c.Quantity(k)+q)
		}
	}
	return c
}

// CanonicalKey maps every spelling of an item key ("7", "gift_7", "product_07")
// to ItemRef.Key. Unparseable keys are returned unchanged.
func CanonicalKey(key string) string {
	ref, err := ParseItemKey(key)
	if err != nil {
		return key
	}
	return ref.Key()
}

func (c *Cart) index(key string) int {
	key = CanonicalKey(key)
	for i, e := range c.Entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

// Add increments the quantity of ref in place, appending it if absent. The cart
// is left unchanged and ErrQuantityLimit returned when the line would exceed
// MaxLineQuantity.
func (c *Cart) Add(ref ItemRef, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	key := ref.Key()
	i := c.index(key)
	current := 0
	if i >= 0 {
		current = c.Entries[i].Quantity
	}
	if quantity > MaxLineQuantity-current {
		return ErrQuantityLimit
	}
	if i >= 0 {
		c.Entries[i].Quantity += quantity
		return nil
	}
	c.Entries = append(c.Entries, CartEntry{Key: key, Quantity: quantity})
	return nil
}

// Set replaces the quantity stored at key, clamped to MaxLineQuantity. A
// quantity of zero or less removes it.
func (c *Cart) Set(key string, quantity int) {
	if quantity <= 0 {
		c.Remove(key)
		return
	}
	quantity = min(quantity, MaxLineQuantity)
	key = CanonicalKey(key)
	if i := c.index(key); i >= 0 {
		c.Entries[i].Quantity = quantity
		return
	}
	c.Entries = append(c.Entries, CartEntry{Key: key, Quantity: quantity})
}

func (c *Cart) Remove(key string) bool {
	i := c.index(key)
	if i < 0 {
		return false
	}
	c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
	return true
}

func (c Cart) Quantity(key string) int {
	if i := c.index(key); i >= 0 {
		return c.Entries[i].Quantity
	}
	return 0
}

func (c Cart) IsEmpty() bool {
	return len(c.Entries) == 0
}

// ItemsCount sums raw quantities, including entries that may no longer resolve.
func (c Cart) ItemsCount() int {
	n := 0
	for _, e := range c.Entries {
		n += e.Quantity
	}
	return n
}
