package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// CachedCatalog keeps recent hits of another catalog for ttl. Misses are not
// cached, so an item that becomes available shows up on the next lookup.
type CachedCatalog struct {
	next  Catalog
	items *expirable.LRU[int64, domain.CatalogItem]
}

func NewCachedCatalog(next Catalog, size int, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		next:  next,
		items: expirable.NewLRU[int64, domain.CatalogItem](size, nil, ttl),
	}
}

func (c *CachedCatalog) Kind() domain.ItemKind {
	return c.next.Kind()
}

func (c *CachedCatalog) Lookup(ctx context.Context, id int64) (*domain.CatalogItem, error) {
	if item, ok := c.items.Get(id); ok {
		return &item, nil
	}

	item, err := c.next.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	c.items.Add(id, *item)
	return item, nil
}
