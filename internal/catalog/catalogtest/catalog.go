// Package catalogtest provides an in-memory catalog for tests.
package catalogtest

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Catalog is an in-memory catalog. Items whose kind differs from the
// catalog's kind are ignored.
type Catalog struct {
	kind  domain.ItemKind
	items map[int64]domain.CatalogItem
}

func New(kind domain.ItemKind, items ...domain.CatalogItem) *Catalog {
	c := &Catalog{kind: kind, items: make(map[int64]domain.CatalogItem, len(items))}
	for _, item := range items {
		if item.Ref.Kind == kind {
			c.items[item.Ref.ID] = item
		}
	}
	return c
}

func (c *Catalog) Kind() domain.ItemKind {
	return c.kind
}

func (c *Catalog) Lookup(_ context.Context, id int64) (*domain.CatalogItem, error) {
	item, ok := c.items[id]
	if !ok || !item.Available {
		return nil, fmt.Errorf("%s_%d: %w", c.kind, id, domain.ErrNotFound)
	}
	return &item, nil
}

func (c *Catalog) ListDiscounted(_ context.Context) ([]domain.CatalogItem, error) {
	items := []domain.CatalogItem{}
	for _, item := range c.items {
		if item.Available && item.PromoPrice.Valid {
			items = append(items, item)
		}
	}
	return items, nil
}
