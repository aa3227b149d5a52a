package catalog

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Catalog serves the items of exactly one kind. Lookup returns domain.ErrNotFound
// for unknown or unavailable items.
type Catalog interface {
	Kind() domain.ItemKind
	Lookup(ctx context.Context, id int64) (*domain.CatalogItem, error)
}

// Resolver dispatches an item reference to the catalog registered for its kind.
type Resolver struct {
	catalogs map[domain.ItemKind]Catalog
}

func NewResolver(catalogs ...Catalog) *Resolver {
	r := &Resolver{catalogs: make(map[domain.ItemKind]Catalog, len(catalogs))}
	for _, c := range catalogs {
		r.catalogs[c.Kind()] = c
	}
	return r
}

func (r *Resolver) Lookup(ctx context.Context, ref domain.ItemRef) (*domain.CatalogItem, error) {
	c, ok := r.catalogs[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("no catalog for kind %q: %w", ref.Kind, domain.ErrNotFound)
	}

	item, err := c.Lookup(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("item %s unavailable: %w", ref, domain.ErrNotFound)
	}
	return item, nil
}
