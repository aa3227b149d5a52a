package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const itemColumns = `id, name, slug, product_type, price, promo_price, available`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner, kind domain.ItemKind) (*domain.CatalogItem, error) {
	item := &domain.CatalogItem{Ref: domain.ItemRef{Kind: kind}}
	if err := row.Scan(&item.Ref.ID, &item.Name, &item.Slug, &item.ProductType,
		&item.Price, &item.PromoPrice, &item.Available); err != nil {
		return nil, err
	}
	return item, nil
}

func lookupAvailable(ctx context.Context, db *sql.DB, query string, kind domain.ItemKind, id int64) (*domain.CatalogItem, error) {
	item, err := scanItem(db.QueryRowContext(ctx, query, id), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s_%d: %w", kind, id, domain.ErrNotFound)
		}
		return nil, err
	}
	return item, nil
}

// ProductCatalog is the standard catalog backed by the products table.
type ProductCatalog struct {
	db *sql.DB
}

func NewProductCatalog(db *sql.DB) *ProductCatalog {
	return &ProductCatalog{db: db}
}

func (c *ProductCatalog) Kind() domain.ItemKind {
	return domain.KindStandard
}

func (c *ProductCatalog) Lookup(ctx context.Context, id int64) (*domain.CatalogItem, error) {
	return lookupAvailable(ctx, c.db, `
		SELECT `+itemColumns+`
		FROM products
		WHERE id = $1 AND available
	`, domain.KindStandard, id)
}

// PromotionCatalog is the promotional catalog backed by the promotions table.
type PromotionCatalog struct {
	db *sql.DB
}

func NewPromotionCatalog(db *sql.DB) *PromotionCatalog {
	return &PromotionCatalog{db: db}
}

func (c *PromotionCatalog) Kind() domain.ItemKind {
	return domain.KindPromotional
}

func (c *PromotionCatalog) Lookup(ctx context.Context, id int64) (*domain.CatalogItem, error) {
	return lookupAvailable(ctx, c.db, `
		SELECT `+itemColumns+`
		FROM promotions
		WHERE id = $1 AND available
	`, domain.KindPromotional, id)
}

// ListDiscounted returns available promotions carrying a promotional price,
// newest first.
func (c *PromotionCatalog) ListDiscounted(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM promotions
		WHERE promo_price IS NOT NULL AND available
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CatalogItem{}
	for rows.Next() {
		item, err := scanItem(rows, domain.KindPromotional)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
