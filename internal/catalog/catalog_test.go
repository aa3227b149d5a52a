package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/catalog/catalogtest"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

func testItem(kind domain.ItemKind, id int64, name, price, promo string, available bool) domain.CatalogItem {
	item := domain.CatalogItem{
		Ref:       domain.ItemRef{Kind: kind, ID: id},
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: available,
	}
	if promo != "" {
		item.PromoPrice = decimal.NewNullDecimal(decimal.RequireFromString(promo))
	}
	return item
}

func testResolver() *Resolver {
	return NewResolver(
		catalogtest.New(domain.KindStandard,
			testItem(domain.KindStandard, 3, "Peonies", "1200", "", true),
			testItem(domain.KindStandard, 4, "Teddy bear", "800", "", false),
		),
		catalogtest.New(domain.KindPromotional,
			testItem(domain.KindPromotional, 3, "Rose box", "1000", "750", true),
		),
	)
}

func TestResolver_Lookup(t *testing.T) {
	r := testResolver()
	ctx := context.Background()

	t.Run("same id resolves independently per kind", func(t *testing.T) {
		std, err := r.Lookup(ctx, domain.ItemRef{Kind: domain.KindStandard, ID: 3})
		require.NoError(t, err)
		assert.Equal(t, "Peonies", std.Name)

		promo, err := r.Lookup(ctx, domain.ItemRef{Kind: domain.KindPromotional, ID: 3})
		require.NoError(t, err)
		assert.Equal(t, "Rose box", promo.Name)
	})

	t.Run("unavailable item is not found", func(t *testing.T) {
		_, err := r.Lookup(ctx, domain.ItemRef{Kind: domain.KindStandard, ID: 4})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := r.Lookup(ctx, domain.ItemRef{Kind: domain.KindPromotional, ID: 99})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unregistered kind is not found", func(t *testing.T) {
		_, err := r.Lookup(ctx, domain.ItemRef{Kind: "gift", ID: 3})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

type countingCatalog struct {
	Catalog
	calls int
}

func (c *countingCatalog) Lookup(ctx context.Context, id int64) (*domain.CatalogItem, error) {
	c.calls++
	return c.Catalog.Lookup(ctx, id)
}

func TestCachedCatalog(t *testing.T) {
	inner := &countingCatalog{Catalog: catalogtest.New(domain.KindStandard,
		testItem(domain.KindStandard, 1, "Lilies", "500", "", true),
	)}
	cached := NewCachedCatalog(inner, 16, time.Minute)
	ctx := context.Background()

	assert.Equal(t, domain.KindStandard, cached.Kind())

	for i := 0; i < 3; i++ {
		item, err := cached.Lookup(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Lilies", item.Name)
	}
	assert.Equal(t, 1, inner.calls)

	for i := 0; i < 2; i++ {
		_, err := cached.Lookup(ctx, 2)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, 3, inner.calls, "misses must not be cached")
}

func TestProductCatalog_Lookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	columns := []string{"id", "name", "slug", "product_type", "price", "promo_price", "available"}

	mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1 AND available").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "Roses", "roses", "flower", "1000.00", "750.00", true))

	mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1 AND available").
		WithArgs(int64(8)).
		WillReturnError(sql.ErrNoRows)

	c := NewProductCatalog(db)

	item, err := c.Lookup(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemRef{Kind: domain.KindStandard, ID: 7}, item.Ref)
	assert.Equal(t, domain.ProductTypeFlower, item.ProductType)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(1000)))
	assert.True(t, item.PromoPrice.Valid)
	assert.True(t, item.PromoPrice.Decimal.Equal(decimal.NewFromInt(750)))

	_, err = c.Lookup(context.Background(), 8)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionCatalog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	columns := []string{"id", "name", "slug", "product_type", "price", "promo_price", "available"}

	mock.ExpectQuery("SELECT (.+) FROM promotions WHERE id = \\$1 AND available").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(3, "Cake", "cake", "cake", "900.00", nil, true))

	mock.ExpectQuery("SELECT (.+) FROM promotions WHERE promo_price IS NOT NULL AND available").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(5, "Bear", "bear", "toy", "1000.00", "750.00", true).
			AddRow(6, "Tulips", "tulips", "flower", "200.00", "150.00", true))

	mock.ExpectQuery("SELECT (.+) FROM promotions WHERE promo_price IS NOT NULL AND available").
		WillReturnError(errors.New("connection reset"))

	c := NewPromotionCatalog(db)
	ctx := context.Background()

	item, err := c.Lookup(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.KindPromotional, item.Ref.Kind)
	assert.False(t, item.PromoPrice.Valid)

	items, err := c.ListDiscounted(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Bear", items[0].Name)
	assert.Equal(t, 25, pricing.DiscountPercentage(items[0]))

	_, err = c.ListDiscounted(ctx)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func newTestHandler() *Handler {
	promotions := catalogtest.New(domain.KindPromotional,
		testItem(domain.KindPromotional, 3, "Rose box", "1000", "750", true),
		testItem(domain.KindPromotional, 5, "Macarons", "100", "90", true),
	)
	resolver := NewResolver(
		catalogtest.New(domain.KindStandard, testItem(domain.KindStandard, 1, "Peonies", "1200", "", true)),
		promotions,
	)
	return NewHandler(resolver, promotions, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_HandleGetItem(t *testing.T) {
	handler := newTestHandler()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /catalog/{kind}/{id}", handler.HandleGetItem)

	t.Run("returns item with quote", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/akchii/3", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp itemResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Rose box", resp.Item.Name)
		assert.True(t, resp.Quote.HasDiscount)
		assert.Equal(t, 25, resp.Quote.DiscountPercentage)
	})

	t.Run("unknown item is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/product/3", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown kind is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/gift/1", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/product/abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_HandlePromotionStats(t *testing.T) {
	handler := newTestHandler()

	rec := httptest.NewRecorder()
	handler.HandlePromotionStats(rec, httptest.NewRequest(http.MethodGet, "/promotions/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats pricing.DiscountStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, pricing.DiscountStats{Count: 2, MaxDiscountPercentage: 25, AverageDiscountPercentage: 17}, stats)
}

func TestHandler_HandleListPromotions(t *testing.T) {
	handler := newTestHandler()

	rec := httptest.NewRecorder()
	handler.HandleListPromotions(rec, httptest.NewRequest(http.MethodGet, "/promotions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []itemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp, 2)
}
