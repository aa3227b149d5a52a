// Package pricing derives charged prices and discounts from catalog items.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// HasDiscount is true only when a promotional price is set and strictly below
// the list price.
func HasDiscount(item domain.CatalogItem) bool {
	return item.PromoPrice.Valid && item.PromoPrice.Decimal.LessThan(item.Price)
}

func EffectivePrice(item domain.CatalogItem) decimal.Decimal {
	if HasDiscount(item) {
		return item.PromoPrice.Decimal
	}
	return item.Price
}

// DiscountPercentage truncates toward zero: 100 * (list - promo) / list.
func DiscountPercentage(item domain.CatalogItem) int {
	if !HasDiscount(item) || !item.Price.IsPositive() {
		return 0
	}
	q, _ := item.Price.Sub(item.PromoPrice.Decimal).Mul(hundred).QuoRem(item.Price, 0)
	return int(q.IntPart())
}

func Savings(item domain.CatalogItem) decimal.Decimal {
	return item.Price.Sub(EffectivePrice(item))
}

type Quote struct {
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ListPrice          decimal.Decimal `json:"list_price"`
	HasDiscount        bool            `json:"has_discount"`
	DiscountPercentage int             `json:"discount_percentage"`
	Savings            decimal.Decimal `json:"savings"`
}

func QuoteItem(item domain.CatalogItem) Quote {
	return Quote{
		UnitPrice:          EffectivePrice(item),
		ListPrice:          item.Price,
		HasDiscount:        HasDiscount(item),
		DiscountPercentage: DiscountPercentage(item),
		Savings:            Savings(item),
	}
}

type DiscountStats struct {
	Count                     int `json:"count"`
	MaxDiscountPercentage     int `json:"max_discount_percentage"`
	AverageDiscountPercentage int `json:"average_discount_percentage"`
}

// Stats summarizes a promotion listing. Count covers every item passed in; the
// max and the floored average only consider items with an actual discount.
func Stats(items []domain.CatalogItem) DiscountStats {
	stats := DiscountStats{Count: len(items)}

	discounted, sum := 0, 0
	for _, item := range items {
		if !HasDiscount(item) {
			continue
		}
		pct := DiscountPercentage(item)
		if pct > stats.MaxDiscountPercentage {
			stats.MaxDiscountPercentage = pct
		}
		sum += pct
		discounted++
	}

	if discounted > 0 {
		stats.AverageDiscountPercentage = sum / discounted
	}
	return stats
}
