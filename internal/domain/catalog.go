package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	KindStandard    ItemKind = "product"
	KindPromotional ItemKind = "akchii"
)

func (k ItemKind) Valid() bool {
	return k == KindStandard || k == KindPromotional
}

// ItemRef identifies one item in one catalog. IDs are only unique within a kind.
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   int64    `json:"id"`
}

// Key renders the composite cart key, e.g. "product_7" or "akchii_3".
func (r ItemRef) Key() string {
	return string(r.Kind) + "_" + strconv.FormatInt(r.ID, 10)
}

func (r ItemRef) String() string {
	return r.Key()
}

// ParseItemKey decodes a composite cart key. Keys without a separator are bare
// standard-catalog ids written before promotions existed; an unrecognized prefix
// also resolves to the standard catalog.
func ParseItemKey(key string) (ItemRef, error) {
	kind := KindStandard
	raw := key

	if prefix, id, found := strings.Cut(key, "_"); found {
		if strings.Contains(id, "_") {
			return ItemRef{}, fmt.Errorf("malformed cart key %q", key)
		}
		if ItemKind(prefix) == KindPromotional {
			kind = KindPromotional
		}
		raw = id
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ItemRef{}, fmt.Errorf("malformed cart key %q: %w", key, err)
	}
	if id <= 0 {
		return ItemRef{}, fmt.Errorf("malformed cart key %q: non-positive id", key)
	}

	return ItemRef{Kind: kind, ID: id}, nil
}

type ProductType string

const (
	ProductTypeFlower ProductType = "flower"
	ProductTypeToy    ProductType = "toy"
	ProductTypeCake   ProductType = "cake"
)

// Valid reports whether t is a known type. The empty type marks an
// uncategorised item.
func (t ProductType) Valid() bool {
	switch t {
	case "", ProductTypeFlower, ProductTypeToy, ProductTypeCake:
		return true
	}
	return false
}

type CatalogItem struct {
	Ref         ItemRef             `json:"ref"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	ProductType ProductType         `json:"product_type"`
	Price       decimal.Decimal     `json:"price"`
	PromoPrice  decimal.NullDecimal `json:"promo_price"`
	Available   bool                `json:"available"`
}
