package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

var tracer = otel.Tracer("storefront/cart")

type ItemResolver interface {
	Lookup(ctx context.Context, ref domain.ItemRef) (*domain.CatalogItem, error)
}

// Line is one resolved cart entry priced at the current catalog price.
type Line struct {
	Key                string             `json:"key"`
	Item               domain.CatalogItem `json:"item"`
	Quantity           int                `json:"quantity"`
	UnitPrice          decimal.Decimal    `json:"unit_price"`
	ListUnitPrice      decimal.Decimal    `json:"list_unit_price"`
	Total              decimal.Decimal    `json:"total"`
	ListTotal          decimal.Decimal    `json:"list_total"`
	Savings            decimal.Decimal    `json:"savings"`
	HasDiscount        bool               `json:"has_discount"`
	DiscountPercentage int                `json:"discount_percentage"`
}

type Skipped struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Summary is the priced view of a cart. Lines follow the cart's entry order.
type Summary struct {
	Lines      []Line          `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	ListTotal  decimal.Decimal `json:"list_total"`
	Savings    decimal.Decimal `json:"savings"`
	ItemsCount int             `json:"items_count"`
	Skipped    []Skipped       `json:"skipped,omitempty"`
}

func (s Summary) IsEmpty() bool {
	return len(s.Lines) == 0
}

type Aggregator struct {
	resolver ItemResolver
	metrics  *telemetry.StoreMetrics
	logger   *slog.Logger
}

func NewAggregator(resolver ItemResolver, metrics *telemetry.StoreMetrics, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// Aggregate prices every entry of c. An entry that does not parse or resolve is
// skipped and reported in Summary.Skipped; it never fails the whole cart. Lookup
// errors other than not-found are skipped the same way.
func (a *Aggregator) Aggregate(ctx context.Context, c domain.Cart) Summary {
	ctx, span := tracer.Start(ctx, "cart.aggregate")
	defer span.End()

	summary := Summary{
		Lines:     []Line{},
		Total:     decimal.Zero,
		ListTotal: decimal.Zero,
		Savings:   decimal.Zero,
	}

	for _, entry := range c.Entries {
		line, err := a.resolve(ctx, entry)
		if err != nil {
			reason := "not found"
			if !errors.Is(err, domain.ErrNotFound) {
				reason = "lookup failed"
			}
			a.logger.Warn("skipping cart entry", "key", entry.Key, "reason", reason, "error", err)
			a.metrics.CartEntriesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
			summary.Skipped = append(summary.Skipped, Skipped{Key: entry.Key, Reason: reason})
			continue
		}

		summary.Lines = append(summary.Lines, line)
		summary.Total = summary.Total.Add(line.Total)
		summary.ListTotal = summary.ListTotal.Add(line.ListTotal)
		summary.Savings = summary.Savings.Add(line.Savings)
		summary.ItemsCount += line.Quantity
	}

	span.SetAttributes(
		attribute.Int("cart.entries", len(c.Entries)),
		attribute.Int("cart.lines", len(summary.Lines)),
	)

	return summary
}

func (a *Aggregator) resolve(ctx context.Context, entry domain.CartEntry) (Line, error) {
	ref, err := domain.ParseItemKey(entry.Key)
	if err != nil {
		return Line{}, errors.Join(domain.ErrNotFound, err)
	}

	item, err := a.resolver.Lookup(ctx, ref)
	if err != nil {
		return Line{}, err
	}

	qty := decimal.NewFromInt(int64(entry.Quantity))
	quote := pricing.QuoteItem(*item)
	total := quote.UnitPrice.Mul(qty)
	listTotal := quote.ListPrice.Mul(qty)

	return Line{
		Key:                entry.Key,
		Item:               *item,
		Quantity:           entry.Quantity,
		UnitPrice:          quote.UnitPrice,
		ListUnitPrice:      quote.ListPrice,
		Total:              total,
		ListTotal:          listTotal,
		Savings:            listTotal.Sub(total),
		HasDiscount:        quote.HasDiscount,
		DiscountPercentage: quote.DiscountPercentage,
	}, nil
}
