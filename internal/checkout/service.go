// Package checkout turns a session cart into a persisted order and notifies
// staff about it.
package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

var tracer = otel.Tracer("storefront/checkout")

// ErrEmptyCart is returned when the cart has no line that still resolves.
var ErrEmptyCart = errors.New("cart is empty")

type OrderCreator interface {
	Create(ctx context.Context, order *domain.Order) error
}

type CartPricer interface {
	Aggregate(ctx context.Context, c domain.Cart) cart.Summary
}

type ReceiptStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

type Receipt struct {
	Filename string
	Body     io.Reader
}

// Request carries the contact fields submitted with the checkout form.
type Request struct {
	Name          string               `json:"name"`
	Phone         string               `json:"phone"`
	Address       string               `json:"address"`
	DeliveryMode  domain.DeliveryMode  `json:"delivery_mode"`
	Comment       string               `json:"comment"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Receipt       *Receipt             `json:"-"`
}

type Result struct {
	Order    domain.Order
	Notified bool
}

type Service struct {
	pricer   CartPricer
	orders   OrderCreator
	receipts ReceiptStore
	notifier notify.Notifier
	metrics  *telemetry.StoreMetrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(pricer CartPricer, orders OrderCreator, receipts ReceiptStore, notifier notify.Notifier, metrics *telemetry.StoreMetrics, logger *slog.Logger) *Service {
	return &Service{
		pricer:   pricer,
		orders:   orders,
		receipts: receipts,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// normalize trims the contact fields, applies the pickup and cash defaults and
// reports every invalid field at once.
func normalize(req Request) (Request, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	req.Comment = strings.TrimSpace(req.Comment)

	if req.DeliveryMode == "" {
		req.DeliveryMode = domain.DeliveryPickup
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}

	var fields []string
	if req.Name == "" {
		fields = append(fields, "name")
	}
	if req.Phone == "" {
		fields = append(fields, "phone")
	}
	if !req.DeliveryMode.Valid() {
		fields = append(fields, "delivery_mode")
	}
	if !req.PaymentMethod.Valid() {
		fields = append(fields, "payment_method")
	}
	if len(fields) > 0 {
		return req, &domain.ValidationError{Fields: fields}
	}
	return req, nil
}

// Place validates req, persists one order with a line per resolved cart line
// and notifies staff. The caller must clear the cart only when Place succeeds.
// A notification failure never fails Place; it is reported through
// Result.Notified.
func (s *Service) Place(ctx context.Context, c domain.Cart, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "checkout.place")
	defer span.End()

	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	req, err := normalize(req)
	if err != nil {
		return nil, err
	}

	summary := s.pricer.Aggregate(ctx, c)
	if summary.IsEmpty() {
		return nil, ErrEmptyCart
	}

	now := s.now().UTC()
	order := domain.Order{
		ContactName:   req.Name,
		Phone:         req.Phone,
		Address:       req.Address,
		DeliveryMode:  req.DeliveryMode,
		Comment:       req.Comment,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.OrderStatusNew,
		Total:         summary.Total,
		Lines:         make([]domain.OrderLine, 0, len(summary.Lines)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, line := range summary.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			Kind:      line.Item.Ref.Kind,
			ItemID:    line.Item.Ref.ID,
			Name:      line.Item.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	if req.Receipt != nil {
		ref, err := s.receipts.Save(ctx, req.Receipt.Filename, req.Receipt.Body)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, &domain.PersistenceError{Op: "store receipt", Err: err}
		}
		order.ReceiptRef = ref
	}

	if err := s.orders.Create(ctx, &order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.discardReceipt(ctx, order.ReceiptRef)

		var perr *domain.PersistenceError
		if !errors.As(err, &perr) {
			err = &domain.PersistenceError{Op: "create order", Err: err}
		}
		return nil, err
	}

	s.metrics.OrdersPlaced.Add(ctx, 1, metric.WithAttributes(attribute.String("delivery_mode", string(order.DeliveryMode))))
	total, _ := order.Total.Float64()
	s.metrics.OrderValue.Record(ctx, total)

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.lines", len(order.Lines)),
	)

	s.logger.Info("order placed", "order_id", order.ID, "lines", len(order.Lines), "total", order.Total.StringFixed(2))

	result := &Result{Order: order, Notified: true}
	msg := notify.Message{Text: notify.FormatOrder(domain.Summarize(order)), Attachment: order.ReceiptRef}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Error("failed to notify staff about order", "error", err, "order_id", order.ID)
		result.Notified = false
	}

	return result, nil
}

func (s *Service) discardReceipt(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.receipts.Remove(ctx, ref); err != nil {
		s.logger.Error("failed to remove receipt of failed order", "error", err, "receipt", ref)
	}
}
