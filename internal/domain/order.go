package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusReady, OrderStatusDelivering, OrderStatusCancelled},
	OrderStatusReady:      {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusDelivering: {OrderStatusCompleted, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusProcessing, OrderStatusReady,
		OrderStatusDelivering, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type DeliveryMode string

const (
	DeliveryPickup   DeliveryMode = "pickup"
	DeliveryDelivery DeliveryMode = "delivery"
)

func (m DeliveryMode) Valid() bool {
	return m == DeliveryPickup || m == DeliveryDelivery
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentCard
}

func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCash:
		return "Cash"
	case PaymentCard:
		return "Card online"
	}
	return "not specified"
}

// OrderLine snapshots the unit price at order time; it is never recomputed from
// the catalog afterwards.
type OrderLine struct {
	ID        string          `json:"id"`
	Kind      ItemKind        `json:"kind"`
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID            string          `json:"id"`
	ContactName   string          `json:"contact_name"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address,omitempty"`
	DeliveryMode  DeliveryMode    `json:"delivery_mode"`
	Comment       string          `json:"comment,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ReceiptRef    string          `json:"receipt_ref,omitempty"`
	Status        OrderStatus     `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Lines         []OrderLine     `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (o Order) HasReceipt() bool {
	return o.ReceiptRef != ""
}

// OrderSummary is the payload rendered into the staff notification.
type OrderSummary struct {
	OrderID       string          `json:"order_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	DeliveryMode  DeliveryMode    `json:"delivery_mode"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Comment       string          `json:"comment"`
	HasReceipt    bool            `json:"has_receipt"`
	Items         []SummaryItem   `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

type SummaryItem struct {
	Kind      ItemKind        `json:"kind"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Summarize builds the notification payload from a persisted order.
func Summarize(o Order) OrderSummary {
	s := OrderSummary{
		OrderID:       o.ID,
		Name:          o.ContactName,
		Phone:         o.Phone,
		Address:       o.Address,
		DeliveryMode:  o.DeliveryMode,
		PaymentMethod: o.PaymentMethod,
		Comment:       o.Comment,
		HasReceipt:    o.HasReceipt(),
		Items:         make([]SummaryItem, 0, len(o.Lines)),
		Total:         o.Total,
	}
	for _, l := range o.Lines {
		s.Items = append(s.Items, SummaryItem{
			Kind:      l.Kind,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Total:     l.Total(),
		})
	}
	return s
}
