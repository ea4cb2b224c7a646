package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TopicOrdersPlaced       = "orders.placed"
	TopicFulfillmentChanged = "order.fulfillment_changed"
	TopicPaymentChanged     = "order.payment_changed"
)

// Publisher delivers events to a broker. Order events reach it through the
// outbox relay, after the owning transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close() error
}

type OrdersPlaced struct {
	CheckoutID uuid.UUID   `json:"checkout_id"`
	BuyerID    string      `json:"buyer_id"`
	OrderIDs   []uuid.UUID `json:"order_ids"`
	SellerIDs  []string    `json:"seller_ids"`
	Total      string      `json:"total"`
	Currency   string      `json:"currency"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type FulfillmentChanged struct {
	OrderID        uuid.UUID `json:"order_id"`
	SellerID       string    `json:"seller_id"`
	BuyerID        string    `json:"buyer_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	TrackingNumber *string   `json:"tracking_number,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type PaymentChanged struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    string    `json:"buyer_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}
