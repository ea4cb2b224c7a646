package domain

import (
	"time"

	"github.com/google/uuid"
)

type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentConfirmed FulfillmentStatus = "confirmed"
	FulfillmentShipped   FulfillmentStatus = "shipped"
	FulfillmentDelivered FulfillmentStatus = "delivered"
	FulfillmentCancelled FulfillmentStatus = "cancelled"
	FulfillmentReturned  FulfillmentStatus = "returned"
)

func (s FulfillmentStatus) Valid() bool {
	switch s {
	case FulfillmentPending, FulfillmentConfirmed, FulfillmentShipped,
		FulfillmentDelivered, FulfillmentCancelled, FulfillmentReturned:
		return true
	}
	return false
}

func (s FulfillmentStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// Complete reports whether the fields needed to ship are present.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.Zip != "" && a.Country != ""
}

type OrderLineItem struct {
	BookID       uuid.UUID `json:"book_id"`
	Title        string    `json:"title"`
	Quantity     int       `json:"quantity"`
	UnitPrice    Money     `json:"unit_price"`
	LineSubtotal Money     `json:"line_subtotal"`
}

type Order struct {
	ID                uuid.UUID         `json:"id"`
	CheckoutID        uuid.UUID         `json:"checkout_id"`
	BuyerID           string            `json:"buyer_id"`
	SellerID          string            `json:"seller_id"`
	Items             []OrderLineItem   `json:"items"`
	TotalAmount       Money             `json:"total_amount"`
	ClaimedTotal      *Money            `json:"claimed_total,omitempty"`
	ShippingAddress   Address           `json:"shipping_address"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	PaymentReference  *string           `json:"payment_reference,omitempty"`
	TrackingNumber    *string           `json:"tracking_number,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
}

func (o *Order) Contains(bookID uuid.UUID) bool {
	for _, item := range o.Items {
		if item.BookID == bookID {
			return true
		}
	}
	return false
}
