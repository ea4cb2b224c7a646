package domain

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

const MaxItemQuantity = 99

type CartItem struct {
	BookID    uuid.UUID `json:"book_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice Money     `json:"unit_price"` // price when the item was first added
	AddedAt   time.Time `json:"added_at"`
}

func (i CartItem) Subtotal() Money {
	return i.UnitPrice.Mul(i.Quantity)
}

type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Total     Money      `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ComputeTotal sums line subtotals. An empty cart totals zero in cur.
func (c *Cart) ComputeTotal(cur currency.Unit) (Money, error) {
	total := ZeroMoney(cur)
	for _, item := range c.Items {
		var err error
		total, err = total.Add(item.Subtotal())
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
