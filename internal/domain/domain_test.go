package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func usd(s string) Money {
	return NewMoney(decimal.RequireFromString(s), currency.USD)
}

func TestCartComputeTotal(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{BookID: uuid.New(), Quantity: 2, UnitPrice: usd("10.50")},
		{BookID: uuid.New(), Quantity: 1, UnitPrice: usd("4.25")},
	}}

	total, err := cart.ComputeTotal(currency.USD)
	require.NoError(t, err)
	assert.True(t, total.Equal(usd("25.25")), total.String())
}

func TestCartComputeTotal_Empty(t *testing.T) {
	total, err := (&Cart{}).ComputeTotal(currency.EUR)
	require.NoError(t, err)
	assert.True(t, total.Amount.IsZero())
	assert.Equal(t, currency.EUR, total.Currency)
}

func TestMoneyAdd_CurrencyMismatch(t *testing.T) {
	_, err := usd("1").Add(NewMoney(decimal.NewFromInt(1), currency.EUR))
	assert.ErrorContains(t, err, "currency mismatch")
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(usd("12.30"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.3","currency":"USD"}`, string(data))

	var m Money
	require.NoError(t, json.Unmarshal(data, &m))
	assert.True(t, m.Equal(usd("12.3")))
}

func TestImageUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Image
		wantErr bool
	}{
		{name: "bare url", input: `"https://cdn.example/a.jpg"`, want: Image{URL: "https://cdn.example/a.jpg"}},
		{name: "object", input: `{"url":"https://cdn.example/b.jpg","key":"covers/b.jpg"}`, want: Image{URL: "https://cdn.example/b.jpg", Key: "covers/b.jpg"}},
		{name: "key only", input: `{"key":"covers/c.jpg"}`, want: Image{Key: "covers/c.jpg"}},
		{name: "empty string", input: `""`, wantErr: true},
		{name: "empty object", input: `{}`, wantErr: true},
		{name: "number", input: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var img Image
			err := json.Unmarshal([]byte(tt.input), &img)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, img)
		})
	}
}

func TestNewRatingSummary(t *testing.T) {
	assert.Equal(t, BookRatingSummary{}, NewRatingSummary(0, 0))
	assert.Equal(t, BookRatingSummary{AverageRating: 4.0, ReviewCount: 3}, NewRatingSummary(12, 3))
	assert.Equal(t, BookRatingSummary{AverageRating: 4.5, ReviewCount: 2}, NewRatingSummary(9, 2))
	assert.Equal(t, BookRatingSummary{AverageRating: 3.7, ReviewCount: 3}, NewRatingSummary(11, 3))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, FulfillmentShipped.Valid())
	assert.False(t, FulfillmentStatus("lost").Valid())
	assert.True(t, PaymentFailed.Valid())
	assert.False(t, PaymentStatus("refunded").Valid())
}

func TestPermissiveTransitions(t *testing.T) {
	p := PermissiveTransitions{}
	assert.True(t, p.CanFulfill(FulfillmentDelivered, FulfillmentPending))
	assert.True(t, p.CanPay(PaymentCompleted, PaymentPending))
	assert.False(t, p.CanFulfill(FulfillmentPending, "lost"))
}

func TestStrictTransitions(t *testing.T) {
	s := StrictTransitions{}
	assert.True(t, s.CanFulfill(FulfillmentPending, FulfillmentShipped))
	assert.True(t, s.CanFulfill(FulfillmentShipped, FulfillmentShipped))
	assert.False(t, s.CanFulfill(FulfillmentDelivered, FulfillmentPending))
	assert.False(t, s.CanFulfill(FulfillmentDelivered, FulfillmentReturned))
	assert.False(t, s.CanFulfill(FulfillmentDelivered, FulfillmentCancelled))
	assert.False(t, s.CanFulfill(FulfillmentCancelled, FulfillmentShipped))
	assert.True(t, s.CanPay(PaymentPending, PaymentCompleted))
	assert.False(t, s.CanPay(PaymentCompleted, PaymentFailed))
}

func TestStrictTransitions_ExitsBeforeDelivery(t *testing.T) {
	s := StrictTransitions{}
	for _, from := range []FulfillmentStatus{FulfillmentPending, FulfillmentConfirmed, FulfillmentShipped} {
		assert.True(t, s.CanFulfill(from, FulfillmentCancelled), "from %s", from)
		assert.True(t, s.CanFulfill(from, FulfillmentReturned), "from %s", from)
	}
}

func TestOrderContains(t *testing.T) {
	id := uuid.New()
	o := &Order{Items: []OrderLineItem{{BookID: id}}}
	assert.True(t, o.Contains(id))
	assert.False(t, o.Contains(uuid.New()))
}
