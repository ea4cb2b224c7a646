package service

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

func usd(amount string) domain.Money {
	return domain.NewMoney(decimal.RequireFromString(amount), currency.USD)
}

func newBook(t *testing.T, sellerID, price string) *domain.Book {
	t.Helper()
	now := time.Now()
	return &domain.Book{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Title:     gofakeit.BookTitle(),
		Author:    gofakeit.BookAuthor(),
		Price:     usd(price),
		Quantity:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func fullAddress() domain.Address {
	return domain.Address{
		Street:  gofakeit.Street(),
		City:    gofakeit.City(),
		State:   gofakeit.State(),
		Zip:     gofakeit.Zip(),
		Country: gofakeit.Country(),
	}
}

// paidOrder builds an order with completed payment for a single book.
func paidOrder(buyerID string, book *domain.Book) *domain.Order {
	now := time.Now()
	return &domain.Order{
		ID:                uuid.New(),
		CheckoutID:        uuid.New(),
		BuyerID:           buyerID,
		SellerID:          book.SellerID,
		Items:             []domain.OrderLineItem{{BookID: book.ID, Title: book.Title, Quantity: 1, UnitPrice: book.Price, LineSubtotal: book.Price}},
		TotalAmount:       book.Price,
		ShippingAddress:   fullAddress(),
		FulfillmentStatus: domain.FulfillmentPending,
		PaymentStatus:     domain.PaymentCompleted,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
