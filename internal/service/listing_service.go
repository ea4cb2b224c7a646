package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type ListingInput struct {
	Title    string
	Author   string
	Price    decimal.Decimal
	Quantity int
}

// ListingService puts books on sale. Prices are in the marketplace currency.
type ListingService struct {
	catalog  repository.CatalogRepository
	currency currency.Unit
}

func NewListingService(catalog repository.CatalogRepository, cur currency.Unit) *ListingService {
	return &ListingService{catalog: catalog, currency: cur}
}

func (s *ListingService) CreateListing(ctx context.Context, sellerID string, in ListingInput) (*domain.Book, error) {
	if err := requireIdentity(sellerID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if !in.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	book := &domain.Book{
		ID:       uuid.New(),
		SellerID: sellerID,
		Title:    title,
		Author:   strings.TrimSpace(in.Author),
		Price:    domain.NewMoney(in.Price.Round(2), s.currency),
		Quantity: quantity,
	}
	if err := s.catalog.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("book_id", book.ID.String()).
		Str("seller_id", sellerID).
		Msg("book listed")
	return book, nil
}

func (s *ListingService) GetListing(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	book, err := s.catalog.GetBook(ctx, bookID)
	if errors.Is(err, repository.ErrBookNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return book, nil
}
