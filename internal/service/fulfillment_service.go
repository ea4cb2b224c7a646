package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/bookswap/internal/blob"
	"github.com/fjod/bookswap/internal/cache"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DownloadTokenTTL = 15 * time.Minute

type DownloadLink struct {
	URL            string
	FileName       string
	ExpiresInHours int
	ExpiresAt      time.Time
}

type DownloadToken struct {
	Token     string
	ExpiresIn time.Duration
}

// FulfillmentService hands out digital files only to buyers whose payment completed.
type FulfillmentService struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	blobs   blob.Gateway
	tokens  cache.DownloadTokenStore
}

func NewFulfillmentService(orders repository.OrderRepository, catalog repository.CatalogRepository, blobs blob.Gateway, tokens cache.DownloadTokenStore) *FulfillmentService {
	return &FulfillmentService{
		orders:  orders,
		catalog: catalog,
		blobs:   blobs,
		tokens:  tokens,
	}
}

func (s *FulfillmentService) GetDownloadLink(ctx context.Context, buyerID string, bookID uuid.UUID) (*DownloadLink, error) {
	file, _, err := s.authorize(ctx, buyerID, bookID)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, bookID, file.Key, file.FileName)
}

// IssueDownloadToken returns a short-lived single-use token for redirect flows.
func (s *FulfillmentService) IssueDownloadToken(ctx context.Context, buyerID string, bookID uuid.UUID) (*DownloadToken, error) {
	file, orderID, err := s.authorize(ctx, buyerID, bookID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(ctx, cache.DownloadGrant{
		BuyerID:  buyerID,
		OrderID:  orderID,
		BookID:   bookID,
		Key:      file.Key,
		FileName: file.FileName,
	}, DownloadTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue download token: %w", err)
	}
	return &DownloadToken{Token: token, ExpiresIn: DownloadTokenTTL}, nil
}

// RedeemDownloadToken consumes the token and re-checks the purchase before signing.
func (s *FulfillmentService) RedeemDownloadToken(ctx context.Context, token string) (*DownloadLink, error) {
	grant, err := s.tokens.Redeem(ctx, token)
	if errors.Is(err, cache.ErrTokenUnknown) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("redeem download token: %w", err)
	}

	if err := s.recheckGrant(ctx, grant); err != nil {
		return nil, err
	}
	return s.sign(ctx, grant.BookID, grant.Key, grant.FileName)
}

// recheckGrant accepts the order the token was issued against while it is
// still paid and still holds the book. Otherwise any other completed purchase
// of the book by the same buyer will do.
func (s *FulfillmentService) recheckGrant(ctx context.Context, grant *cache.DownloadGrant) error {
	if grant.OrderID != uuid.Nil {
		order, err := s.orders.GetOrder(ctx, grant.OrderID)
		switch {
		case err == nil:
			if order.BuyerID == grant.BuyerID && order.PaymentStatus == domain.PaymentCompleted && order.Contains(grant.BookID) {
				return nil
			}
		case !errors.Is(err, repository.ErrOrderNotFound):
			return fmt.Errorf("load granted order: %w", err)
		}
	}
	_, err := s.verifyPurchase(ctx, grant.BuyerID, grant.BookID)
	return err
}

func (s *FulfillmentService) authorize(ctx context.Context, buyerID string, bookID uuid.UUID) (*domain.DigitalFile, uuid.UUID, error) {
	if err := requireIdentity(buyerID); err != nil {
		return nil, uuid.Nil, err
	}
	orderID, err := s.verifyPurchase(ctx, buyerID, bookID)
	if err != nil {
		return nil, uuid.Nil, err
	}

	book, err := s.catalog.GetBook(ctx, bookID)
	if errors.Is(err, repository.ErrBookNotFound) {
		return nil, uuid.Nil, ErrBookNotFound
	}
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("get book: %w", err)
	}
	if !book.IsDigital() {
		return nil, uuid.Nil, ErrNoDigitalFile
	}
	return book.DigitalFile, orderID, nil
}

func (s *FulfillmentService) verifyPurchase(ctx context.Context, buyerID string, bookID uuid.UUID) (uuid.UUID, error) {
	orderID, err := s.orders.FindCompletedPurchase(ctx, buyerID, bookID)
	if errors.Is(err, repository.ErrPurchaseNotFound) {
		return uuid.Nil, ErrNotPurchased
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("verify purchase: %w", err)
	}
	return orderID, nil
}

// sign never falls back to an unsigned URL.
func (s *FulfillmentService) sign(ctx context.Context, bookID uuid.UUID, key, fileName string) (*DownloadLink, error) {
	signed, err := s.blobs.SignedURL(ctx, key, blob.DownloadURLExpiry)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("book_id", bookID.String()).Msg("download signing failed")
		return nil, fmt.Errorf("%w: sign download url: %v", ErrUpstream, err)
	}

	return &DownloadLink{
		URL:            signed.URL,
		FileName:       fileName,
		ExpiresInHours: int(blob.DownloadURLExpiry / time.Hour),
		ExpiresAt:      signed.ExpiresAt,
	}, nil
}
