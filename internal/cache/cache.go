package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// DownloadGrant is what a download token resolves to.
type DownloadGrant struct {
	BuyerID  string    `json:"buyer_id"`
	OrderID  uuid.UUID `json:"order_id"`
	BookID   uuid.UUID `json:"book_id"`
	Key      string    `json:"key"`
	FileName string    `json:"file_name"`
}

type DownloadTokenStore interface {
	Issue(ctx context.Context, grant DownloadGrant, ttl time.Duration) (string, error)
	// Redeem consumes the token. A token resolves at most once.
	Redeem(ctx context.Context, token string) (*DownloadGrant, error)
}

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrTokenUnknown = errors.New("download token unknown or expired")
)
