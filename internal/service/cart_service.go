package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/bookswap/internal/cache"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo    repository.CartRepository
	catalog repository.CatalogRepository
	cache   cache.CartCache
	sfg     singleflight.Group // Prevents cache stampede
	now     func() time.Time
}

func NewCartService(repo repository.CartRepository, catalog repository.CatalogRepository, cache cache.CartCache) *CartService {
	return &CartService{
		repo:    repo,
		catalog: catalog,
		cache:   cache,
		now:     time.Now,
	}
}

// GetCart never creates a cart. A user who has not added anything gets ErrCartNotFound.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}

	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("cart cache get failed")
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get cart: %w", err)
		}

		if errSet := s.cache.Set(ctx, userID, cart); errSet != nil {
			zerolog.Ctx(ctx).Warn().Err(errSet).Msg("cart cache set failed")
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem captures the current catalog price on first add. Re-adding a book
// only increases its quantity.
func (s *CartService) AddItem(ctx context.Context, userID string, bookID uuid.UUID, quantity int) (*domain.Cart, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > domain.MaxItemQuantity {
		return nil, ErrInvalidQuantity
	}

	book, err := s.catalog.GetBook(ctx, bookID)
	if errors.Is(err, repository.ErrBookNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	cart, err := s.repo.AddItem(ctx, userID, domain.CartItem{
		BookID:    bookID,
		Quantity:  quantity,
		UnitPrice: book.Price,
		AddedAt:   s.now(),
	})
	if errors.Is(err, repository.ErrQuantityLimit) {
		return nil, ErrInvalidQuantity
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("book_id", bookID.String()).Msg("repo add item failed")
		return nil, fmt.Errorf("add item: %w", err)
	}

	s.invalidate(ctx, userID)
	return cart, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID string, bookID uuid.UUID, quantity int) (*domain.Cart, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > domain.MaxItemQuantity {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.repo.UpdateItemQuantity(ctx, userID, bookID, quantity)
	switch {
	case errors.Is(err, repository.ErrCartNotFound):
		return nil, ErrCartNotFound
	case errors.Is(err, repository.ErrItemNotFound):
		return nil, ErrItemNotFound
	case err != nil:
		return nil, fmt.Errorf("update quantity: %w", err)
	}

	s.invalidate(ctx, userID)
	return cart, nil
}

// RemoveItem drops every line for the book. Removing an absent book is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID string, bookID uuid.UUID) (*domain.Cart, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}

	cart, err := s.repo.RemoveItem(ctx, userID, bookID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("remove item: %w", err)
	}

	s.invalidate(ctx, userID)
	return cart, nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	invalidateCart(ctx, s.cache, userID)
}

func invalidateCart(ctx context.Context, c cache.CartCache, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := c.Delete(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("cart cache invalidate failed")
	}
}
