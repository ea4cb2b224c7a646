package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_AddItem(t *testing.T) {
	ctx := context.Background()
	book := newBook(t, "seller-1", "12.50")
	store := newMemStore()
	catalog := newMemCatalog(book)
	cc := newMemCartCache()
	svc := NewCartService(store, catalog, cc)

	t.Run("merges re-added book", func(t *testing.T) {
		_, err := svc.AddItem(ctx, "buyer-1", book.ID, 1)
		require.NoError(t, err)
		cart, err := svc.AddItem(ctx, "buyer-1", book.ID, 2)
		require.NoError(t, err)

		require.Len(t, cart.Items, 1)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.True(t, cart.Total.Equal(usd("37.50")), "total %s", cart.Total)
	})

	t.Run("keeps first captured price", func(t *testing.T) {
		catalog.setPrice(book.ID, usd("99.00"))
		cart, err := svc.AddItem(ctx, "buyer-1", book.ID, 1)
		require.NoError(t, err)

		require.Len(t, cart.Items, 1)
		assert.True(t, cart.Items[0].UnitPrice.Equal(usd("12.50")))
		assert.Equal(t, 4, cart.Items[0].Quantity)
	})

	t.Run("invalidates cache", func(t *testing.T) {
		before := cc.deletes
		_, err := svc.AddItem(ctx, "buyer-1", book.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, before+1, cc.deletes)
	})

	t.Run("rejects quantity out of range", func(t *testing.T) {
		for _, q := range []int{0, -1, domain.MaxItemQuantity + 1} {
			_, err := svc.AddItem(ctx, "buyer-1", book.ID, q)
			assert.ErrorIs(t, err, ErrValidation, "quantity %d", q)
		}
	})

	t.Run("merge past line limit", func(t *testing.T) {
		_, err := svc.AddItem(ctx, "buyer-2", book.ID, domain.MaxItemQuantity)
		require.NoError(t, err)

		_, err = svc.AddItem(ctx, "buyer-2", book.ID, domain.MaxItemQuantity)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		cart, err := svc.GetCart(ctx, "buyer-2")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, domain.MaxItemQuantity, cart.Items[0].Quantity)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := svc.AddItem(ctx, "buyer-1", uuid.New(), 1)
		assert.ErrorIs(t, err, ErrBookNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing identity", func(t *testing.T) {
		_, err := svc.AddItem(ctx, "", book.ID, 1)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestCartService_GetCart(t *testing.T) {
	ctx := context.Background()
	book := newBook(t, "seller-1", "5.00")
	store := newMemStore()
	cc := newMemCartCache()
	svc := NewCartService(store, newMemCatalog(book), cc)

	_, err := svc.GetCart(ctx, "nobody")
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = svc.AddItem(ctx, "buyer-1", book.ID, 2)
	require.NoError(t, err)

	cart, err := svc.GetCart(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	calls := store.getCalls

	// second read is served from cache
	cart, err = svc.GetCart(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, calls, store.getCalls)

	store.getErr = errors.New("db down")
	_, err = svc.GetCart(ctx, "buyer-2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	a := newBook(t, "seller-1", "3.00")
	b := newBook(t, "seller-2", "4.00")
	svc := NewCartService(newMemStore(), newMemCatalog(a, b), newMemCartCache())

	_, err := svc.UpdateQuantity(ctx, "buyer-1", a.ID, 2)
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = svc.AddItem(ctx, "buyer-1", a.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "buyer-1", b.ID, 1)
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(ctx, "buyer-1", a.ID, 5)
	require.NoError(t, err)
	assert.True(t, cart.Total.Equal(usd("19.00")))

	_, err = svc.UpdateQuantity(ctx, "buyer-1", uuid.New(), 1)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.UpdateQuantity(ctx, "buyer-1", a.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	cart, err = svc.RemoveItem(ctx, "buyer-1", a.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, b.ID, cart.Items[0].BookID)

	// removing again is a no-op
	cart, err = svc.RemoveItem(ctx, "buyer-1", a.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}
