package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type cartRepository struct {
	pool     *pgxpool.Pool
	currency currency.Unit
}

func NewCartRepository(pool *pgxpool.Pool, cur currency.Unit) CartRepository {
	return &cartRepository{pool: pool, currency: cur}
}

func (r *cartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return loadCart(ctx, r.pool, userID)
}

func (r *cartRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) (*domain.Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is empty")
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Cart, error) {
		_, err := tx.Exec(ctx,
			`INSERT INTO carts (id, user_id, total_currency) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id) DO NOTHING`,
			uuid.New(), userID, r.currency.String())
		if err != nil {
			return nil, fmt.Errorf("ensure cart: %w", err)
		}

		cartID, err := lockCart(ctx, tx, userID)
		if err != nil {
			return nil, err
		}

		addedAt := item.AddedAt
		if addedAt.IsZero() {
			addedAt = time.Now()
		}

		// The first add fixes the unit price for the line. A merge past the
		// line limit touches no row.
		tag, err := tx.Exec(ctx,
			`INSERT INTO cart_items (cart_id, book_id, quantity, unit_amount, unit_currency, added_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (cart_id, book_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			 WHERE cart_items.quantity + EXCLUDED.quantity <= $7`,
			cartID, item.BookID, item.Quantity, item.UnitPrice.Amount, item.UnitPrice.Currency.String(), addedAt,
			domain.MaxItemQuantity)
		if err != nil {
			return nil, fmt.Errorf("insert cart item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrQuantityLimit
		}

		if err := refreshTotal(ctx, tx, cartID); err != nil {
			return nil, err
		}
		return loadCart(ctx, tx, userID)
	})
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, userID string, bookID uuid.UUID, quantity int) (*domain.Cart, error) {
	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Cart, error) {
		cartID, err := lockCart(ctx, tx, userID)
		if err != nil {
			return nil, err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND book_id = $2`,
			cartID, bookID, quantity)
		if err != nil {
			return nil, fmt.Errorf("update cart item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrItemNotFound
		}

		if err := refreshTotal(ctx, tx, cartID); err != nil {
			return nil, err
		}
		return loadCart(ctx, tx, userID)
	})
}

func (r *cartRepository) RemoveItem(ctx context.Context, userID string, bookID uuid.UUID) (*domain.Cart, error) {
	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Cart, error) {
		cartID, err := lockCart(ctx, tx, userID)
		if err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND book_id = $2`, cartID, bookID); err != nil {
			return nil, fmt.Errorf("delete cart item: %w", err)
		}

		if err := refreshTotal(ctx, tx, cartID); err != nil {
			return nil, err
		}
		return loadCart(ctx, tx, userID)
	})
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func lockCart(ctx context.Context, tx pgx.Tx, userID string) (uuid.UUID, error) {
	var cartID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrCartNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lock cart: %w", err)
	}
	return cartID, nil
}

func refreshTotal(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE carts SET
		   total_amount = (SELECT COALESCE(SUM(unit_amount * quantity), 0) FROM cart_items WHERE cart_id = $1),
		   updated_at = NOW()
		 WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("refresh cart total: %w", err)
	}
	return nil
}

func clearCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return refreshTotal(ctx, tx, cartID)
}

func loadCart(ctx context.Context, q querier, userID string) (*domain.Cart, error) {
	query := `SELECT id, user_id, total_amount, total_currency, created_at, updated_at FROM carts WHERE user_id = $1`

	var (
		cart     domain.Cart
		amount   decimal.Decimal
		totalCur string
	)
	err := q.QueryRow(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &amount, &totalCur, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	cur, err := currency.ParseISO(totalCur)
	if err != nil {
		return nil, fmt.Errorf("currency[%s] is not valid: %w", totalCur, err)
	}
	cart.Total = domain.NewMoney(amount, cur)

	rows, err := q.Query(ctx,
		`SELECT book_id, quantity, unit_amount, unit_currency, added_at
		 FROM cart_items WHERE cart_id = $1 ORDER BY position`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = make([]domain.CartItem, 0)
	for rows.Next() {
		var (
			item    domain.CartItem
			unit    decimal.Decimal
			unitCur string
		)
		if err := rows.Scan(&item.BookID, &item.Quantity, &unit, &unitCur, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		parsed, err := currency.ParseISO(unitCur)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", unitCur, err)
		}
		item.UnitPrice = domain.NewMoney(unit, parsed)
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}

	return &cart, nil
}
