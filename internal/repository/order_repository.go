package repository

import (
	"context"
	"encoding/json"
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

type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, checkout_id, buyer_id, seller_id, total_amount, currency, claimed_amount, claimed_currency,
	shipping_address, fulfillment_status, payment_status, payment_reference, tracking_number,
	created_at, updated_at, delivered_at`

func (r *orderRepository) PlaceOrders(ctx context.Context, buyerID string, split SplitFunc) ([]*domain.Order, error) {
	return withTx(ctx, r.pool, func(tx pgx.Tx) ([]*domain.Order, error) {
		cartID, err := lockCart(ctx, tx, buyerID)
		if err != nil {
			return nil, err
		}

		cart, err := loadCart(ctx, tx, buyerID)
		if err != nil {
			return nil, err
		}

		out := &Outbox{}
		orders, err := split(ctx, cart, out)
		if err != nil {
			return nil, err
		}

		for _, order := range orders {
			if err := insertOrder(ctx, tx, order); err != nil {
				return nil, err
			}
		}

		if err := clearCart(ctx, tx, cartID); err != nil {
			return nil, err
		}

		if err := writeOutbox(ctx, tx, out); err != nil {
			return nil, err
		}
		return orders, nil
	})
}

func insertOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	var claimedAmount *decimal.Decimal
	var claimedCurrency *string
	if order.ClaimedTotal != nil {
		amount := order.ClaimedTotal.Amount
		cur := order.ClaimedTotal.Currency.String()
		claimedAmount, claimedCurrency = &amount, &cur
	}

	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		order.ID, order.CheckoutID, order.BuyerID, order.SellerID,
		order.TotalAmount.Amount, order.TotalAmount.Currency.String(),
		claimedAmount, claimedCurrency, address,
		string(order.FulfillmentStatus), string(order.PaymentStatus),
		order.PaymentReference, order.TrackingNumber,
		order.CreatedAt, order.UpdatedAt, order.DeliveredAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(
			`INSERT INTO order_items (order_id, position, book_id, title, quantity, unit_amount, line_amount, currency)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			order.ID, i, item.BookID, item.Title, item.Quantity,
			item.UnitPrice.Amount, item.LineSubtotal.Amount, item.UnitPrice.Currency.String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	return nil
}

func (r *orderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

func (r *orderRepository) UpdateOrder(ctx context.Context, id uuid.UUID, mutate OrderMutation) (*domain.Order, error) {
	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Order, error) {
		order, err := getOrder(ctx, tx, id, true)
		if err != nil {
			return nil, err
		}

		out := &Outbox{}
		if err := mutate(order, out); err != nil {
			return nil, err
		}
		order.UpdatedAt = time.Now()

		_, err = tx.Exec(ctx,
			`UPDATE orders SET fulfillment_status = $2, payment_status = $3, payment_reference = $4,
			   tracking_number = $5, delivered_at = $6, updated_at = $7
			 WHERE id = $1`,
			order.ID, string(order.FulfillmentStatus), string(order.PaymentStatus),
			order.PaymentReference, order.TrackingNumber, order.DeliveredAt, order.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}

		if err := writeOutbox(ctx, tx, out); err != nil {
			return nil, err
		}
		return order, nil
	})
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return listOrders(ctx, r.pool, `buyer_id = $1`, buyerID)
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	return listOrders(ctx, r.pool, `seller_id = $1`, sellerID)
}

func (r *orderRepository) FindCompletedPurchase(ctx context.Context, buyerID string, bookID uuid.UUID) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT o.id FROM orders o
		 JOIN order_items i ON i.order_id = o.id
		 WHERE o.buyer_id = $1 AND o.payment_status = 'completed' AND i.book_id = $2
		 ORDER BY o.created_at DESC LIMIT 1`, buyerID, bookID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrPurchaseNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query purchase: %w", err)
	}
	return orderID, nil
}

func getOrder(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := loadOrderItems(ctx, q, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func listOrders(ctx context.Context, q querier, where string, arg any) ([]*domain.Order, error) {
	rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadOrderItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order           domain.Order
		total           decimal.Decimal
		cur             string
		claimedAmount   *decimal.Decimal
		claimedCurrency *string
		address         []byte
		fulfillment     string
		payment         string
	)
	err := row.Scan(
		&order.ID, &order.CheckoutID, &order.BuyerID, &order.SellerID,
		&total, &cur, &claimedAmount, &claimedCurrency, &address,
		&fulfillment, &payment, &order.PaymentReference, &order.TrackingNumber,
		&order.CreatedAt, &order.UpdatedAt, &order.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}

	unit, err := currency.ParseISO(cur)
	if err != nil {
		return nil, fmt.Errorf("currency[%s] is not valid: %w", cur, err)
	}
	order.TotalAmount = domain.NewMoney(total, unit)

	if claimedAmount != nil && claimedCurrency != nil {
		claimedUnit, err := currency.ParseISO(*claimedCurrency)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", *claimedCurrency, err)
		}
		claimed := domain.NewMoney(*claimedAmount, claimedUnit)
		order.ClaimedTotal = &claimed
	}

	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	order.FulfillmentStatus = domain.FulfillmentStatus(fulfillment)
	order.PaymentStatus = domain.PaymentStatus(payment)

	return &order, nil
}

func loadOrderItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderLineItem, error) {
	rows, err := q.Query(ctx,
		`SELECT order_id, book_id, title, quantity, unit_amount, line_amount, currency
		 FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]domain.OrderLineItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID uuid.UUID
			item    domain.OrderLineItem
			unit    decimal.Decimal
			line    decimal.Decimal
			cur     string
		)
		if err := rows.Scan(&orderID, &item.BookID, &item.Title, &item.Quantity, &unit, &line, &cur); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		parsed, err := currency.ParseISO(cur)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", cur, err)
		}
		item.UnitPrice = domain.NewMoney(unit, parsed)
		item.LineSubtotal = domain.NewMoney(line, parsed)
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}
