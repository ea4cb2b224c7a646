package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/bookswap/internal/cache"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/events"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// OrderService records domain events in the order transaction's outbox. A
// separate relay delivers them to the broker.
type OrderService struct {
	orders   repository.OrderRepository
	catalog  repository.CatalogRepository
	cache    cache.CartCache
	policy   domain.TransitionPolicy
	currency currency.Unit
	now      func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	catalog repository.CatalogRepository,
	cartCache cache.CartCache,
	policy domain.TransitionPolicy,
	cur currency.Unit,
) *OrderService {
	if policy == nil {
		policy = domain.PermissiveTransitions{}
	}
	return &OrderService{
		orders:   orders,
		catalog:  catalog,
		cache:    cartCache,
		policy:   policy,
		currency: cur,
		now:      time.Now,
	}
}

type PlaceOrderInput struct {
	ShippingAddress domain.Address
	// TotalAmountClaim is the client's view of the grand total. It is stored
	// for reference and never used to price orders.
	TotalAmountClaim *decimal.Decimal
	PaymentReference *string
}

type PlaceOrderResult struct {
	Orders []*domain.Order
	Count  int
}

// CreateOrdersFromCart turns the buyer's cart into one order per seller and
// clears the cart. Either every order is stored and the cart is emptied, or
// nothing changes.
func (s *OrderService) CreateOrdersFromCart(ctx context.Context, buyerID string, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := requireIdentity(buyerID); err != nil {
		return nil, err
	}
	if !in.ShippingAddress.Complete() {
		return nil, ErrIncompleteAddress
	}

	checkoutID := uuid.New()
	var grand domain.Money
	orders, err := s.orders.PlaceOrders(ctx, buyerID, func(ctx context.Context, cart *domain.Cart, out *repository.Outbox) ([]*domain.Order, error) {
		if cart.IsEmpty() {
			return nil, ErrEmptyCart
		}

		ids := make([]uuid.UUID, 0, len(cart.Items))
		for _, item := range cart.Items {
			ids = append(ids, item.BookID)
		}
		books, err := s.catalog.GetBooks(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve books: %w", err)
		}

		orders, err := s.split(cart, books, in, checkoutID)
		if err != nil {
			return nil, err
		}

		if grand, err = cart.ComputeTotal(s.currency); err != nil {
			return nil, fmt.Errorf("checkout total: %w", err)
		}
		out.Add(events.TopicOrdersPlaced, checkoutID.String(), s.placedEvent(checkoutID, buyerID, orders, grand))
		return orders, nil
	})
	switch {
	case errors.Is(err, repository.ErrCartNotFound):
		return nil, ErrEmptyCart
	case err != nil && (errors.Is(err, ErrValidation) || errors.Is(err, ErrUnauthenticated)):
		return nil, err
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Str("buyer_id", buyerID).Msg("place orders failed")
		return nil, fmt.Errorf("place orders: %w", err)
	}

	invalidateCart(ctx, s.cache, buyerID)

	if in.TotalAmountClaim != nil && !in.TotalAmountClaim.Equal(grand.Amount) {
		zerolog.Ctx(ctx).Warn().
			Str("checkout_id", checkoutID.String()).
			Str("claimed", in.TotalAmountClaim.String()).
			Str("computed", grand.Amount.String()).
			Msg("client total differs from computed total")
	}

	zerolog.Ctx(ctx).Info().
		Str("checkout_id", checkoutID.String()).
		Int("orders", len(orders)).
		Msg("orders placed")

	return &PlaceOrderResult{Orders: orders, Count: len(orders)}, nil
}

// split partitions items by seller in order of first appearance. Prices come
// from the cart lines, titles from the catalog.
func (s *OrderService) split(cart *domain.Cart, books map[uuid.UUID]*domain.Book, in PlaceOrderInput, checkoutID uuid.UUID) ([]*domain.Order, error) {
	now := s.now()

	var claimed *domain.Money
	if in.TotalAmountClaim != nil {
		m := domain.NewMoney(*in.TotalAmountClaim, s.currency)
		claimed = &m
	}

	bySeller := make(map[string]*domain.Order)
	orders := make([]*domain.Order, 0)
	for _, item := range cart.Items {
		book, ok := books[item.BookID]
		if !ok {
			return nil, fmt.Errorf("%w: book %s is no longer listed", ErrValidation, item.BookID)
		}

		order, ok := bySeller[book.SellerID]
		if !ok {
			order = &domain.Order{
				ID:                uuid.New(),
				CheckoutID:        checkoutID,
				BuyerID:           cart.UserID,
				SellerID:          book.SellerID,
				Items:             make([]domain.OrderLineItem, 0, 1),
				TotalAmount:       domain.ZeroMoney(s.currency),
				ClaimedTotal:      claimed,
				ShippingAddress:   in.ShippingAddress,
				FulfillmentStatus: domain.FulfillmentPending,
				PaymentStatus:     domain.PaymentPending,
				PaymentReference:  in.PaymentReference,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			bySeller[book.SellerID] = order
			orders = append(orders, order)
		}

		line := domain.OrderLineItem{
			BookID:       item.BookID,
			Title:        book.Title,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			LineSubtotal: item.Subtotal(),
		}
		total, err := order.TotalAmount.Add(line.LineSubtotal)
		if err != nil {
			return nil, fmt.Errorf("order total: %w", err)
		}
		order.Items = append(order.Items, line)
		order.TotalAmount = total
	}

	return orders, nil
}

func (s *OrderService) placedEvent(checkoutID uuid.UUID, buyerID string, orders []*domain.Order, grand domain.Money) events.OrdersPlaced {
	event := events.OrdersPlaced{
		CheckoutID: checkoutID,
		BuyerID:    buyerID,
		Total:      grand.Amount.StringFixed(2),
		Currency:   grand.Currency.String(),
		OccurredAt: s.now(),
	}
	for _, o := range orders {
		event.OrderIDs = append(event.OrderIDs, o.ID)
		event.SellerIDs = append(event.SellerIDs, o.SellerID)
	}
	return event
}

// GetOrder is visible to the order's buyer and seller only.
func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.BuyerID != userID && order.SellerID != userID {
		return nil, ErrNotOrderParty
	}
	return order, nil
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	if err := requireIdentity(buyerID); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list buyer orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	if err := requireIdentity(sellerID); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller orders: %w", err)
	}
	return orders, nil
}
