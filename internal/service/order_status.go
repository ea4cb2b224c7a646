package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/events"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UpdateFulfillment is restricted to the order's seller. Ownership is checked
// before any status validation so other sellers always get ErrNotSeller.
func (s *OrderService) UpdateFulfillment(ctx context.Context, sellerID string, orderID uuid.UUID, status domain.FulfillmentStatus, trackingNumber *string) (*domain.Order, error) {
	if err := requireIdentity(sellerID); err != nil {
		return nil, err
	}
	order, err := s.orders.UpdateOrder(ctx, orderID, func(o *domain.Order, out *repository.Outbox) error {
		if o.SellerID != sellerID {
			return ErrNotSeller
		}
		if !status.Valid() {
			return ErrInvalidStatus
		}
		if !s.policy.CanFulfill(o.FulfillmentStatus, status) {
			return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, o.FulfillmentStatus, status)
		}

		from := o.FulfillmentStatus
		now := s.now()
		o.FulfillmentStatus = status
		if trackingNumber != nil {
			o.TrackingNumber = trackingNumber
		}
		if status == domain.FulfillmentDelivered && o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}

		out.Add(events.TopicFulfillmentChanged, o.ID.String(), events.FulfillmentChanged{
			OrderID:        o.ID,
			SellerID:       o.SellerID,
			BuyerID:        o.BuyerID,
			From:           from.String(),
			To:             status.String(),
			TrackingNumber: o.TrackingNumber,
			OccurredAt:     now,
		})
		return nil
	})
	if err != nil {
		return nil, s.mapUpdateErr(ctx, orderID, err)
	}
	return order, nil
}

// UpdatePayment is restricted to the order's buyer.
func (s *OrderService) UpdatePayment(ctx context.Context, buyerID string, orderID uuid.UUID, status domain.PaymentStatus, paymentReference *string) (*domain.Order, error) {
	if err := requireIdentity(buyerID); err != nil {
		return nil, err
	}
	order, err := s.orders.UpdateOrder(ctx, orderID, func(o *domain.Order, out *repository.Outbox) error {
		if o.BuyerID != buyerID {
			return ErrNotBuyer
		}
		if !status.Valid() {
			return ErrInvalidPaymentStatus
		}
		if !s.policy.CanPay(o.PaymentStatus, status) {
			return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, o.PaymentStatus, status)
		}

		from := o.PaymentStatus
		o.PaymentStatus = status
		if paymentReference != nil {
			o.PaymentReference = paymentReference
		}

		out.Add(events.TopicPaymentChanged, o.ID.String(), events.PaymentChanged{
			OrderID:    o.ID,
			BuyerID:    o.BuyerID,
			From:       from.String(),
			To:         status.String(),
			OccurredAt: s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, s.mapUpdateErr(ctx, orderID, err)
	}
	return order, nil
}

func (s *OrderService) mapUpdateErr(ctx context.Context, orderID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return ErrOrderNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return err
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("order_id", orderID.String()).Msg("order update failed")
		return fmt.Errorf("update order: %w", err)
	}
}
