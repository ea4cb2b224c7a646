package http

import (
	"context"
	"net/http"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderService interface {
	CreateOrdersFromCart(ctx context.Context, buyerID string, in service.PlaceOrderInput) (*service.PlaceOrderResult, error)
	GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID string) ([]*domain.Order, error)
	ListSellerOrders(ctx context.Context, sellerID string) ([]*domain.Order, error)
	UpdateFulfillment(ctx context.Context, sellerID string, orderID uuid.UUID, status domain.FulfillmentStatus, trackingNumber *string) (*domain.Order, error)
	UpdatePayment(ctx context.Context, buyerID string, orderID uuid.UUID, status domain.PaymentStatus, paymentReference *string) (*domain.Order, error)
}

type OrdersHandler struct {
	base
	orders OrderService
}

func NewOrdersHandler(orders OrderService, opts Options) *OrdersHandler {
	return &OrdersHandler{base: newBase(opts), orders: orders}
}

type CreateOrdersRequestDTO struct {
	ShippingAddress domain.Address   `json:"shipping_address"`
	TotalAmount     *decimal.Decimal `json:"total_amount,omitempty"`
	PaymentIntentID *string          `json:"payment_intent_id,omitempty"`
}

type CreateOrdersResponseDTO struct {
	Orders     []*domain.Order `json:"orders"`
	OrderCount int             `json:"order_count"`
}

type UpdateStatusRequestDTO struct {
	Status         domain.FulfillmentStatus `json:"status"`
	TrackingNumber *string                  `json:"tracking_number,omitempty"`
}

type UpdatePaymentRequestDTO struct {
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
	PaymentIntentID *string              `json:"payment_intent_id,omitempty"`
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req CreateOrdersRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.orders.CreateOrdersFromCart(ctx, userID, service.PlaceOrderInput{
		ShippingAddress:  req.ShippingAddress,
		TotalAmountClaim: req.TotalAmount,
		PaymentReference: req.PaymentIntentID,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, CreateOrdersResponseDTO{Orders: res.Orders, OrderCount: res.Count})
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.orders.ListBuyerOrders)
}

// GET /api/v1/orders/selling
func (h *OrdersHandler) ListSellingOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.orders.ListSellerOrders)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) ([]*domain.Order, error)) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	orders, err := fetch(ctx, userID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if orders == nil {
		orders = make([]*domain.Order, 0)
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateFulfillment(ctx, userID, orderID, req.Status, req.TrackingNumber)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/orders/{order_id}/payment
func (h *OrdersHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}
	var req UpdatePaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdatePayment(ctx, userID, orderID, req.PaymentStatus, req.PaymentIntentID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
