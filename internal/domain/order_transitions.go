package domain

// TransitionPolicy decides whether a status move is allowed.
type TransitionPolicy interface {
	CanFulfill(from, to FulfillmentStatus) bool
	CanPay(from, to PaymentStatus) bool
}

// PermissiveTransitions accepts any enumerated target from any state.
type PermissiveTransitions struct{}

func (PermissiveTransitions) CanFulfill(_, to FulfillmentStatus) bool { return to.Valid() }

func (PermissiveTransitions) CanPay(_, to PaymentStatus) bool { return to.Valid() }

// Cancelled and returned are reachable from every state before delivered.
// Delivered is final.
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:   {FulfillmentConfirmed, FulfillmentShipped, FulfillmentCancelled, FulfillmentReturned},
	FulfillmentConfirmed: {FulfillmentShipped, FulfillmentCancelled, FulfillmentReturned},
	FulfillmentShipped:   {FulfillmentDelivered, FulfillmentCancelled, FulfillmentReturned},
	FulfillmentDelivered: {},
	FulfillmentCancelled: {},
	FulfillmentReturned:  {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentFailed:    {PaymentPending, PaymentCompleted},
	PaymentCompleted: {},
}

// StrictTransitions follows the forward lifecycle. Re-applying the current
// status is allowed so tracking numbers can be updated in place.
type StrictTransitions struct{}

func (StrictTransitions) CanFulfill(from, to FulfillmentStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (StrictTransitions) CanPay(from, to PaymentStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
