package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream failure")
)

var (
	ErrEmptyCart            = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrInvalidQuantity      = fmt.Errorf("%w: quantity must be between 1 and 99", ErrValidation)
	ErrIncompleteAddress    = fmt.Errorf("%w: shipping address requires street, city, zip and country", ErrValidation)
	ErrInvalidStatus        = fmt.Errorf("%w: unknown fulfillment status", ErrValidation)
	ErrInvalidPaymentStatus = fmt.Errorf("%w: unknown payment status", ErrValidation)
	ErrInvalidRating        = fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	ErrEmptyTitle           = fmt.Errorf("%w: title is required", ErrValidation)
	ErrEmptyFile            = fmt.Errorf("%w: file is empty", ErrValidation)
	ErrNotAnImage           = fmt.Errorf("%w: cover must be an image", ErrValidation)
	ErrInvalidPrice         = fmt.Errorf("%w: price must be positive", ErrValidation)

	ErrMissingIdentity = fmt.Errorf("%w: missing user identity", ErrUnauthenticated)

	ErrNotSeller       = fmt.Errorf("%w: only the seller can update fulfillment", ErrForbidden)
	ErrNotBuyer        = fmt.Errorf("%w: only the buyer can update payment", ErrForbidden)
	ErrNotOrderParty   = fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	ErrNotPurchased    = fmt.Errorf("%w: not purchased or payment incomplete", ErrForbidden)
	ErrNotBookOwner    = fmt.Errorf("%w: only the seller can change this book", ErrForbidden)
	ErrNotReviewAuthor = fmt.Errorf("%w: only the author can change this review", ErrForbidden)
	ErrOwnReview       = fmt.Errorf("%w: cannot mark your own review helpful", ErrForbidden)

	ErrCartNotFound   = fmt.Errorf("%w: cart", ErrNotFound)
	ErrItemNotFound   = fmt.Errorf("%w: item not in cart", ErrNotFound)
	ErrBookNotFound   = fmt.Errorf("%w: book", ErrNotFound)
	ErrOrderNotFound  = fmt.Errorf("%w: order", ErrNotFound)
	ErrReviewNotFound = fmt.Errorf("%w: review", ErrNotFound)
	ErrNoDigitalFile  = fmt.Errorf("%w: book has no digital file", ErrNotFound)
	ErrNoCover        = fmt.Errorf("%w: book has no cover image", ErrNotFound)
	ErrUnknownToken   = fmt.Errorf("%w: download token unknown or expired", ErrNotFound)

	ErrDuplicateReview   = fmt.Errorf("%w: you already reviewed this book", ErrConflict)
	ErrIllegalTransition = fmt.Errorf("%w: illegal status transition", ErrConflict)
)

func requireIdentity(userID string) error {
	if userID == "" {
		return ErrMissingIdentity
	}
	return nil
}
