package blob

import (
	"context"
	"io"
	"time"

	"github.com/fjod/bookswap/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

// BreakerGateway guards another Gateway with per-operation circuit breakers.
type BreakerGateway struct {
	next Gateway
	put  *gobreaker.CircuitBreaker[Object]
	del  *gobreaker.CircuitBreaker[struct{}]
	sign *gobreaker.CircuitBreaker[SignedURL]
}

func NewBreakerGateway(next Gateway) *BreakerGateway {
	return &BreakerGateway{
		next: next,
		put:  circuitbreaker.New[Object](circuitbreaker.DefaultConfig("blob-put")),
		del:  circuitbreaker.New[struct{}](circuitbreaker.DefaultConfig("blob-delete")),
		sign: circuitbreaker.New[SignedURL](circuitbreaker.DefaultConfig("blob-sign")),
	}
}

func (b *BreakerGateway) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error) {
	return b.put.Execute(func() (Object, error) {
		return b.next.Put(ctx, key, r, size, contentType)
	})
}

func (b *BreakerGateway) Delete(ctx context.Context, key string) error {
	_, err := b.del.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, key)
	})
	return err
}

func (b *BreakerGateway) SignedURL(ctx context.Context, key string, expiry time.Duration) (SignedURL, error) {
	return b.sign.Execute(func() (SignedURL, error) {
		return b.next.SignedURL(ctx, key, expiry)
	})
}
