package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, topic, key string, _ any) error {
	zerolog.Ctx(ctx).Debug().Str("topic", topic).Str("key", key).Msg("event not published, no broker configured")
	return nil
}

func (LogPublisher) Close() error { return nil }
