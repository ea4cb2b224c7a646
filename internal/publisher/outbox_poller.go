package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/bookswap/internal/events"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/rs/zerolog"
)

const (
	defaultEventTick   = time.Second
	defaultCleanupTick = 10 * time.Minute
	defaultBatchSize   = 100
	defaultRetention   = 7 * 24 * time.Hour
)

// OutboxPoller relays committed outbox rows to the broker. Delivery is at
// least once: a row published but not yet marked is sent again next tick.
type OutboxPoller struct {
	store       repository.OutboxStore
	publisher   events.Publisher
	eventTick   time.Duration
	cleanupTick time.Duration
	batchSize   int
	retention   time.Duration
	now         func() time.Time
}

type Option func(*OutboxPoller)

func WithEventTick(d time.Duration) Option {
	return func(p *OutboxPoller) { p.eventTick = d }
}

func WithCleanupTick(d time.Duration) Option {
	return func(p *OutboxPoller) { p.cleanupTick = d }
}

func WithBatchSize(n int) Option {
	return func(p *OutboxPoller) { p.batchSize = n }
}

// WithRetention sets how long processed rows are kept before the purge.
func WithRetention(d time.Duration) Option {
	return func(p *OutboxPoller) { p.retention = d }
}

func NewOutboxPoller(store repository.OutboxStore, publisher events.Publisher, opts ...Option) *OutboxPoller {
	p := &OutboxPoller{
		store:       store,
		publisher:   publisher,
		eventTick:   defaultEventTick,
		cleanupTick: defaultCleanupTick,
		batchSize:   defaultBatchSize,
		retention:   defaultRetention,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	cleanupTicker := time.NewTicker(p.cleanupTick)
	defer eventTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-cleanupTicker.C:
			p.purgeProcessed(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	log := zerolog.Ctx(ctx)

	pending, err := p.store.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("fetch outbox events failed")
		return 0
	}

	relayed := 0
	for _, event := range pending {
		if err := p.publisher.Publish(ctx, event.EventType, event.AggregateID, json.RawMessage(event.Payload)); err != nil {
			log.Warn().Err(err).Int64("event_id", event.ID).Str("topic", event.EventType).Msg("publish outbox event failed")
			// keep per-key ordering: later rows wait for the next tick
			return relayed
		}
		if err := p.store.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error().Err(err).Int64("event_id", event.ID).Msg("mark outbox event failed")
			return relayed
		}
		relayed++
	}
	if relayed > 0 {
		log.Debug().Int("count", relayed).Msg("outbox events relayed")
	}
	return relayed
}

func (p *OutboxPoller) purgeProcessed(ctx context.Context) {
	removed, err := p.store.DeleteProcessedBefore(ctx, p.now().Add(-p.retention))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("purge outbox failed")
		return
	}
	if removed > 0 {
		zerolog.Ctx(ctx).Info().Int64("removed", removed).Msg("processed outbox events purged")
	}
}
