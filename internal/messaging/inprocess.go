package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const inProcessQueueSize = 256

// InProcessBus is a channel-backed Bus for local development and tests.
// Failed notices are re-enqueued after a short delay, mimicking broker
// redelivery without spinning the consumer loop hot.
type InProcessBus struct {
	notices         chan Notice
	redeliveryDelay time.Duration
}

// NewInProcessBus creates an in-process bus with a buffered queue.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{
		notices:         make(chan Notice, inProcessQueueSize),
		redeliveryDelay: 100 * time.Millisecond,
	}
}

// WithRedeliveryDelay overrides how long a failed notice waits before
// redelivery. Mainly for tests.
func (b *InProcessBus) WithRedeliveryDelay(delay time.Duration) *InProcessBus {
	b.redeliveryDelay = delay
	return b
}

// Publish enqueues one notice. It never blocks: a full queue reports an
// error instead of stalling the publishing command handler.
func (b *InProcessBus) Publish(_ context.Context, notice Notice) error {
	select {
	case b.notices <- notice:
		return nil
	default:
		return fmt.Errorf("in-process bus queue is full, dropping %s notice for %s", notice.Kind, notice.AggregateID)
	}
}

// Subscribe consumes notices until ctx is cancelled.
func (b *InProcessBus) Subscribe(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notice := <-b.notices:
			if err := handler(ctx, notice); err != nil {
				log.Error().
					Err(err).
					Str("kind", notice.Kind).
					Str("aggregateId", notice.AggregateID.String()).
					Msg("Handler failed, scheduling redelivery")

				b.redeliver(ctx, notice)
			}
		}
	}
}

func (b *InProcessBus) redeliver(ctx context.Context, notice Notice) {
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(b.redeliveryDelay):
			select {
			case b.notices <- notice:
			default:
				log.Error().Str("kind", notice.Kind).Msg("In-process bus queue full, dropping redelivery")
			}
		}
	}()
}

// Close implements Bus. The in-process bus holds no external resources.
func (b *InProcessBus) Close(_ context.Context) error { return nil }
