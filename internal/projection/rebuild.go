package projection

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/shell"
)

// Streams is the slice of the event store contract the rebuilder needs.
type Streams interface {
	Load(ctx context.Context, aggregateID string) (eventstore.StorableEvents, eventstore.StreamVersionInt, error)
	AggregateIDs(ctx context.Context) ([]string, error)
}

// RecordWriter is the slice of the updater the rebuilder needs.
type RecordWriter interface {
	Insert(ctx context.Context, rec RequestRecord) error
}

// Rebuilder replays every stream through the aggregate fold and upserts the
// resulting records. It never deletes rows and is safe to re-run at any
// time: the worker schedules it as the reconcile pass that heals lost
// side effects, and the rebuild command runs it once.
type Rebuilder struct {
	store   Streams
	records RecordWriter
}

// NewRebuilder creates a rebuilder reading from store and writing through records.
func NewRebuilder(store Streams, records RecordWriter) *Rebuilder {
	return &Rebuilder{
		store:   store,
		records: records,
	}
}

// Rebuild replays all streams and reports how many records were written.
// A single broken stream is logged and skipped so one poisoned aggregate
// cannot stall reconciliation; only stream enumeration failures abort.
func (r *Rebuilder) Rebuild(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Replica reads are fine here: anything the replica has not seen yet
	// will be healed by the next pass.
	ctx = eventstore.WithEventualConsistency(ctx)

	aggregateIDs, err := r.store.AggregateIDs(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to enumerate streams")
	}

	rebuilt := 0

	for _, aggregateID := range aggregateIDs {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}

		if err := r.rebuildOne(ctx, aggregateID); err != nil {
			log.Error().Err(err).Str("aggregateId", aggregateID).Msg("Rebuild failed for stream")
			continue
		}

		rebuilt++
	}

	return rebuilt, nil
}

func (r *Rebuilder) rebuildOne(ctx context.Context, aggregateID string) error {
	storableEvents, streamVersion, err := r.store.Load(ctx, aggregateID)
	if err != nil {
		return errors.Wrap(err, "failed to load stream")
	}

	domainEvents, err := shell.DomainEventsFrom(storableEvents)
	if err != nil {
		return errors.Wrap(err, "failed to map stream events")
	}

	request := core.ProjectRequest(domainEvents)
	if !request.Exists() {
		return nil
	}

	return r.records.Insert(ctx, RecordFrom(request, streamVersion))
}
