package cancelrequest

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/internal/cache"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/projection"
	"github.com/vmgatelabs/vmgate/internal/shell"
	"github.com/vmgatelabs/vmgate/internal/timeline"
)

// EventStore defines the interface needed by the CommandHandler for event store operations.
type EventStore interface {
	Load(ctx context.Context, aggregateID string) (eventstore.StorableEvents, eventstore.StreamVersionInt, error)
	Append(
		ctx context.Context,
		aggregateID string,
		expectedVersion eventstore.StreamVersionInt,
		events ...eventstore.StorableEvent,
	) (eventstore.StreamVersionInt, error)
}

// StatusUpdater is the slice of the projection updater this handler needs.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, tenantID, requestID string, update projection.StatusUpdate) error
}

// ListCache invalidates cached request lists after the read model changed.
type ListCache interface {
	Delete(ctx context.Context, keys ...string) error
}

// CommandHandler withdraws a pending request on behalf of its requester.
// Ownership is enforced here, against the loaded aggregate, because the state
// machine itself carries no authorization rules.
type CommandHandler struct {
	eventStore EventStore
	records    StatusUpdater
	timeline   timeline.Recorder
	listCache  ListCache
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithProjection enables the read model status update after a successful append.
func WithProjection(records StatusUpdater) Option {
	return func(h *CommandHandler) {
		h.records = records
	}
}

// WithTimeline enables timeline recording.
func WithTimeline(recorder timeline.Recorder) Option {
	return func(h *CommandHandler) {
		h.timeline = recorder
	}
}

// WithListCache enables request list cache invalidation.
func WithListCache(listCache ListCache) Option {
	return func(h *CommandHandler) {
		h.listCache = listCache
	}
}

// NewCommandHandler creates a new CommandHandler with the given options.
func NewCommandHandler(eventStore EventStore, opts ...Option) CommandHandler {
	handler := CommandHandler{
		eventStore: eventStore,
		timeline:   timeline.Noop{},
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle cancels a pending VM request.
//
// A request in another tenant is reported as not found, never as forbidden,
// so request ids do not leak across tenants. A non-owner inside the tenant
// gets ForbiddenError before the state machine is consulted.
func (h CommandHandler) Handle(ctx context.Context, command Command) (shell.HandlerResult, error) {
	ctx = eventstore.WithStrongConsistency(ctx)
	aggregateID := command.RequestID.String()

	storableEvents, currentVersion, err := h.eventStore.Load(ctx, aggregateID)
	if err != nil {
		return shell.HandlerResult{}, &shell.PersistenceError{Operation: "load", AggregateID: aggregateID, Err: err}
	}

	history, err := shell.DomainEventsFrom(storableEvents)
	if err != nil {
		return shell.HandlerResult{}, err
	}

	request := core.ProjectRequest(history)

	if !request.Exists() || request.TenantID != command.TenantID.String() {
		return shell.HandlerResult{}, &shell.NotFoundError{RequestID: aggregateID}
	}

	if request.RequesterID != command.ActingUserID.String() {
		return shell.HandlerResult{}, &shell.ForbiddenError{
			RequestID: aggregateID,
			UserID:    command.ActingUserID.String(),
			Action:    "cancel",
		}
	}

	result := Decide(history, command)

	if decideErr := result.HasError(); decideErr != nil {
		return shell.HandlerResult{}, decideErr
	}

	if !result.HasEventToAppend() {
		return shell.IdempotentResult(currentVersion), nil
	}

	metadata := shell.NewCommandMetadata(command.TenantID, command.ActingUserID)

	storableEvent, err := shell.StorableEventFrom(result.Event, metadata)
	if err != nil {
		return shell.HandlerResult{}, err
	}

	newVersion, err := h.eventStore.Append(ctx, aggregateID, currentVersion, storableEvent)
	if err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return shell.HandlerResult{}, err
		}

		return shell.HandlerResult{}, &shell.PersistenceError{Operation: "append", AggregateID: aggregateID, Err: err}
	}

	h.runSideEffects(ctx, command, newVersion, metadata)

	return shell.SuccessResult(1, newVersion), nil
}

// runSideEffects moves the read model to CANCELLED. Failures are logged and
// swallowed: the event is already committed.
func (h CommandHandler) runSideEffects(
	ctx context.Context,
	command Command,
	newVersion eventstore.StreamVersionInt,
	metadata shell.EventMetadata,
) {
	logger := log.With().
		Str("aggregateId", command.RequestID.String()).
		Str("tenantId", command.TenantID.String()).
		Str("correlationId", metadata.CorrelationID).
		Logger()

	if h.records != nil {
		update := projection.StatusUpdate{
			Status:        core.StatusCancelled,
			CancelledBy:   command.ActingUserID.String(),
			StreamVersion: newVersion,
		}
		if err := h.records.UpdateStatus(ctx, command.TenantID.String(), command.RequestID.String(), update); err != nil {
			logger.Error().Err(err).Msg("Projection status update failed")
		}
	}

	if h.listCache != nil {
		if err := h.listCache.Delete(ctx, cache.RequestListCacheKeys(command.TenantID)...); err != nil {
			logger.Error().Err(err).Msg("Request list cache invalidation failed")
		}
	}

	if err := h.timeline.Record(ctx, timeline.Entry{
		RequestID:  command.RequestID.String(),
		TenantID:   command.TenantID.String(),
		Message:    "request cancelled by requester",
		Actor:      command.ActingUserID.String(),
		OccurredAt: command.OccurredAt,
	}); err != nil {
		logger.Error().Err(err).Msg("Timeline record failed")
	}
}
