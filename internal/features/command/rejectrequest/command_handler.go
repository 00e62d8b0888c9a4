package rejectrequest

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/internal/cache"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/notify"
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

// CommandHandler declines a pending request, recording who rejected it and why.
type CommandHandler struct {
	eventStore EventStore
	records    StatusUpdater
	notifier   notify.Notifier
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

// WithNotifier enables the requester notification.
func WithNotifier(notifier notify.Notifier) Option {
	return func(h *CommandHandler) {
		h.notifier = notifier
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
		notifier:   notify.Noop{},
		timeline:   timeline.Noop{},
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle rejects a pending VM request.
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

	result := Decide(history, command)

	if decideErr := result.HasError(); decideErr != nil {
		return shell.HandlerResult{}, decideErr
	}

	if !result.HasEventToAppend() {
		return shell.IdempotentResult(currentVersion), nil
	}

	metadata := shell.NewCommandMetadata(command.TenantID, command.RejectedBy)

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

	request = core.ProjectRequest(append(history, result.Event))
	h.runSideEffects(ctx, command, request, newVersion, metadata)

	return shell.SuccessResult(1, newVersion), nil
}

// runSideEffects moves the read model to REJECTED and notifies the requester.
// Failures are logged and swallowed: the event is already committed.
func (h CommandHandler) runSideEffects(
	ctx context.Context,
	command Command,
	request core.Request,
	newVersion eventstore.StreamVersionInt,
	metadata shell.EventMetadata,
) {
	logger := log.With().
		Str("aggregateId", request.RequestID).
		Str("tenantId", request.TenantID).
		Str("correlationId", metadata.CorrelationID).
		Logger()

	if h.records != nil {
		update := projection.StatusUpdate{
			Status:          core.StatusRejected,
			RejectedBy:      command.RejectedBy.String(),
			RejectionReason: command.Reason,
			StreamVersion:   newVersion,
		}
		if err := h.records.UpdateStatus(ctx, request.TenantID, request.RequestID, update); err != nil {
			logger.Error().Err(err).Msg("Projection status update failed")
		}
	}

	if h.listCache != nil {
		if err := h.listCache.Delete(ctx, cache.RequestListCacheKeys(command.TenantID)...); err != nil {
			logger.Error().Err(err).Msg("Request list cache invalidation failed")
		}
	}

	notification := notify.RejectedNotification{
		RequestID:      request.RequestID,
		TenantID:       request.TenantID,
		RequesterEmail: request.RequesterEmail,
		VMName:         request.VMName,
		RejectedBy:     command.RejectedBy.String(),
		Reason:         command.Reason,
	}
	if err := h.notifier.SendRejectedNotification(ctx, notification); err != nil {
		logger.Error().Err(err).Msg("Rejected notification failed")
	}

	if err := h.timeline.Record(ctx, timeline.Entry{
		RequestID:  request.RequestID,
		TenantID:   request.TenantID,
		Message:    "request rejected: " + command.Reason,
		Actor:      command.RejectedBy.String(),
		OccurredAt: command.OccurredAt,
	}); err != nil {
		logger.Error().Err(err).Msg("Timeline record failed")
	}
}
