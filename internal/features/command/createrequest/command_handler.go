package createrequest

import (
	"context"
	"errors"
	"net/mail"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/internal/cache"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/notify"
	"github.com/vmgatelabs/vmgate/internal/projection"
	"github.com/vmgatelabs/vmgate/internal/quota"
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

// RecordInserter is the slice of the projection updater this handler needs.
type RecordInserter interface {
	Insert(ctx context.Context, rec projection.RequestRecord) error
}

// ListCache invalidates cached request lists after the read model changed.
type ListCache interface {
	Delete(ctx context.Context, keys ...string) error
}

// CommandHandler opens a request stream: quota check, load, decide, append,
// then best-effort side effects. A concurrency conflict surfaces untouched;
// the caller decides whether to retry.
type CommandHandler struct {
	eventStore EventStore
	quota      quota.Checker
	records    RecordInserter
	notifier   notify.Notifier
	timeline   timeline.Recorder
	listCache  ListCache
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithQuotaChecker replaces the default always-allow checker.
func WithQuotaChecker(checker quota.Checker) Option {
	return func(h *CommandHandler) {
		h.quota = checker
	}
}

// WithProjection enables the read model insert after a successful append.
func WithProjection(records RecordInserter) Option {
	return func(h *CommandHandler) {
		h.records = records
	}
}

// WithNotifier enables the approver notification.
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
		quota:      quota.AllowAll{},
		notifier:   notify.Noop{},
		timeline:   timeline.Noop{},
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle creates a new VM request.
//
// The quota check runs before anything is loaded or constructed, so a tenant
// over its limit never produces an event. Side effects run only after the
// append succeeded and never change the command result.
func (h CommandHandler) Handle(ctx context.Context, command Command) (shell.HandlerResult, error) {
	ctx = eventstore.WithStrongConsistency(ctx)

	if err := h.quota.Check(ctx, command.TenantID, command.Size); err != nil {
		return shell.HandlerResult{}, err
	}

	aggregateID := command.RequestID.String()

	storableEvents, currentVersion, err := h.eventStore.Load(ctx, aggregateID)
	if err != nil {
		return shell.HandlerResult{}, &shell.PersistenceError{Operation: "load", AggregateID: aggregateID, Err: err}
	}

	history, err := shell.DomainEventsFrom(storableEvents)
	if err != nil {
		return shell.HandlerResult{}, err
	}

	result := Decide(history, command)

	if decideErr := result.HasError(); decideErr != nil {
		return shell.HandlerResult{}, decideErr
	}

	if !result.HasEventToAppend() {
		return shell.IdempotentResult(currentVersion), nil
	}

	metadata := shell.NewCommandMetadata(command.TenantID, command.RequesterID)

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

	request := core.ProjectRequest(append(history, result.Event))
	h.runSideEffects(ctx, command, request, newVersion, metadata)

	return shell.SuccessResult(1, newVersion), nil
}

// runSideEffects updates the read model and notifies approvers. Failures are
// logged and swallowed: the event is already committed.
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
		if err := h.records.Insert(ctx, projection.RecordFrom(request, newVersion)); err != nil {
			logger.Error().Err(err).Msg("Projection insert failed")
		}
	}

	if h.listCache != nil {
		if err := h.listCache.Delete(ctx, cache.RequestListCacheKeys(command.TenantID)...); err != nil {
			logger.Error().Err(err).Msg("Request list cache invalidation failed")
		}
	}

	h.sendNotification(ctx, request, logger)

	if err := h.timeline.Record(ctx, timeline.Entry{
		RequestID:  request.RequestID,
		TenantID:   request.TenantID,
		Message:    "request created, awaiting approval",
		Actor:      request.RequesterID,
		OccurredAt: request.CreatedAt,
	}); err != nil {
		logger.Error().Err(err).Msg("Timeline record failed")
	}
}

// sendNotification re-parses the requester email: an address the command
// validation let through but net/mail rejects skips the notification instead
// of failing an already-committed command.
func (h CommandHandler) sendNotification(ctx context.Context, request core.Request, logger zerolog.Logger) {
	address, err := mail.ParseAddress(request.RequesterEmail)
	if err != nil {
		logger.Warn().Err(err).Msg("Requester email not parseable, skipping notification")
		return
	}

	notification := notify.CreatedNotification{
		RequestID:      request.RequestID,
		TenantID:       request.TenantID,
		RequesterEmail: address.Address,
		VMName:         request.VMName,
		Size:           request.Size,
		ProjectID:      request.ProjectID,
	}

	if err := h.notifier.SendCreatedNotification(ctx, notification); err != nil {
		logger.Error().Err(err).Msg("Created notification failed")
	}
}
