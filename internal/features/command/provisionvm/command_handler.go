package provisionvm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/internal/cache"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/hypervisor"
	"github.com/vmgatelabs/vmgate/internal/hypervisor/mapping"
	"github.com/vmgatelabs/vmgate/internal/projection"
	"github.com/vmgatelabs/vmgate/internal/shell"
	"github.com/vmgatelabs/vmgate/internal/timeline"
	"github.com/vmgatelabs/vmgate/internal/tracing"
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

// SpecTranslator resolves the tenant's resource mapping into a backend-native
// VM spec. *mapping.Translator implements it.
type SpecTranslator interface {
	Translate(ctx context.Context, tenantID string, req mapping.TranslationRequest) (hypervisor.VMSpec, error)
}

// VMCreator is the one backend operation this handler performs.
type VMCreator interface {
	CreateVM(ctx context.Context, spec hypervisor.VMSpec) (*hypervisor.ProvisioningResult, error)
}

// RecordUpdater is the slice of the projection updater this handler needs:
// VM coordinates on success, failure details otherwise.
type RecordUpdater interface {
	UpdateStatus(ctx context.Context, tenantID, requestID string, update projection.StatusUpdate) error
	UpdateVMDetails(ctx context.Context, tenantID, requestID string, details projection.VMDetails) error
}

// ListCache invalidates cached request lists after the read model changed.
type ListCache interface {
	Delete(ctx context.Context, keys ...string) error
}

// CommandHandler performs the backend provisioning for a request already in
// PROVISIONING. It distinguishes three outcomes: success (VMProvisioned),
// permanent failure (ProvisioningFailed recorded), and retriable failure
// (nothing recorded, the stream stays PROVISIONING and the error travels back
// to the caller, who owns the retry policy).
type CommandHandler struct {
	eventStore EventStore
	translator SpecTranslator
	backend    VMCreator
	records    RecordUpdater
	timeline   timeline.Recorder
	listCache  ListCache
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithProjection enables read model updates after a successful append.
func WithProjection(records RecordUpdater) Option {
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

// NewCommandHandler creates a new CommandHandler. Translator and backend are
// not optional: without them there is nothing to provision with.
func NewCommandHandler(eventStore EventStore, translator SpecTranslator, backend VMCreator, opts ...Option) CommandHandler {
	handler := CommandHandler{
		eventStore: eventStore,
		translator: translator,
		backend:    backend,
		timeline:   timeline.Noop{},
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle provisions the VM for a request in PROVISIONING.
//
// When provisioning fails permanently, the ProvisioningFailed event is
// appended first and the causing error is returned alongside the append
// result, so callers see both the recorded outcome and the reason. A
// retriable backend error appends nothing and surfaces as-is;
// hypervisor.IsRetriable tells the caller whether another attempt makes
// sense.
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

	// The state gate runs before any backend call so a cancelled or failed
	// request never reaches the hypervisor.
	switch request.Status {
	case core.StatusReady:
		return shell.IdempotentResult(currentVersion), nil
	case core.StatusProvisioning:
		// proceed
	default:
		return shell.HandlerResult{}, &core.InvalidStateError{
			RequestID:    aggregateID,
			CurrentState: request.Status,
			Attempted:    "provision",
		}
	}

	spec, err := h.translator.Translate(ctx, request.TenantID, mapping.TranslationRequest{
		VMName:      request.VMName,
		Size:        request.Size,
		Description: request.Justification,
	})
	if err != nil {
		if errors.Is(err, mapping.ErrMappingNotFound) {
			// An unresolvable mapping will not fix itself by retrying.
			return h.recordFailure(ctx, command, history, currentVersion, err)
		}

		// Anything else is a mapping store outage or a corrupt record;
		// surface it as a persistence failure so the command is retried.
		return shell.HandlerResult{}, &shell.PersistenceError{Operation: "translate", AggregateID: aggregateID, Err: err}
	}

	endSegment := tracing.SegmentFromContext(ctx, "hypervisor/createVm")
	outcome, err := h.backend.CreateVM(ctx, spec)
	endSegment()

	if err != nil {
		if hypervisor.IsRetriable(err) {
			return shell.HandlerResult{}, err
		}

		return h.recordFailure(ctx, command, history, currentVersion, err)
	}

	result := DecideProvisioned(history, command, *outcome)

	if decideErr := result.HasError(); decideErr != nil {
		return shell.HandlerResult{}, decideErr
	}

	if !result.HasEventToAppend() {
		return shell.IdempotentResult(currentVersion), nil
	}

	metadata := shell.WorkflowCommandMetadata(command.WorkflowID, command.TenantID, command.InitiatedBy)

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

	h.runSuccessSideEffects(ctx, command, *outcome, newVersion, metadata)

	return shell.SuccessResult(1, newVersion), nil
}

// recordFailure appends ProvisioningFailed for a permanent failure and
// returns the causing error together with the append result.
func (h CommandHandler) recordFailure(
	ctx context.Context,
	command Command,
	history core.DomainEvents,
	currentVersion eventstore.StreamVersionInt,
	cause error,
) (shell.HandlerResult, error) {
	aggregateID := command.RequestID.String()

	result := DecideFailed(history, command, cause.Error(), hypervisor.IsRetriable(cause))

	if decideErr := result.HasError(); decideErr != nil {
		return shell.HandlerResult{}, decideErr
	}

	if !result.HasEventToAppend() {
		return shell.IdempotentResult(currentVersion), cause
	}

	failureEvent, ok := result.Event.(core.ProvisioningFailed)
	if !ok {
		return shell.HandlerResult{}, errors.New("decide failed produced an unexpected event type")
	}

	metadata := shell.WorkflowCommandMetadata(command.WorkflowID, command.TenantID, command.InitiatedBy)

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

	h.runFailureSideEffects(ctx, command, failureEvent, newVersion, metadata)

	return shell.SuccessResult(1, newVersion), cause
}

// runSuccessSideEffects stores the VM coordinates on the read model. Failures
// are logged and swallowed: the event is already committed.
func (h CommandHandler) runSuccessSideEffects(
	ctx context.Context,
	command Command,
	outcome hypervisor.ProvisioningResult,
	newVersion eventstore.StreamVersionInt,
	metadata shell.EventMetadata,
) {
	logger := log.With().
		Str("aggregateId", command.RequestID.String()).
		Str("tenantId", command.TenantID.String()).
		Str("correlationId", metadata.CorrelationID).
		Logger()

	if h.records != nil {
		details := projection.VMDetails{
			HypervisorRef: outcome.HypervisorRef,
			IPAddress:     outcome.IPAddress,
			Hostname:      outcome.Hostname,
			Warning:       outcome.Warning,
			StreamVersion: newVersion,
		}
		if err := h.records.UpdateVMDetails(ctx, command.TenantID.String(), command.RequestID.String(), details); err != nil {
			logger.Error().Err(err).Msg("Projection vm details update failed")
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
		Message:    "vm provisioned at " + outcome.HypervisorRef,
		Actor:      command.InitiatedBy.String(),
		OccurredAt: command.OccurredAt,
	}); err != nil {
		logger.Error().Err(err).Msg("Timeline record failed")
	}
}

// runFailureSideEffects moves the read model to FAILED. Failures are logged
// and swallowed: the event is already committed.
func (h CommandHandler) runFailureSideEffects(
	ctx context.Context,
	command Command,
	failureEvent core.ProvisioningFailed,
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
			Status:        core.StatusFailed,
			FailureReason: failureEvent.Reason,
			RetryCount:    failureEvent.RetryCount,
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
		Message:    "provisioning failed: " + failureEvent.Reason,
		Actor:      command.InitiatedBy.String(),
		OccurredAt: command.OccurredAt,
	}); err != nil {
		logger.Error().Err(err).Msg("Timeline record failed")
	}
}
