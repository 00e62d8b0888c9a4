// Package saga runs the provisioning workflow triggered by approval notices.
//
// Notices are claim checks, so every run reloads the aggregate's stream and
// re-derives what to do from state. That makes duplicate, delayed and
// competing deliveries safe: the MarkProvisioning transition only succeeds
// once out of APPROVED under optimistic concurrency, and ProvisionVM
// re-checks state before any backend call.
package saga

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/internal/core"
	"github.com/vmgatelabs/vmgate/internal/features/command/markprovisioning"
	"github.com/vmgatelabs/vmgate/internal/features/command/provisionvm"
	"github.com/vmgatelabs/vmgate/internal/hypervisor"
	"github.com/vmgatelabs/vmgate/internal/messaging"
	"github.com/vmgatelabs/vmgate/internal/shell"
	"github.com/vmgatelabs/vmgate/internal/tracing"
)

// EventStore is the read slice of the store the saga needs to reload streams.
type EventStore interface {
	Load(ctx context.Context, aggregateID string) (eventstore.StorableEvents, eventstore.StreamVersionInt, error)
}

// ProvisioningStarter moves an approved request into PROVISIONING.
type ProvisioningStarter interface {
	Handle(ctx context.Context, command markprovisioning.Command) (shell.HandlerResult, error)
}

// VMProvisioner creates the VM on the hypervisor and records the outcome.
type VMProvisioner interface {
	Handle(ctx context.Context, command provisionvm.Command) (shell.HandlerResult, error)
}

// Processor consumes approval notices and drives an approved request through
// PROVISIONING to READY or FAILED. Its HandleNotice method satisfies
// messaging.Handler: a nil return completes the notice, an error returns it
// to the queue for redelivery.
type Processor struct {
	eventStore   EventStore
	starter      ProvisioningStarter
	provisioner  VMProvisioner
	retryOptions []shell.RetryOption
}

// Option configures a Processor.
type Option func(*Processor)

// WithRetryOptions tunes the backoff used when command dispatch hits a
// concurrency conflict.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(p *Processor) {
		p.retryOptions = opts
	}
}

// NewProcessor creates a Processor dispatching to the given handlers.
func NewProcessor(
	eventStore EventStore,
	starter ProvisioningStarter,
	provisioner VMProvisioner,
	opts ...Option,
) Processor {
	processor := Processor{
		eventStore:  eventStore,
		starter:     starter,
		provisioner: provisioner,
	}

	for _, opt := range opts {
		opt(&processor)
	}

	return processor
}

// HandleNotice processes one approval notice.
//
// The triggering notice carries ids only, so the stream is reloaded and the
// commands are built fresh from aggregate state on every attempt. Conditions
// that redelivery cannot fix (empty stream, tenant mismatch, a request
// already past the workflow, a permanently failed provisioning run) complete
// the notice; transient ones (store outages, retriable hypervisor errors,
// exhausted conflict retries) return it to the queue.
func (p Processor) HandleNotice(ctx context.Context, notice messaging.Notice) error {
	logger := log.With().
		Str("aggregateId", notice.AggregateID.String()).
		Str("tenantId", notice.TenantID.String()).
		Str("correlationId", notice.CorrelationID.String()).
		Logger()

	if notice.Kind != messaging.NoticeKindRequestApproved {
		logger.Warn().Str("kind", notice.Kind).Msg("Dropping notice of unexpected kind")
		return nil
	}

	// The approval notice may race a replica; read our own writes.
	ctx = eventstore.WithStrongConsistency(ctx)

	request, err := p.loadRequest(ctx, notice.AggregateID.String())
	if err != nil {
		logger.Error().Err(err).Msg("Reloading the stream for an approval notice failed")
		return err
	}

	if !request.Exists() {
		// An approval notice for a stream that never existed means something
		// upstream is broken; redelivery cannot fix it.
		logger.Error().Msg("Approval notice references an empty stream, dropping it")
		return nil
	}

	if request.TenantID != notice.TenantID.String() {
		logger.Error().Msg("Approval notice tenant does not match the stream, dropping it")
		return nil
	}

	actorID, err := uuid.Parse(request.ApprovedBy)
	if err != nil {
		logger.Error().Err(err).Msg("Stream carries no usable approver, dropping the notice")
		return nil
	}

	if err := p.markProvisioning(ctx, notice, actorID); err != nil {
		if errors.Is(err, core.ErrInvalidState) {
			logger.Debug().Msg("Request is already past provisioning, treating the notice as processed")
			return nil
		}

		logger.Error().Err(err).Msg("Marking the request provisioning failed")
		return err
	}

	if err := p.provision(ctx, notice, actorID); err != nil {
		return p.translateProvisionError(logger, err)
	}

	logger.Info().Msg("Provisioning workflow completed")

	return nil
}

// loadRequest reconstitutes the aggregate the notice points at.
func (p Processor) loadRequest(ctx context.Context, aggregateID string) (core.Request, error) {
	storableEvents, _, err := p.eventStore.Load(ctx, aggregateID)
	if err != nil {
		return core.Request{}, err
	}

	history, err := shell.DomainEventsFrom(storableEvents)
	if err != nil {
		return core.Request{}, err
	}

	return core.ProjectRequest(history), nil
}

// markProvisioning dispatches the PROVISIONING transition, reloading and
// retrying on concurrency conflicts. The saga is the one caller allowed to
// retry conflicts: the command is rebuilt per attempt and the handler
// re-derives its decision from the fresh stream.
func (p Processor) markProvisioning(ctx context.Context, notice messaging.Notice, actorID uuid.UUID) error {
	defer tracing.SegmentFromContext(ctx, "saga/markProvisioning")()

	return shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		command, err := markprovisioning.BuildCommand(notice.AggregateID, notice.TenantID, actorID, time.Now())
		if err != nil {
			return err
		}

		_, err = p.starter.Handle(ctx, command.InWorkflow(notice.CorrelationID))

		return err
	}, p.retryOptions...)
}

// provision dispatches the hypervisor call, retrying conflicts like
// markProvisioning does.
func (p Processor) provision(ctx context.Context, notice messaging.Notice, actorID uuid.UUID) error {
	defer tracing.SegmentFromContext(ctx, "saga/provisionVm")()

	return shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		command, err := provisionvm.BuildCommand(notice.AggregateID, notice.TenantID, actorID, time.Now())
		if err != nil {
			return err
		}

		_, err = p.provisioner.Handle(ctx, command.InWorkflow(notice.CorrelationID))

		return err
	}, p.retryOptions...)
}

// translateProvisionError decides whether a provisioning error completes the
// notice or returns it for redelivery.
func (p Processor) translateProvisionError(logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidState):
		logger.Debug().Msg("Request is no longer provisioning, treating the notice as processed")
		return nil

	case hypervisor.IsRetriable(err):
		logger.Warn().Err(err).Msg("Hypervisor reported a retriable failure, leaving the notice for redelivery")
		return err

	case errors.Is(err, eventstore.ErrConcurrencyConflict), errors.Is(err, shell.ErrPersistenceFailed):
		logger.Warn().Err(err).Msg("Provisioning could not commit, leaving the notice for redelivery")
		return err

	default:
		// Permanent failures already appended a ProvisioningFailed event;
		// redelivering the notice would only bounce off the FAILED state.
		logger.Error().Err(err).Msg("Provisioning failed permanently")
		return nil
	}
}
