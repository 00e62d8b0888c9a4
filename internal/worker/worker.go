// Package worker runs the background process: the saga consuming approval
// notices off the bus, and a scheduled reconcile pass that replays streams
// into the projection to heal lost side effects.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vmgatelabs/vmgate/internal/messaging"
	"github.com/vmgatelabs/vmgate/internal/tenant"
	"github.com/vmgatelabs/vmgate/internal/tracing"
)

const defaultReconcileInterval = 5 * time.Minute

// NoticeSource is the consuming slice of the bus.
type NoticeSource interface {
	Subscribe(ctx context.Context, handler messaging.Handler) error
}

// Reconciler replays streams into the projection. Rebuild reports how many
// records it wrote.
type Reconciler interface {
	Rebuild(ctx context.Context) (int, error)
}

// Runner supervises the consumer and the reconciler and stops both when the
// context is cancelled or either fails.
type Runner struct {
	bus               NoticeSource
	handler           messaging.Handler
	reconciler        Reconciler
	reconcileInterval time.Duration
	tracer            *tracing.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithReconciler enables the scheduled reconcile pass.
func WithReconciler(reconciler Reconciler, interval time.Duration) Option {
	return func(r *Runner) {
		r.reconciler = reconciler
		if interval > 0 {
			r.reconcileInterval = interval
		}
	}
}

// WithTracer wraps each notice and reconcile pass in a New Relic transaction.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// NewRunner creates a Runner consuming from bus into handler.
func NewRunner(bus NoticeSource, handler messaging.Handler, opts ...Option) *Runner {
	runner := &Runner{
		bus:               bus,
		handler:           handler,
		reconcileInterval: defaultReconcileInterval,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run blocks until the context is cancelled or a component fails. Plain
// cancellation is a graceful shutdown and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Msg("Starting notice consumer")
		return r.bus.Subscribe(ctx, r.tracedHandler())
	})

	if r.reconciler != nil {
		group.Go(func() error {
			return r.runReconciler(ctx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("Worker shut down")

	return nil
}

// tracedHandler wraps the saga handler in one transaction per notice and
// makes the notice's tenant ambient, so every delivery shows up as a traced
// background task and downstream store logs carry the tenant.
func (r *Runner) tracedHandler() messaging.Handler {
	return func(ctx context.Context, notice messaging.Notice) error {
		txn := r.tracer.StartTransaction("saga/" + notice.Kind)
		defer r.tracer.EndTransaction(txn)

		r.tracer.AddAttribute(txn, "aggregateId", notice.AggregateID.String())
		r.tracer.AddAttribute(txn, "tenantId", notice.TenantID.String())
		ctx = r.tracer.WithContext(ctx, txn)
		ctx = tenant.WithTenant(ctx, tenant.Tenant{ID: notice.TenantID.String()})

		err := r.handler(ctx, notice)
		if err != nil {
			r.tracer.RecordError(txn, err)
		}

		return err
	}
}

// runReconciler schedules the reconcile pass and blocks until shutdown.
func (r *Runner) runReconciler(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.reconcileInterval),
		gocron.NewTask(func() {
			r.reconcileOnce(ctx)
		}),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to schedule the reconcile job")
	}

	log.Info().Dur("interval", r.reconcileInterval).Msg("Starting projection reconciler")
	scheduler.Start()

	<-ctx.Done()

	return scheduler.Shutdown()
}

// reconcileOnce runs one pass. Failures are logged, never fatal: the next
// scheduled pass gets another chance.
func (r *Runner) reconcileOnce(ctx context.Context) {
	txn := r.tracer.StartTransaction("worker/reconcile-projection")
	defer r.tracer.EndTransaction(txn)
	ctx = r.tracer.WithContext(ctx, txn)

	rebuilt, err := r.reconciler.Rebuild(ctx)
	if err != nil {
		r.tracer.RecordError(txn, err)
		log.Error().Err(err).Msg("Projection reconcile pass failed")

		return
	}

	log.Info().Int("records", rebuilt).Msg("Projection reconcile pass completed")
}
