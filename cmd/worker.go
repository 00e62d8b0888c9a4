package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vmgatelabs/vmgate/internal/app"
	"github.com/vmgatelabs/vmgate/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that consumes approval notices, provisions
the requested VMs on the configured backend, and periodically reconciles the
request list projection.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	runner := worker.NewRunner(
		application.Bus,
		application.Saga.HandleNotice,
		worker.WithReconciler(application.Rebuilder, cfg.Worker.ReconcileInterval),
		worker.WithTracer(application.Tracer),
	)

	log.Info().
		Str("backend", cfg.Hypervisor.Backend).
		Dur("reconcileInterval", cfg.Worker.ReconcileInterval).
		Msg("Starting worker")

	return runner.Run(ctx)
}
