package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vmgatelabs/vmgate/internal/app"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the request list projection",
	Long: `Replay every event stream and upsert the resulting request list rows.
The rebuild never deletes rows and is safe to re-run at any time.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	records, err := application.Rebuilder.Rebuild(ctx)
	if err != nil {
		return err
	}

	log.Info().Int("records", records).Msg("Projection rebuild completed")

	return nil
}
