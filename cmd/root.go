package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vmgatelabs/vmgate/config"
)

// cfg is loaded by the root command's persistent pre-run and shared by all
// subcommands.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "vmgate",
	Short: "VM request and approval service",
	Long: `vmgate manages virtual machine requests: tenants submit requests,
approvers decide them, and approved requests are provisioned on the
configured hypervisor backend.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.LoadConfig(".")
		if err != nil {
			return err
		}

		configureLogging(cfg)

		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// configureLogging switches to console output in development and applies the
// configured level. Everywhere else the default JSON output stands.
func configureLogging(cfg config.Config) {
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
}
