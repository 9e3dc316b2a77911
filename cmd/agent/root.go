package main

import (
	"github.com/agentebl/multibanco-agent-go/internal/config"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Configuration is read from the
// environment after the optional .env file has been loaded.
func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Multibank kiosk agent backend",
		Long: `agent records kiosk cash-movement receipts with their derived fee and
resolves DNI / RUC numbers through Decolecta or a mock identity book.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing file is fine; real env vars always win.
			_ = config.LoadDotEnv(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")

	cmd.AddCommand(
		newServeCmd(),
		newFeeCmd(),
		newResolveCmd(),
		newRUCCmd(),
	)
	return cmd
}
