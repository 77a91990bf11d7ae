package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/medibot/medibot-cli/internal/app"
	"github.com/medibot/medibot-cli/internal/format"
	"github.com/spf13/cobra"
)

var errNotReady = errors.New("backend is not ready")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the backend is ready",
	Long:  "Probe the backend status endpoint once and print its state. Exits non-zero unless ready.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, err := outputFormatFromFlags(cmd)
		if err != nil {
			return err
		}
		cfg, closeLog, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		app, err := app.New(cmd.Context(), cfg)
		if err != nil {
			slog.Error("Failed to create app", "error", err)
			return err
		}
		defer app.Shutdown()

		snap := app.Readiness.Probe(cmd.Context())
		formattedOutput, err := format.FormatOutput(format.Readiness{
			Server:  app.Client.Server,
			State:   string(snap.State),
			Details: snap.Details,
		}, outputFormat)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formattedOutput)

		if !snap.Ready() {
			return errNotReady
		}
		return nil
	},
}
