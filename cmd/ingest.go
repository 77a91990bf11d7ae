package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/medibot/medibot-cli/internal/app"
	"github.com/medibot/medibot-cli/internal/format"
	"github.com/medibot/medibot-cli/internal/ingest"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths or globs...]",
	Short: "Upload clinical guides to the backend",
	Long: `Upload one batch of PDF or TXT guides for ingestion.
Arguments may be file paths or doublestar globs such as "guides/**/*.pdf".
Only files matching ingest.accept are sent.

With --watch the arguments are directories instead, and every group of
new or changed guides in them is uploaded until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := nonInteractiveOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		watch, _ := cmd.Flags().GetBool("watch")
		cfg, closeLog, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeLog()
		if opts.verbose {
			enableVerboseLogging()
		}

		ctx := cmd.Context()
		var batch ingest.Batch
		if !watch {
			batch, err = ingest.LoadBatch(ctx, cfg.Ingest.Accept, args...)
			if err != nil {
				return fmt.Errorf("failed to load files: %w", err)
			}
		}

		app, err := app.New(ctx, cfg)
		if err != nil {
			slog.Error("Failed to create app", "error", err)
			return err
		}
		defer app.Shutdown()

		stop := startSpinner("Esperando al servidor ...", opts.quiet)
		err = waitForBackend(ctx, app, opts.wait)
		stop()
		if err != nil {
			return err
		}

		if watch {
			return watchAndUpload(ctx, app, args, opts)
		}
		return uploadBatch(ctx, app, batch, opts)
	},
}

func uploadBatch(ctx context.Context, a *app.App, batch ingest.Batch, opts nonInteractiveOptions) error {
	slog.Info("Uploading batch", "files", batch.Names())
	stop := startSpinner(fmt.Sprintf("Subiendo %d archivo(s) ...", batch.Len()), opts.quiet)
	defer stop()

	result, err := a.Uploader.Upload(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to upload files: %w", err)
	}

	formattedOutput, err := format.FormatOutput(format.Ingestion{
		Files:   batch.Names(),
		Message: result.Message,
		Failed:  result.Failed,
	}, opts.format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	stop()
	fmt.Fprintln(opts.out, formattedOutput)
	if result.Failed {
		return errUploadFailed
	}
	return nil
}

var errUploadFailed = errors.New("the backend rejected the upload")

// watchAndUpload uploads each settled group of changes in dirs. A failed
// upload is reported and watching goes on.
func watchAndUpload(ctx context.Context, a *app.App, dirs []string, opts nonInteractiveOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	groups, err := ingest.WatchDirs(ctx, a.Accept(), ingest.DefaultSettle, dirs...)
	if err != nil {
		return fmt.Errorf("failed to watch: %w", err)
	}
	if !opts.quiet {
		fmt.Fprintf(os.Stderr, "Vigilando %v, Ctrl+C para salir\n", dirs)
	}

	for group := range groups {
		batch, err := ingest.LoadBatch(ctx, a.Accept(), group...)
		if err != nil {
			slog.Warn("Skipping changed files", "files", group, "error", err)
			continue
		}
		err = uploadBatch(ctx, a, batch, opts)
		if err != nil && !errors.Is(err, errUploadFailed) {
			return err
		}
	}
	return nil
}

func init() {
	ingestCmd.Flags().BoolP("quiet", "q", false, "Hide spinner")
	ingestCmd.Flags().BoolP("verbose", "", false, "Display logs to stderr")
	ingestCmd.Flags().BoolP("watch", "w", false, "Watch directories and upload guides as they appear")
	ingestCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")
}
