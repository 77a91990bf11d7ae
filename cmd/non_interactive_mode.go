package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"log/slog"

	charmlog "github.com/charmbracelet/log"
	"github.com/medibot/medibot-cli/internal/app"
	"github.com/medibot/medibot-cli/internal/config"
	"github.com/medibot/medibot-cli/internal/format"
	"github.com/medibot/medibot-cli/internal/tui/components/chat"
	"github.com/medibot/medibot-cli/internal/tui/components/spinner"
	"github.com/medibot/medibot-cli/internal/tui/styles"
	"github.com/spf13/cobra"
)

// syncWriter is a thread-safe writer that prevents interleaved output
type syncWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// Write implements io.Writer
func (sw *syncWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}

// newSyncWriter creates a new synchronized writer
func newSyncWriter(w io.Writer) io.Writer {
	return &syncWriter{w: w}
}

type nonInteractiveOptions struct {
	format  format.OutputFormat
	quiet   bool
	verbose bool
	wait    time.Duration
	out     io.Writer
}

func nonInteractiveOptionsFromFlags(cmd *cobra.Command) (nonInteractiveOptions, error) {
	outputFormat, err := outputFormatFromFlags(cmd)
	if err != nil {
		return nonInteractiveOptions{}, err
	}
	opts := nonInteractiveOptions{format: outputFormat, out: cmd.OutOrStdout()}
	if f := cmd.Flags().Lookup("quiet"); f != nil {
		opts.quiet, _ = cmd.Flags().GetBool("quiet")
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil {
		opts.verbose, _ = cmd.Flags().GetBool("verbose")
	}
	opts.wait, _ = cmd.Flags().GetDuration("wait")
	if opts.quiet && opts.verbose {
		return opts, errors.New("--quiet and --verbose flags cannot be used together")
	}
	return opts, nil
}

// enableVerboseLogging sends every slog record to stderr through
// charmbracelet/log.
func enableVerboseLogging() {
	// Create a synchronized writer to prevent interleaved output
	syncWriter := newSyncWriter(os.Stderr)

	charmLogger := charmlog.NewWithOptions(syncWriter, charmlog.Options{
		Level:           charmlog.DebugLevel,
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "MediBot",
	})
	charmlog.SetDefault(charmLogger)
	slog.SetDefault(slog.New(charmLogger))

	charmLogger.Info("Verbose logging enabled")
}

// startSpinner shows message on stderr unless quiet. The returned func
// stops it and is safe to call more than once.
func startSpinner(message string, quiet bool) func() {
	if quiet {
		return func() {}
	}
	s := spinner.NewThemedSpinner(message, styles.Primary)
	s.Start()
	return s.Stop
}

// waitForBackend starts polling and blocks until the backend is ready or
// wait elapses.
func waitForBackend(ctx context.Context, a *app.App, wait time.Duration) error {
	a.Start()
	if wait <= 0 {
		wait = defaultWait
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := a.Readiness.WaitReady(waitCtx); err != nil {
		snap := a.Readiness.State()
		return fmt.Errorf("backend not ready after %s (%s: %s): %w", wait, snap.State, snap.Details, err)
	}
	return nil
}

// handleNonInteractiveMode asks a single question and prints the answer.
func handleNonInteractiveMode(ctx context.Context, cfg *config.Config, prompt string, opts nonInteractiveOptions) error {
	slog.Info("Running in non-interactive mode", "prompt", prompt, "format", opts.format, "quiet", opts.quiet, "verbose", opts.verbose)

	if opts.verbose {
		enableVerboseLogging()
	}

	stop := startSpinner(chat.PendingText, opts.quiet)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create app", "error", err)
		return err
	}
	defer app.Shutdown()

	if err := waitForBackend(ctx, app, opts.wait); err != nil {
		return err
	}

	msg, err := app.Conversation.Submit(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to submit question: %w", err)
	}

	formattedOutput, err := format.FormatOutput(format.Answer{
		Question: prompt,
		Response: msg.Content,
		Failed:   msg.Failed,
	}, opts.format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Stop spinner before printing output
	stop()
	fmt.Fprintln(opts.out, formattedOutput)

	if msg.Failed {
		return errors.New("the backend could not answer the question")
	}
	return nil
}
