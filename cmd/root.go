package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/medibot/medibot-cli/internal/app"
	"github.com/medibot/medibot-cli/internal/config"
	"github.com/medibot/medibot-cli/internal/format"
	"github.com/medibot/medibot-cli/internal/logging"
	"github.com/medibot/medibot-cli/internal/paths"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/tui"
	"github.com/medibot/medibot-cli/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultWait = 2 * time.Minute

var rootCmd = &cobra.Command{
	Use:   "medibot",
	Short: "A terminal client for the MediBot medical assistant",
	Long: `MediBot is a terminal client for a local medical question-answering backend.
It waits for the backend to become ready, lets you ask questions about the
clinical guides it knows, and uploads new PDF or TXT guides for ingestion.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If the help flag is set, show the help message
		if cmd.Flag("help").Changed {
			cmd.Help()
			return nil
		}
		if cmd.Flag("version").Changed {
			fmt.Println(version.Version)
			return nil
		}

		prompt, _ := cmd.Flags().GetString("prompt")
		if piped, ok := checkStdinPipe(); ok {
			prompt = joinPrompt(prompt, piped)
		}

		// Check if we're in non-interactive mode
		if prompt != "" {
			opts, err := nonInteractiveOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()
			return handleNonInteractiveMode(cmd.Context(), cfg, prompt, opts)
		}

		cfg, closeLog, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeLog()
		return runTUI(cfg)
	},
}

// runTUI owns the interactive session until the user quits.
func runTUI(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create app", "error", err)
		return err
	}

	zone.NewGlobal()
	program := tea.NewProgram(
		tui.New(app),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	events, stopEvents := setupSubscriptions(app, ctx)
	forwardCtx, stopForward := context.WithCancel(ctx)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		defer logging.RecoverPanic("tui-forwarder", func() {
			attemptTUIRecovery(program)
		})
		for {
			select {
			case <-forwardCtx.Done():
				return
			case msg, ok := <-events:
				if !ok {
					return
				}
				program.Send(msg)
			}
		}
	}()

	app.Start()

	result, err := program.Run()

	// subscriptions go first so nothing is sent to a stopped program
	stopEvents()
	app.Shutdown()
	stopForward()
	<-forwarded
	slog.Info("TUI exited", "result", result)

	if err != nil {
		slog.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// setup changes to --cwd, loads the config and routes slog to the log
// service and the log file under the data directory. The returned func
// closes the log file.
func setup(cmd *cobra.Command) (*config.Config, func(), error) {
	debug, _ := cmd.Flags().GetBool("debug")
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		err := os.Chdir(cwd)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to change directory: %v", err)
		}
	}
	if cwd == "" {
		c, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get current working directory: %v", err)
		}
		cwd = c
	}

	if f := cmd.Flags().Lookup("server"); f != nil {
		viper.BindPFlag("server.url", f)
	}
	cfg, err := config.Load(cwd, debug)
	if err != nil {
		return nil, nil, err
	}

	logging.InitService()
	var mirror io.Writer
	closeLog := func() {}
	logFile, err := logging.OpenLogFile(paths.Log(paths.Data(cfg.WorkingDir, cfg.Data.Directory)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging to file disabled: %v\n", err)
	} else {
		mirror = logFile
		closeLog = func() { logFile.Close() }
	}

	lvl := new(slog.LevelVar)
	if cfg.Debug {
		lvl.Set(slog.LevelDebug)
	}
	textHandler := slog.NewTextHandler(logging.NewSlogWriter(mirror), &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(textHandler))
	slog.Debug("Config loaded", "server", cfg.Server.URL, "wd", cfg.WorkingDir)
	return cfg, closeLog, nil
}

// attemptTUIRecovery tries to recover the TUI after a panic
func attemptTUIRecovery(program *tea.Program) {
	slog.Info("Attempting to recover TUI after panic")
	program.Quit()
}

// setupSubscriber copies every event from subscribe into out until ctx
// is done. A slow consumer loses the event after a short wait.
func setupSubscriber[T any](
	ctx context.Context,
	wg *sync.WaitGroup,
	name string,
	subscribe func(context.Context) <-chan pubsub.Event[T],
	out chan<- tea.Msg,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer logging.RecoverPanic("subscription-"+name, nil)

		in := subscribe(ctx)
		for {
			var event pubsub.Event[T]
			var ok bool
			select {
			case <-ctx.Done():
				return
			case event, ok = <-in:
				if !ok {
					slog.Debug("subscription closed", "name", name)
					return
				}
			}

			timer := time.NewTimer(2 * time.Second)
			select {
			case out <- event:
			case <-timer.C:
				slog.Warn("event dropped, TUI is not keeping up", "name", name)
			case <-ctx.Done():
				timer.Stop()
				return
			}
			timer.Stop()
		}
	}()
}

// setupSubscriptions fans every service broker into one channel of
// tea messages. The returned func stops them and closes the channel.
func setupSubscriptions(app *app.App, parent context.Context) (chan tea.Msg, func()) {
	out := make(chan tea.Msg, 100)
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	setupSubscriber(ctx, &wg, "logging", app.Logs.Subscribe, out)
	setupSubscriber(ctx, &wg, "status", app.Status.Subscribe, out)
	setupSubscriber(ctx, &wg, "readiness", app.Readiness.Subscribe, out)
	setupSubscriber(ctx, &wg, "conversation", app.Conversation.Subscribe, out)
	setupSubscriber(ctx, &wg, "uploads", app.Uploader.Subscribe, out)

	return out, func() {
		cancel()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			slog.Warn("Timed out waiting for subscriptions to stop")
			// a writer may still be blocked on out, leave it open
			return
		}
		close(out)
	}
}

// checkStdinPipe returns whatever was piped to stdin. It reports false
// when stdin is a terminal or nothing was piped.
func checkStdinPipe() (string, bool) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", false
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return "", false
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// joinPrompt appends piped text to the --prompt question.
func joinPrompt(prompt, piped string) string {
	piped = strings.TrimRight(piped, "\n")
	if strings.TrimSpace(prompt) == "" {
		return piped
	}
	return prompt + "\n\n" + piped
}

func outputFormatFromFlags(cmd *cobra.Command) (format.OutputFormat, error) {
	s, _ := cmd.Flags().GetString("output-format")
	return format.Parse(s)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().BoolP("version", "v", false, "Version")
	rootCmd.Flags().StringP("prompt", "p", "", "Ask a single question in non-interactive mode")
	rootCmd.Flags().BoolP("quiet", "q", false, "Hide spinner in non-interactive mode")
	rootCmd.Flags().BoolP("verbose", "", false, "Display logs to stderr in non-interactive mode")

	rootCmd.PersistentFlags().StringP("server", "s", "", "Backend URL (default "+config.DefaultServerURL+")")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	rootCmd.PersistentFlags().StringP("output-format", "f", "text", "Output format for non-interactive commands (text, json)")
	rootCmd.PersistentFlags().Duration("wait", defaultWait, "How long non-interactive commands wait for the backend to be ready")

	// Make quiet and verbose mutually exclusive
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	rootCmd.AddCommand(ingestCmd, statusCmd, transcriptsCmd)
}
