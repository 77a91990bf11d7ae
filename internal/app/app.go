package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/medibot/medibot-cli/internal/config"
	"github.com/medibot/medibot-cli/internal/conversation"
	"github.com/medibot/medibot-cli/internal/ingest"
	"github.com/medibot/medibot-cli/internal/logging"
	"github.com/medibot/medibot-cli/internal/paths"
	"github.com/medibot/medibot-cli/internal/readiness"
	"github.com/medibot/medibot-cli/internal/status"
	"github.com/medibot/medibot-cli/internal/transcript"
	"github.com/medibot/medibot-cli/pkg/client"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Logs         logging.Service
	Status       status.Service
	Client       *client.Backend
	Readiness    *readiness.Monitor
	Conversation *conversation.Session
	Uploader     *ingest.Uploader

	// Transcripts is nil when transcript.enabled is off.
	Transcripts *transcript.Store

	cfg *config.Config
	ctx context.Context
}

// New builds every component from cfg. Polling starts with Start.
func New(ctx context.Context, cfg *config.Config, opts ...client.ClientOption) (*App, error) {
	httpClient, err := client.NewBackend(cfg.Server.URL, opts...)
	if err != nil {
		slog.Error("Failed to create backend client", "error", err)
		return nil, err
	}

	monitor := readiness.NewMonitor(httpClient, readiness.WithInterval(cfg.Status.Interval))
	app := &App{
		Logs:         logging.InitService(),
		Status:       status.InitService(),
		Client:       httpClient,
		Readiness:    monitor,
		Conversation: conversation.NewSession(httpClient, monitor),
		Uploader:     ingest.NewUploader(httpClient, monitor),
		cfg:          cfg,
		ctx:          ctx,
	}

	if cfg.Transcript.Enabled {
		dir := paths.Transcripts(paths.Data(cfg.WorkingDir, cfg.Data.Directory))
		app.Transcripts, err = transcript.Open(dir)
		if err != nil {
			slog.Warn("Transcripts disabled", "dir", dir, "error", err)
		}
	}
	return app, nil
}

// Start begins readiness polling. It is bound to the context given to New.
func (app *App) Start() {
	app.Readiness.Start(app.ctx)
}

// Retry restarts readiness polling from scratch.
func (app *App) Retry() {
	app.Readiness.Reload(app.ctx)
}

// Accept returns the accepted upload patterns.
func (app *App) Accept() []string {
	return app.cfg.Ingest.Accept
}

func (app *App) Config() *config.Config {
	return app.cfg
}

// Context is the context the app was created with. Work started from the
// TUI is bound to it.
func (app *App) Context() context.Context {
	return app.ctx
}

// SaveTranscript stores the current history. It returns an empty id when
// transcripts are disabled or nothing was said.
func (app *App) SaveTranscript(ctx context.Context) (string, error) {
	if app.Transcripts == nil {
		return "", nil
	}
	return app.Transcripts.Save(ctx, app.Client.Server, app.Conversation.History())
}

// Shutdown performs a clean shutdown of the application
func (app *App) Shutdown() {
	app.Readiness.Close()

	if app.Transcripts != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if id, err := app.SaveTranscript(ctx); err != nil {
			slog.Error("Failed to save transcript", "error", err)
		} else if id != "" {
			slog.Info("Transcript saved", "id", id)
		}
		cancel()
		if err := app.Transcripts.Close(); err != nil {
			slog.Error("Failed to close transcript store", "error", err)
		}
	}

	app.Conversation.Close()
	app.Uploader.Close()
}
