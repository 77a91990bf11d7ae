package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
	"github.com/google/uuid"
	"github.com/medibot/medibot-cli/internal/pubsub"
)

type Log struct {
	ID         string
	Timestamp  time.Time
	Level      string
	Message    string
	Attributes map[string]string
}

const (
	EventLogCreated pubsub.EventType = "log_created"

	// number of records kept in memory for the logs page
	defaultRetention = 500
)

type Service interface {
	pubsub.Subscriber[Log]

	Create(log Log) Log
	List(limit int) []Log
	Shutdown()
}

type service struct {
	broker    *pubsub.Broker[Log]
	mu        sync.RWMutex
	logs      []Log
	retention int
}

var (
	globalLoggingService *service
	globalMu             sync.Mutex
)

// InitService installs the process-wide log service. Calling it again
// returns the existing service.
func InitService() Service {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLoggingService == nil {
		globalLoggingService = newService(defaultRetention)
	}
	return globalLoggingService
}

func GetService() Service {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLoggingService == nil {
		panic("logging service not initialized. Call logging.InitService() first.")
	}
	return globalLoggingService
}

func newService(retention int) *service {
	return &service{
		broker:    pubsub.NewBroker[Log](pubsub.Silent()),
		retention: retention,
	}
}

func (s *service) Create(log Log) Log {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Level == "" {
		log.Level = "info"
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	if log.Attributes == nil {
		log.Attributes = make(map[string]string)
	}

	s.mu.Lock()
	s.logs = append(s.logs, log)
	if len(s.logs) > s.retention {
		s.logs = append([]Log(nil), s.logs[len(s.logs)-s.retention:]...)
	}
	s.mu.Unlock()

	s.broker.Publish(EventLogCreated, log)
	return log
}

// List returns up to limit of the most recent records, newest last.
// A non-positive limit returns everything retained.
func (s *service) List(limit int) []Log {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.logs) > limit {
		start = len(s.logs) - limit
	}
	out := make([]Log, len(s.logs)-start)
	copy(out, s.logs[start:])
	return out
}

func (s *service) Subscribe(ctx context.Context) <-chan pubsub.Event[Log] {
	return s.broker.Subscribe(ctx)
}

func (s *service) Shutdown() {
	s.broker.Shutdown()
}

type slogWriter struct {
	service *service
	mirror  io.Writer
	mu      sync.Mutex
}

func (sw *slogWriter) Write(p []byte) (n int, err error) {
	// time=2026-05-09T12:34:56.789-05:00 level=INFO msg="status probe" state=ready
	if sw.mirror != nil {
		sw.mu.Lock()
		_, _ = sw.mirror.Write(p)
		sw.mu.Unlock()
	}

	d := logfmt.NewDecoder(bytes.NewReader(p))
	for d.ScanRecord() {
		log := Log{Attributes: make(map[string]string)}
		for d.ScanKeyval() {
			key := string(d.Key())
			value := string(d.Value())

			switch key {
			case "time":
				parsed, timeErr := time.Parse(time.RFC3339Nano, value)
				if timeErr != nil {
					parsed = time.Now()
				}
				log.Timestamp = parsed
			case "level":
				log.Level = strings.ToLower(value)
			case "msg", "message":
				log.Message = value
			default:
				log.Attributes[key] = value
			}
		}
		sw.service.Create(log)
	}
	if d.Err() != nil {
		return len(p), fmt.Errorf("logfmt.ScanRecord: %w", d.Err())
	}
	return len(p), nil
}

// NewSlogWriter returns a writer for a slog.TextHandler. Every record is
// decoded and published on the log service; mirror, when set, also
// receives the raw bytes.
func NewSlogWriter(mirror io.Writer) io.Writer {
	svc := InitService().(*service)
	return &slogWriter{service: svc, mirror: mirror}
}

// OpenLogFile creates dir and opens medibot.log inside it for appending.
func OpenLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, "medibot.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// RecoverPanic is a common function to handle panics gracefully.
// It logs the error, creates a panic log file with stack trace,
// and executes an optional cleanup function.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		slog.Error(fmt.Sprintf("Panic in %s: %v", name, r))

		timestamp := time.Now().Format("20060102-150405")
		filename := fmt.Sprintf("medibot-panic-%s-%s.log", name, timestamp)

		file, err := os.Create(filename)
		if err != nil {
			slog.Error("Failed to create panic log file", "file", filename, "error", err)
		} else {
			defer file.Close()
			fmt.Fprintf(file, "Panic in %s: %v\n\n", name, r)
			fmt.Fprintf(file, "Time: %s\n\n", time.Now().Format(time.RFC3339))
			fmt.Fprintf(file, "Stack Trace:\n%s\n", string(debug.Stack()))
			slog.Info("Panic details written", "file", filename)
		}

		if cleanup != nil {
			cleanup()
		}
	}
}
