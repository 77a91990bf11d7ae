// Package status publishes short user-facing notices (upload finished,
// backend unreachable, ...) for the status bar.
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medibot/medibot-cli/internal/pubsub"
)

// Level represents the severity level of a status message
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
)

const EventStatusPublished pubsub.EventType = "status_published"

// StatusMessage represents a status update to be displayed in the UI
type StatusMessage struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Service interface {
	pubsub.Subscriber[StatusMessage]
	Info(message string)
	Warn(message string)
	Error(message string)
	Debug(message string)
	Shutdown()
}

type service struct {
	broker *pubsub.Broker[StatusMessage]
}

func NewService() Service {
	return &service{broker: pubsub.NewBroker[StatusMessage]()}
}

func (s *service) Info(message string)  { s.publish(LevelInfo, message) }
func (s *service) Warn(message string)  { s.publish(LevelWarn, message) }
func (s *service) Error(message string) { s.publish(LevelError, message) }
func (s *service) Debug(message string) { s.publish(LevelDebug, message) }

func (s *service) publish(level Level, message string) {
	s.broker.Publish(EventStatusPublished, StatusMessage{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (s *service) Subscribe(ctx context.Context) <-chan pubsub.Event[StatusMessage] {
	return s.broker.Subscribe(ctx)
}

func (s *service) Shutdown() {
	s.broker.Shutdown()
}

var (
	globalService Service
	globalMu      sync.RWMutex
)

// InitService installs the process-wide status service.
func InitService() Service {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalService == nil {
		globalService = NewService()
		slog.Debug("Status service initialized")
	}
	return globalService
}

// GetService returns the process-wide status service, creating it on
// first use.
func GetService() Service {
	globalMu.RLock()
	svc := globalService
	globalMu.RUnlock()
	if svc == nil {
		return InitService()
	}
	return svc
}

func Info(message string)  { GetService().Info(message) }
func Warn(message string)  { GetService().Warn(message) }
func Error(message string) { GetService().Error(message) }
func Debug(message string) { GetService().Debug(message) }
