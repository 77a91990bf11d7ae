// Package conversation keeps the chat transcript and serializes questions
// to the backend, one at a time.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/readiness"
	"github.com/medibot/medibot-cli/pkg/client"
)

// FallbackAnswer is the assistant content recorded when the backend could
// not answer. Such messages also carry Failed.
const FallbackAnswer = "Error: Could not get a response from the server."

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrPending       = errors.New("a question is already pending")
	ErrNotReady      = errors.New("backend is not ready")
)

type Asker interface {
	Chat(ctx context.Context, question string) (*client.ChatResponse, error)
}

type Session struct {
	asker  Asker
	gate   readiness.Gate
	broker *pubsub.Broker[Message]
	log    *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	history []Message
	pending *Request
}

func NewSession(asker Asker, gate readiness.Gate) *Session {
	return &Session{
		asker:  asker,
		gate:   gate,
		broker: pubsub.NewBroker[Message](),
		log:    slog.With("service", "conversation"),
		now:    time.Now,
	}
}

// Begin validates question and, when accepted, appends the user message
// and marks the session pending. A rejected question leaves the session
// untouched.
func (s *Session) Begin(question string) (Request, error) {
	if strings.TrimSpace(question) == "" {
		return Request{}, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return Request{}, ErrPending
	}
	if !s.gate.Ready() {
		return Request{}, ErrNotReady
	}

	req := Request{ID: uuid.NewString(), Question: question}
	s.pending = &req
	s.appendLocked(Message{
		RequestID: req.ID,
		Role:      RoleUser,
		Content:   question,
	})
	return req, nil
}

// Dispatch sends the question to the backend. Caller cancellation is not
// propagated; the request always runs to completion.
func (s *Session) Dispatch(ctx context.Context, req Request) (string, error) {
	s.log.Debug("dispatching question", "request_id", req.ID)
	resp, err := s.asker.Chat(context.WithoutCancel(ctx), req.Question)
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Resolve appends the assistant reply for the pending request id and
// clears pending. A nil err records answer verbatim; otherwise the
// fallback is recorded. Unknown or stale ids are ignored.
func (s *Session) Resolve(id, answer string, err error) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.ID != id {
		s.log.Warn("ignoring reply for unknown request", "request_id", id)
		return Message{}, false
	}

	msg := Message{RequestID: id, Role: RoleAssistant, Content: answer}
	if err != nil {
		s.log.Error("chat request failed", "request_id", id, "error", err)
		msg.Content = FallbackAnswer
		msg.Failed = true
	}
	s.pending = nil
	return s.appendLocked(msg), true
}

// Submit runs Begin, Dispatch and Resolve in sequence and returns the
// assistant message. Chat failures are not errors here: they are recorded
// as a Failed message.
func (s *Session) Submit(ctx context.Context, question string) (Message, error) {
	req, err := s.Begin(question)
	if err != nil {
		return Message{}, err
	}
	answer, err := s.Dispatch(ctx, req)
	msg, _ := s.Resolve(req.ID, answer, err)
	return msg, nil
}

func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Subscribe delivers every appended message in transcript order.
func (s *Session) Subscribe(ctx context.Context) <-chan pubsub.Event[Message] {
	return s.broker.Subscribe(ctx)
}

func (s *Session) Close() {
	s.broker.Shutdown()
}

func (s *Session) appendLocked(msg Message) Message {
	msg.CreatedAt = s.now()
	s.history = append(s.history, msg)
	s.broker.Publish(pubsub.EventTypeCreated, msg)
	return msg
}
