package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct{ ready atomic.Bool }

func (g *fakeGate) Ready() bool { return g.ready.Load() }

func readyGate() *fakeGate {
	g := &fakeGate{}
	g.ready.Store(true)
	return g
}

type fakeAsker struct {
	mu        sync.Mutex
	questions []string
	answer    string
	err       error
	release   chan struct{}
}

func (a *fakeAsker) Chat(ctx context.Context, question string) (*client.ChatResponse, error) {
	a.mu.Lock()
	a.questions = append(a.questions, question)
	release := a.release
	a.mu.Unlock()
	if release != nil {
		<-release
	}
	if a.err != nil {
		return nil, a.err
	}
	return &client.ChatResponse{Answer: a.answer}, nil
}

func (a *fakeAsker) Questions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.questions...)
}

func TestSubmitScenario(t *testing.T) {
	t.Parallel()
	asker := &fakeAsker{answer: "500mg cada 6 horas"}
	s := NewSession(asker, readyGate())
	defer s.Close()

	msg, err := s.Submit(t.Context(), "¿Cuál es la dosis máxima de paracetamol?")
	require.NoError(t, err)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "¿Cuál es la dosis máxima de paracetamol?", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, "500mg cada 6 horas", history[1].Content)
	assert.False(t, history[1].Failed)
	assert.Equal(t, history[0].RequestID, history[1].RequestID)
	assert.Equal(t, history[1], msg)
	assert.False(t, s.Pending())
	assert.Equal(t, []string{"¿Cuál es la dosis máxima de paracetamol?"}, asker.Questions())
}

func TestBeginAppendsUserMessageBeforeDispatch(t *testing.T) {
	t.Parallel()
	asker := &fakeAsker{answer: "ok"}
	s := NewSession(asker, readyGate())
	defer s.Close()

	req, err := s.Begin("  hola  ")
	require.NoError(t, err)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "  hola  ", history[0].Content, "question is kept as entered")
	assert.Equal(t, req.ID, history[0].RequestID)
	assert.True(t, s.Pending())
	assert.Empty(t, asker.Questions(), "no network activity yet")

	answer, err := s.Dispatch(t.Context(), req)
	require.NoError(t, err)
	msg, ok := s.Resolve(req.ID, answer, err)
	require.True(t, ok)
	assert.Equal(t, "ok", msg.Content)
	assert.Len(t, s.History(), 2)
	assert.False(t, s.Pending())
}

func TestSubmitFailureRecordsFallback(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
	}{
		{name: "transport", err: errors.New("connection refused")},
		{name: "backend", err: &client.APIError{Method: "POST", Path: "/api/chat", StatusCode: 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewSession(&fakeAsker{err: tt.err}, readyGate())
			defer s.Close()

			msg, err := s.Submit(t.Context(), "hola")
			require.NoError(t, err)
			assert.Equal(t, FallbackAnswer, msg.Content)
			assert.True(t, msg.Failed)
			assert.Equal(t, RoleAssistant, msg.Role)

			history := s.History()
			require.Len(t, history, 2)
			assert.Equal(t, "hola", history[0].Content, "user message is kept")
			assert.False(t, s.Pending())
		})
	}
}

func TestSubmitRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		question string
		ready    bool
		wantErr  error
	}{
		{name: "empty", question: "", ready: true, wantErr: ErrEmptyQuestion},
		{name: "whitespace", question: " \t\n ", ready: true, wantErr: ErrEmptyQuestion},
		{name: "not ready", question: "hola", ready: false, wantErr: ErrNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			asker := &fakeAsker{answer: "ok"}
			gate := &fakeGate{}
			gate.ready.Store(tt.ready)
			s := NewSession(asker, gate)
			defer s.Close()

			_, err := s.Submit(t.Context(), tt.question)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, s.History())
			assert.Empty(t, asker.Questions())
			assert.False(t, s.Pending())
		})
	}
}

func TestSubmitWhilePendingIsRejected(t *testing.T) {
	t.Parallel()
	asker := &fakeAsker{answer: "primera", release: make(chan struct{})}
	s := NewSession(asker, readyGate())
	defer s.Close()

	done := make(chan Message)
	go func() {
		msg, err := s.Submit(context.Background(), "primera pregunta")
		assert.NoError(t, err)
		done <- msg
	}()

	require.Eventually(t, func() bool { return len(asker.Questions()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, s.Pending())

	_, err := s.Submit(t.Context(), "segunda pregunta")
	assert.ErrorIs(t, err, ErrPending)
	assert.Len(t, s.History(), 1)
	assert.Len(t, asker.Questions(), 1)

	close(asker.release)
	msg := <-done
	assert.Equal(t, "primera", msg.Content)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "primera pregunta", history[0].Content)
	assert.Equal(t, "primera", history[1].Content)
}

func TestDispatchIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()
	asker := &fakeAsker{answer: "ok", release: make(chan struct{})}
	s := NewSession(asker, readyGate())
	defer s.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan Message)
	go func() {
		msg, _ := s.Submit(ctx, "hola")
		done <- msg
	}()
	require.Eventually(t, func() bool { return len(asker.Questions()) == 1 }, time.Second, time.Millisecond)
	cancel()
	close(asker.release)

	msg := <-done
	assert.Equal(t, "ok", msg.Content)
	assert.False(t, msg.Failed)
}

func TestResolveUnknownRequest(t *testing.T) {
	t.Parallel()
	s := NewSession(&fakeAsker{}, readyGate())
	defer s.Close()

	_, ok := s.Resolve("nope", "answer", nil)
	assert.False(t, ok)
	assert.Empty(t, s.History())

	req, err := s.Begin("hola")
	require.NoError(t, err)
	_, ok = s.Resolve("other", "answer", nil)
	assert.False(t, ok)
	assert.True(t, s.Pending())

	_, ok = s.Resolve(req.ID, "answer", nil)
	assert.True(t, ok)
	_, ok = s.Resolve(req.ID, "again", nil)
	assert.False(t, ok, "a request resolves once")
	assert.Len(t, s.History(), 2)
}

func TestConsecutiveSubmissionsKeepOrder(t *testing.T) {
	t.Parallel()
	s := NewSession(&fakeAsker{answer: "respuesta"}, readyGate())
	defer s.Close()

	for _, q := range []string{"uno", "dos", "tres"} {
		_, err := s.Submit(t.Context(), q)
		require.NoError(t, err)
	}

	history := s.History()
	require.Len(t, history, 6)
	for i, q := range []string{"uno", "dos", "tres"} {
		assert.Equal(t, RoleUser, history[2*i].Role)
		assert.Equal(t, q, history[2*i].Content)
		assert.Equal(t, RoleAssistant, history[2*i+1].Role)
		assert.Equal(t, history[2*i].RequestID, history[2*i+1].RequestID)
	}
}

func TestSubscribeReceivesAppends(t *testing.T) {
	t.Parallel()
	s := NewSession(&fakeAsker{answer: "500mg cada 6 horas"}, readyGate())
	defer s.Close()
	ch := s.Subscribe(t.Context())

	_, err := s.Submit(t.Context(), "dosis")
	require.NoError(t, err)

	var roles []Role
	for range 2 {
		select {
		case event := <-ch:
			assert.Equal(t, pubsub.EventTypeCreated, event.Type)
			roles = append(roles, event.Payload.Role)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message event")
		}
	}
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, roles)
}

func TestHistoryIsACopy(t *testing.T) {
	t.Parallel()
	s := NewSession(&fakeAsker{answer: "ok"}, readyGate())
	defer s.Close()
	_, err := s.Submit(t.Context(), "hola")
	require.NoError(t, err)

	history := s.History()
	history[0].Content = "changed"
	assert.Equal(t, "hola", s.History()[0].Content)
}
