package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

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

type fakeIngester struct {
	mu      sync.Mutex
	calls   [][]string
	bodies  []string
	message string
	err     error
	release chan struct{}
}

func (f *fakeIngester) Ingest(ctx context.Context, files []client.File) (*client.IngestResponse, error) {
	names := make([]string, len(files))
	for i, file := range files {
		names[i] = file.Filename()
		b, _ := file.Bytes()
		f.mu.Lock()
		f.bodies = append(f.bodies, string(b))
		f.mu.Unlock()
	}
	f.mu.Lock()
	f.calls = append(f.calls, names)
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &client.IngestResponse{Message: f.message}, nil
}

func (f *fakeIngester) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func twoFiles() Batch {
	return NewBatch(NewFile("guia.pdf", []byte("%PDF")), NewFile("notas.txt", []byte("notas")))
}

func TestUploadScenario(t *testing.T) {
	t.Parallel()
	ingester := &fakeIngester{message: "2 documentos procesados"}
	u := NewUploader(ingester, readyGate())
	defer u.Close()

	res, err := u.Upload(t.Context(), twoFiles())
	require.NoError(t, err)
	assert.Equal(t, Result{Message: "2 documentos procesados"}, res)

	state := u.State()
	assert.False(t, state.InFlight)
	require.NotNil(t, state.LastResult)
	assert.Equal(t, "2 documentos procesados", state.LastResult.Message)

	assert.Equal(t, [][]string{{"guia.pdf", "notas.txt"}}, ingester.Calls())
	assert.Equal(t, []string{"%PDF", "notas"}, ingester.bodies)
}

func TestUploadFailure(t *testing.T) {
	t.Parallel()
	u := NewUploader(&fakeIngester{err: errors.New("boom")}, readyGate())
	defer u.Close()

	res, err := u.Upload(t.Context(), twoFiles())
	require.NoError(t, err)
	assert.Equal(t, Result{Message: FailureMessage, Failed: true}, res)

	state := u.State()
	assert.False(t, state.InFlight)
	require.NotNil(t, state.LastResult)
	assert.True(t, state.LastResult.Failed)
}

func TestUploadRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		batch   Batch
		ready   bool
		wantErr error
	}{
		{name: "empty batch", batch: NewBatch(), ready: true, wantErr: ErrEmptyBatch},
		{name: "not ready", batch: twoFiles(), ready: false, wantErr: ErrNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ingester := &fakeIngester{message: "ok"}
			gate := &fakeGate{}
			gate.ready.Store(tt.ready)
			u := NewUploader(ingester, gate)
			defer u.Close()

			_, err := u.Upload(t.Context(), tt.batch)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, ingester.Calls())
			assert.Equal(t, State{}, u.State())
		})
	}
}

func TestUploadWhileInFlightIsRejected(t *testing.T) {
	t.Parallel()
	ingester := &fakeIngester{message: "ok", release: make(chan struct{})}
	u := NewUploader(ingester, readyGate())
	defer u.Close()

	done := make(chan Result)
	go func() {
		res, err := u.Upload(context.Background(), twoFiles())
		assert.NoError(t, err)
		done <- res
	}()
	require.Eventually(t, func() bool { return len(ingester.Calls()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, u.State().InFlight)

	_, err := u.Upload(t.Context(), twoFiles())
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Len(t, ingester.Calls(), 1)

	close(ingester.release)
	assert.Equal(t, "ok", (<-done).Message)
	assert.False(t, u.State().InFlight)
}

func TestBeginClearsLastResult(t *testing.T) {
	t.Parallel()
	u := NewUploader(&fakeIngester{err: errors.New("boom")}, readyGate())
	defer u.Close()

	_, err := u.Upload(t.Context(), twoFiles())
	require.NoError(t, err)
	require.NotNil(t, u.State().LastResult)

	up, err := u.Begin(twoFiles())
	require.NoError(t, err)
	state := u.State()
	assert.True(t, state.InFlight)
	assert.Nil(t, state.LastResult)

	res, ok := u.Resolve(up.ID, "1 documento procesado", nil)
	require.True(t, ok)
	assert.Equal(t, "1 documento procesado", res.Message)
}

func TestResolveUnknownUpload(t *testing.T) {
	t.Parallel()
	u := NewUploader(&fakeIngester{}, readyGate())
	defer u.Close()

	_, ok := u.Resolve("nope", "ok", nil)
	assert.False(t, ok)
	assert.Equal(t, State{}, u.State())
}

func TestSubscribeReceivesStateChanges(t *testing.T) {
	t.Parallel()
	u := NewUploader(&fakeIngester{message: "ok"}, readyGate())
	defer u.Close()
	ch := u.Subscribe(t.Context())

	_, err := u.Upload(t.Context(), twoFiles())
	require.NoError(t, err)

	var inFlight []bool
	for range 2 {
		select {
		case event := <-ch:
			inFlight = append(inFlight, event.Payload.InFlight)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for state event")
		}
	}
	assert.Equal(t, []bool{true, false}, inFlight)
}
