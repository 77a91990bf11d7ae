// Package ingest packages local documents and submits them to the backend
// knowledge base, one batch at a time.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/internal/readiness"
	"github.com/medibot/medibot-cli/pkg/client"
)

// FailureMessage is recorded as the last result whenever an upload fails.
const FailureMessage = "Error uploading files."

var (
	ErrEmptyBatch = errors.New("no files selected")
	ErrInFlight   = errors.New("an upload is already in flight")
	ErrNotReady   = errors.New("backend is not ready")
)

type Ingester interface {
	Ingest(ctx context.Context, files []client.File) (*client.IngestResponse, error)
}

type Result struct {
	Message string `json:"message"`
	Failed  bool   `json:"failed,omitempty"`
}

type State struct {
	InFlight   bool
	LastResult *Result
}

// Upload identifies a batch accepted by Begin and not yet resolved.
type Upload struct {
	ID    string
	Batch Batch
}

type Uploader struct {
	ingester Ingester
	gate     readiness.Gate
	broker   *pubsub.Broker[State]
	log      *slog.Logger

	mu       sync.Mutex
	inFlight *Upload
	last     *Result
}

func NewUploader(ingester Ingester, gate readiness.Gate) *Uploader {
	return &Uploader{
		ingester: ingester,
		gate:     gate,
		broker:   pubsub.NewBroker[State](),
		log:      slog.With("service", "ingest"),
	}
}

// Begin marks batch as in flight and clears the previous result.
func (u *Uploader) Begin(batch Batch) (Upload, error) {
	if batch.Len() == 0 {
		return Upload{}, ErrEmptyBatch
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inFlight != nil {
		return Upload{}, ErrInFlight
	}
	if !u.gate.Ready() {
		return Upload{}, ErrNotReady
	}

	up := Upload{ID: uuid.NewString(), Batch: batch}
	u.inFlight = &up
	u.last = nil
	u.publishLocked(pubsub.EventTypeUpdated)
	return up, nil
}

// Dispatch sends every file of the upload in a single request. Caller
// cancellation is not propagated.
func (u *Uploader) Dispatch(ctx context.Context, up Upload) (string, error) {
	files := up.Batch.Files()
	parts := make([]client.File, len(files))
	for i, f := range files {
		parts[i].InitFromBytes(f.content, f.name)
	}

	u.log.Debug("uploading batch", "upload_id", up.ID, "files", up.Batch.Names())
	resp, err := u.ingester.Ingest(context.WithoutCancel(ctx), parts)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Resolve records the outcome of the in-flight upload with the given id.
// Unknown ids are ignored.
func (u *Uploader) Resolve(id, message string, err error) (Result, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inFlight == nil || u.inFlight.ID != id {
		u.log.Warn("ignoring result for unknown upload", "upload_id", id)
		return Result{}, false
	}

	res := Result{Message: message}
	if err != nil {
		u.log.Error("upload failed", "upload_id", id, "error", err)
		res = Result{Message: FailureMessage, Failed: true}
	} else {
		u.log.Info("upload finished", "upload_id", id, "files", u.inFlight.Batch.Len())
	}
	u.inFlight = nil
	u.last = &res
	u.publishLocked(pubsub.EventTypeUpdated)
	return res, true
}

// Upload runs Begin, Dispatch and Resolve. Backend failures are reported
// through the returned Result, not as an error.
func (u *Uploader) Upload(ctx context.Context, batch Batch) (Result, error) {
	up, err := u.Begin(batch)
	if err != nil {
		return Result{}, err
	}
	message, err := u.Dispatch(ctx, up)
	res, _ := u.Resolve(up.ID, message, err)
	return res, nil
}

func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stateLocked()
}

func (u *Uploader) Subscribe(ctx context.Context) <-chan pubsub.Event[State] {
	return u.broker.Subscribe(ctx)
}

func (u *Uploader) Close() {
	u.broker.Shutdown()
}

func (u *Uploader) stateLocked() State {
	s := State{InFlight: u.inFlight != nil}
	if u.last != nil {
		last := *u.last
		s.LastResult = &last
	}
	return s
}

func (u *Uploader) publishLocked(t pubsub.EventType) {
	u.broker.Publish(t, u.stateLocked())
}
