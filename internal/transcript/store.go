// Package transcript saves conversation histories to a blob bucket so they
// can be read back after the client exits.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/medibot/medibot-cli/internal/conversation"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

const extension = ".json"

var (
	ErrNotFound  = errors.New("transcript not found")
	ErrAmbiguous = errors.New("transcript id is ambiguous")
)

type Transcript struct {
	ID       string                 `json:"id"`
	Server   string                 `json:"server"`
	SavedAt  time.Time              `json:"saved_at"`
	Messages []conversation.Message `json:"messages"`
}

type Summary struct {
	ID      string
	SavedAt time.Time
	Size    int64
}

type Store struct {
	bucket *blob.Bucket
	log    *slog.Logger
}

// Open opens a store backed by the directory dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		NoTempDir: true,
	})
	if err != nil {
		return nil, err
	}
	return NewStore(bucket), nil
}

// NewStore wraps an already opened bucket. The store owns it afterwards.
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{
		bucket: bucket,
		log:    slog.With("service", "transcript"),
	}
}

// Save writes history as a new transcript and returns its id. An empty
// history is not saved.
func (s *Store) Save(ctx context.Context, server string, history []conversation.Message) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	t := Transcript{
		ID:       time.Now().UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8],
		Server:   server,
		SavedAt:  time.Now().UTC(),
		Messages: history,
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}

	w, err := s.bucket.NewWriter(ctx, t.ID+extension, &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	s.log.Info("transcript saved", "id", t.ID, "messages", len(history))
	return t.ID, nil
}

func (s *Store) Load(ctx context.Context, id string) (*Transcript, error) {
	r, err := s.bucket.NewReader(ctx, id+extension, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding transcript %s: %w", id, err)
	}
	return &t, nil
}

// Find loads the transcript whose id is query. Otherwise the one id
// containing query wins, and only when none does is the id that
// fuzzy-matches it best loaded.
func (s *Store) Find(ctx context.Context, query string) (*Transcript, error) {
	t, err := s.Load(ctx, query)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return t, err
	}

	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(summaries))
	for i, sum := range summaries {
		ids[i] = sum.ID
	}
	var hits []string
	for _, id := range ids {
		if strings.Contains(strings.ToLower(id), strings.ToLower(query)) {
			hits = append(hits, id)
		}
	}
	switch len(hits) {
	case 0:
	case 1:
		return s.Load(ctx, hits[0])
	default:
		return nil, fmt.Errorf("%w: %q matches %s and %s", ErrAmbiguous, query, hits[0], hits[1])
	}

	matches := fuzzy.RankFindFold(query, ids)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	sort.Sort(matches)
	if len(matches) > 1 && matches[0].Distance == matches[1].Distance {
		return nil, fmt.Errorf("%w: %q matches %s and %s", ErrAmbiguous, query, matches[0].Target, matches[1].Target)
	}
	return s.Load(ctx, matches[0].Target)
}

// List returns the saved transcripts, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	iter := s.bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, extension) {
			continue
		}
		out = append(out, Summary{
			ID:      strings.TrimSuffix(obj.Key, extension),
			SavedAt: obj.ModTime,
			Size:    obj.Size,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Close() error {
	return s.bucket.Close()
}
