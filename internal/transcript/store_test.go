package transcript

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/medibot/medibot-cli/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func sampleHistory() []conversation.Message {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []conversation.Message{
		{RequestID: "r1", Role: conversation.RoleUser, Content: "¿Cuál es la dosis máxima de paracetamol?", CreatedAt: now},
		{RequestID: "r1", Role: conversation.RoleAssistant, Content: "500mg cada 6 horas", CreatedAt: now.Add(time.Second)},
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	s := NewStore(memblob.OpenBucket(nil))
	defer s.Close()

	id, err := s.Save(t.Context(), "http://localhost:8000", sampleHistory())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Load(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "http://localhost:8000", got.Server)
	assert.Equal(t, sampleHistory(), got.Messages)
}

func TestSaveEmptyHistory(t *testing.T) {
	t.Parallel()
	s := NewStore(memblob.OpenBucket(nil))
	defer s.Close()

	id, err := s.Save(t.Context(), "http://localhost:8000", nil)
	require.NoError(t, err)
	assert.Empty(t, id)

	list, err := s.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()
	s := NewStore(memblob.OpenBucket(nil))
	defer s.Close()

	_, err := s.Load(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOnDisk(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "transcripts"))
	require.NoError(t, err)
	defer s.Close()

	first, err := s.Save(t.Context(), "http://a", sampleHistory())
	require.NoError(t, err)
	second, err := s.Save(t.Context(), "http://b", sampleHistory()[:1])
	require.NoError(t, err)

	list, err := s.List(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)
	assert.Positive(t, list[0].Size)
}

func TestFind(t *testing.T) {
	t.Parallel()
	bucket := memblob.OpenBucket(nil)
	s := NewStore(bucket)
	defer s.Close()

	for _, id := range []string{"20250301T100000-aaaa1111", "20250302T090000-bbbb2222"} {
		data, err := json.Marshal(Transcript{ID: id, Server: "http://localhost:8000", Messages: sampleHistory()})
		require.NoError(t, err)
		require.NoError(t, bucket.WriteAll(t.Context(), id+".json", data, nil))
	}

	got, err := s.Find(t.Context(), "20250302T090000-bbbb2222")
	require.NoError(t, err)
	assert.Equal(t, "20250302T090000-bbbb2222", got.ID)

	got, err = s.Find(t.Context(), "AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, "20250301T100000-aaaa1111", got.ID)

	_, err = s.Find(t.Context(), "2025030")
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = s.Find(t.Context(), "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindSameLengthIDs(t *testing.T) {
	t.Parallel()
	bucket := memblob.OpenBucket(nil)
	s := NewStore(bucket)
	defer s.Close()

	for _, id := range []string{"20261019T101010-aaaa1111", "20261019T101011-bbbb2222"} {
		data, err := json.Marshal(Transcript{ID: id, Server: "http://localhost:8000", Messages: sampleHistory()})
		require.NoError(t, err)
		require.NoError(t, bucket.WriteAll(t.Context(), id+".json", data, nil))
	}

	got, err := s.Find(t.Context(), "1111")
	require.NoError(t, err)
	assert.Equal(t, "20261019T101010-aaaa1111", got.ID)

	got, err = s.Find(t.Context(), "bbbb")
	require.NoError(t, err)
	assert.Equal(t, "20261019T101011-bbbb2222", got.ID)

	got, err = s.Find(t.Context(), "0a1")
	require.NoError(t, err, "subsequence match falls back to fuzzy ranking")
	assert.Equal(t, "20261019T101010-aaaa1111", got.ID)

	_, err = s.Find(t.Context(), "20261019T10101")
	assert.ErrorIs(t, err, ErrAmbiguous)
}
