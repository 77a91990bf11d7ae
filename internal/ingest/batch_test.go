package ingest

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestNewFileCopiesContent(t *testing.T) {
	t.Parallel()
	content := []byte("guía")
	f := NewFile("guia.txt", content)
	content[0] = 'X'

	got, err := io.ReadAll(f.Reader())
	require.NoError(t, err)
	assert.Equal(t, "guía", string(got))
	assert.Equal(t, "guia.txt", f.Name())
	assert.Equal(t, len("guía"), f.Size())
}

func TestBatchIsImmutable(t *testing.T) {
	t.Parallel()
	files := []File{NewFile("a.pdf", []byte("a")), NewFile("b.txt", []byte("b"))}
	b := NewBatch(files...)
	files[0] = NewFile("z.pdf", nil)

	got := b.Files()
	got[1] = NewFile("y.pdf", nil)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []string{"a.pdf", "b.txt"}, b.Names())
}

func TestAccepts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		accept []string
		want   bool
	}{
		{name: "guia.pdf", accept: DefaultAccept, want: true},
		{name: "notas.txt", accept: DefaultAccept, want: true},
		{name: "dir/INFORME.PDF", accept: DefaultAccept, want: true},
		{name: "foto.png", accept: DefaultAccept, want: false},
		{name: "foto.png", accept: nil, want: true},
		{name: "datos.csv", accept: []string{"*.csv"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Accepts(tt.accept, tt.name))
		})
	}
}

func TestLoadBatchExplicitPaths(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"guia.pdf":  "pdf",
		"notas.txt": "txt",
	})

	b, err := LoadBatch(t.Context(), DefaultAccept,
		filepath.Join(dir, "notas.txt"),
		filepath.Join(dir, "guia.pdf"),
		filepath.Join(dir, "notas.txt"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"notas.txt", "guia.pdf"}, b.Names())

	content, err := io.ReadAll(b.Files()[1].Reader())
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(content))
}

func TestLoadBatchGlob(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"guides/a.pdf":        "a",
		"guides/nested/b.pdf": "b",
		"guides/c.png":        "c",
		"guides/d.txt":        "d",
	})

	b, err := LoadBatch(t.Context(), DefaultAccept, filepath.Join(dir, "guides", "**", "*"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf", "d.txt"}, b.Names())
}

func TestLoadBatchErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"foto.png": "png"})

	_, err := LoadBatch(t.Context(), DefaultAccept, filepath.Join(dir, "foto.png"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = LoadBatch(t.Context(), DefaultAccept, filepath.Join(dir, "*.pdf"))
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = LoadBatch(t.Context(), DefaultAccept, filepath.Join(dir, "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBatchEmpty(t *testing.T) {
	t.Parallel()
	b, err := LoadBatch(t.Context(), DefaultAccept)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}
