package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// DefaultAccept mirrors the file picker filter of the web client.
var DefaultAccept = []string{"*.pdf", "*.txt"}

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoMatch         = errors.New("no files matched")
)

const maxConcurrentReads = 8

// File is an in-memory document ready to be uploaded. Its content cannot
// change once the file is created.
type File struct {
	name    string
	content []byte
}

func NewFile(name string, content []byte) File {
	return File{name: name, content: bytes.Clone(content)}
}

func (f File) Name() string { return f.name }

func (f File) Size() int { return len(f.content) }

func (f File) Reader() io.Reader {
	return bytes.NewReader(f.content)
}

// Batch is an ordered, immutable set of files uploaded as one request.
type Batch struct {
	files []File
}

func NewBatch(files ...File) Batch {
	return Batch{files: append([]File(nil), files...)}
}

func (b Batch) Len() int { return len(b.files) }

func (b Batch) Files() []File {
	return append([]File(nil), b.files...)
}

func (b Batch) Names() []string {
	names := make([]string, len(b.files))
	for i, f := range b.files {
		names[i] = f.name
	}
	return names
}

// Accepts reports whether name matches one of the accepted patterns. The
// match is made on the base name and ignores case; the upload itself
// sends the extension lowercased. An empty accept list accepts everything.
func Accepts(accept []string, name string) bool {
	if len(accept) == 0 {
		return true
	}
	base := strings.ToLower(filepath.Base(name))
	for _, pattern := range accept {
		if ok, _ := doublestar.Match(strings.ToLower(pattern), base); ok {
			return true
		}
	}
	return false
}

// LoadBatch resolves paths into a Batch. An entry may be a plain file path
// or a doublestar glob. Files reached through a glob are silently filtered
// by accept, an explicit path with the wrong type is an error. Duplicates
// are kept once, in first-seen order.
func LoadBatch(ctx context.Context, accept []string, paths ...string) (Batch, error) {
	var resolved []string
	seen := make(map[string]bool)
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		resolved = append(resolved, p)
	}

	for _, p := range paths {
		if !hasMeta(p) {
			if !Accepts(accept, p) {
				return Batch{}, fmt.Errorf("%w: %s", ErrUnsupportedType, p)
			}
			add(p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return Batch{}, fmt.Errorf("expanding %q: %w", p, err)
		}
		n := 0
		for _, m := range matches {
			if Accepts(accept, m) {
				add(m)
				n++
			}
		}
		if n == 0 {
			return Batch{}, fmt.Errorf("%w: %s", ErrNoMatch, p)
		}
	}

	files := make([]File, len(resolved))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, p := range resolved {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			files[i] = File{name: filepath.Base(p), content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}
	return Batch{files: files}, nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}
