package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/medibot/medibot-cli/internal/logging"
)

// DefaultSettle is how long a directory must stay quiet before the files
// that changed in it are reported.
const DefaultSettle = time.Second

// WatchDirs reports files created or rewritten in dirs that accept admits.
// Changes are grouped: a group is sent once no accepted file has changed
// for settle. The channel is closed when ctx is done. Subdirectories are
// not watched.
func WatchDirs(ctx context.Context, accept []string, settle time.Duration, dirs ...string) (<-chan []string, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			w.Close()
			return nil, err
		}
		if !info.IsDir() {
			w.Close()
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	out := make(chan []string)
	go func() {
		defer close(out)
		defer w.Close()
		defer logging.RecoverPanic("ingest-watcher", nil)

		pending := make(map[string]struct{})
		var quiet <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if !Accepts(accept, ev.Name) {
					continue
				}
				if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
					continue
				}
				pending[ev.Name] = struct{}{}
				quiet = time.After(settle)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("watch error", "error", err)
			case <-quiet:
				quiet = nil
				group := make([]string, 0, len(pending))
				for name := range pending {
					group = append(group, name)
				}
				sort.Strings(group)
				clear(pending)
				select {
				case out <- group:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
