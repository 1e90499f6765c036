// Package watcher reports when a single document changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events one save produces.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher watches one file. The parent directory is watched so that
// editors that save by rename are still seen.
type FileWatcher struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger
}

func New(path string, debounce time.Duration, log zerolog.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{path: abs, debounce: debounce, log: log}, nil
}

// Run calls onChange after each settled burst of writes to the file and
// returns when ctx is done. onChange runs on the watcher goroutine, so
// changes during a slow onChange are coalesced into the next call.
func (w *FileWatcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug().Str("file", w.path).Str("op", event.Op.String()).Msg("file event")
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		case <-timer.C:
			w.log.Info().Str("file", w.path).Msg("file changed")
			onChange(ctx)
		}
	}
}
