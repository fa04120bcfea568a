// Package watch re-uploads the selected document when it changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Event reports that the watched file was written or re-created.
type Event struct {
	Path string
	At   time.Time
}

// Watcher observes a single file. The parent directory is watched so that
// rename-on-save editors are still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a watcher for path.
func New(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		watcher:  w,
		path:     abs,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Watch starts monitoring and emits one Event per settled burst of changes.
// The channel closes when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	events := make(chan Event, 1)

	go func() {
		defer close(events)

		timer := time.NewTimer(w.debounce)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if pending && !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
				pending = true
			case <-timer.C:
				pending = false
				select {
				case events <- Event{Path: w.path, At: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("file watcher error", "path", w.path, "error", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// Uploader is the part of the chat client watch mode drives.
type Uploader interface {
	UploadIfChanged(ctx context.Context) (bool, error)
}

// AutoUpload calls target for every event until the channel closes.
// Events that arrive while the client is busy are dropped.
func AutoUpload(ctx context.Context, events <-chan Event, target Uploader, busy error, logger *slog.Logger) {
	for ev := range events {
		attempted, err := target.UploadIfChanged(ctx)
		switch {
		case err != nil && busy != nil && errors.Is(err, busy):
			logger.Info("skipped re-upload, request in progress", "path", ev.Path)
		case err != nil:
			logger.Warn("re-upload failed", "path", ev.Path, "error", err)
		case attempted:
			logger.Info("re-uploaded changed document", "path", ev.Path)
		default:
			logger.Debug("document content unchanged", "path", ev.Path)
		}
	}
}

// Follow watches path and re-uploads through target until the returned stop
// function is called.
func Follow(ctx context.Context, path string, target Uploader, busy error, logger *slog.Logger) (func(), error) {
	w, err := New(path, DefaultDebounce, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := w.Watch(ctx)
	if err != nil {
		cancel()
		w.Stop()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		AutoUpload(ctx, events, target, busy, w.logger)
	}()

	w.logger.Info("watching document", "path", w.Path())
	return func() {
		cancel()
		w.Stop()
		<-done
		w.logger.Info("stopped watching document", "path", w.Path())
	}, nil
}
