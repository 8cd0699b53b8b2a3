package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// settingsDir is the per-workspace directory owned by the shell.
	settingsDir = ".inkdown"

	// settingsFile is the settings document within that directory.
	settingsFile = "settings.json"
)

// NoteWatcher watches one workspace for note changes using fsnotify,
// falling back to polling when fsnotify cannot be created. Events are
// filtered to note files, debounced, and emitted in batches.
//
// Hidden directories are never watched, with one exception: the
// workspace's .inkdown directory is observed just enough to notice
// settings.json rewrites.
type NoteWatcher struct {
	fsWatcher      *fsnotify.Watcher
	pollWatcher    *PollingWatcher
	useFsnotify    bool
	debouncer      *Debouncer
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	rootPath       string
	settingsRel    string
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewNoteWatcher creates a new watcher with the given options.
// Attempts to use fsnotify first, falls back to polling if it fails.
func NewNoteWatcher(opts Options) (*NoteWatcher, error) {
	opts = opts.WithDefaults()

	w := &NoteWatcher{
		debouncer:   NewDebouncer(opts.Debounce),
		events:      make(chan []FileEvent, opts.EventBufferSize),
		errors:      make(chan error, 10),
		stopCh:      make(chan struct{}),
		settingsRel: filepath.Join(settingsDir, settingsFile),
		opts:        opts,
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		w.fsWatcher = fsw
		w.useFsnotify = true
	} else {
		w.useFsnotify = false
		w.pollWatcher = NewPollingWatcher(opts.PollInterval)
	}

	return w, nil
}

// Start begins watching the given workspace. It blocks until the
// context is cancelled or Stop is called.
func (w *NoteWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.rootPath = absPath

	go w.forwardDebouncedEvents(ctx)

	if w.useFsnotify {
		return w.startFsnotify(ctx)
	}
	return w.startPolling(ctx)
}

// startFsnotify runs the fsnotify-based event loop.
func (w *NoteWatcher) startFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.rootPath); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	// Watch the settings directory so shell-side config edits are seen.
	// Missing is fine; the directory appears with the first save.
	_ = w.fsWatcher.Add(filepath.Join(w.rootPath, settingsDir))

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// startPolling runs the polling-based fallback.
func (w *NoteWatcher) startPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.pollWatcher.Events():
				if !ok {
					return
				}
				w.accept(event)
			case err, ok := <-w.pollWatcher.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()

	return w.pollWatcher.Start(ctx, w.rootPath)
}

// handleFsnotifyEvent converts an fsnotify event and feeds it through
// the shared filter.
func (w *NoteWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	// New directories need to be added to the watch set before their
	// contents produce events. Hidden directories stay unwatched except
	// .inkdown, which carries the settings document.
	if isDir && event.Op&fsnotify.Create != 0 {
		if !hiddenPath(relPath) || relPath == settingsDir {
			_ = w.fsWatcher.Add(event.Name)
		}
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and friends carry no content change.
		return
	}

	w.accept(FileEvent{
		Path:      relPath,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// accept filters a raw event and hands it to the debouncer. Both the
// fsnotify and polling paths go through here.
func (w *NoteWatcher) accept(event FileEvent) {
	if event.Path == "." || event.Path == "" {
		return
	}

	// The settings document is the one hidden file we care about.
	if event.Path == w.settingsRel {
		w.debouncer.Add(FileEvent{
			Path:      event.Path,
			Operation: OpSettingsChange,
			Timestamp: time.Now(),
		})
		return
	}

	if hiddenPath(event.Path) {
		return
	}
	if event.IsDir {
		return
	}
	if !w.opts.IsNote(event.Path) {
		return
	}

	w.debouncer.Add(event)
}

// forwardDebouncedEvents forwards debounced batches to the output channel.
func (w *NoteWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			w.emitEvents(events)
		}
	}
}

// addRecursive adds all non-hidden directories under root to the
// fsnotify watcher.
func (w *NoteWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if !d.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return w.fsWatcher.Add(path)
		}
		if hiddenPath(relPath) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// hiddenPath reports whether any component of the relative path is a
// dotted entry.
func hiddenPath(relPath string) bool {
	for _, part := range strings.Split(relPath, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// emitEvents sends a batch to the output channel.
func (w *NoteWatcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

// emitError sends an error to the error channel.
func (w *NoteWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// DroppedBatches returns the number of event batches dropped due to
// buffer overflow.
func (w *NoteWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *NoteWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}

	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()

	if w.useFsnotify && w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.pollWatcher != nil {
		_ = w.pollWatcher.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of batched file events.
func (w *NoteWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of errors.
func (w *NoteWatcher) Errors() <-chan error {
	return w.errors
}

// Mode returns the watching mechanism in use ("fsnotify" or "polling").
func (w *NoteWatcher) Mode() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}
