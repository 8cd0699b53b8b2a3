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
	"time"
)

// PollingWatcher detects file changes by periodically scanning the
// workspace. Used as a fallback when fsnotify is not available.
//
// Hidden directories are skipped during scans; the settings document
// is tracked separately with a direct stat per pass.
type PollingWatcher struct {
	interval  time.Duration
	fileState map[string]fileSnapshot
	events    chan FileEvent
	errors    chan error
	stopCh    chan struct{}
	mu        sync.Mutex
	stopped   bool
	rootPath  string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a new polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval:  interval,
		fileState: make(map[string]fileSnapshot),
		events:    make(chan FileEvent, 100),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
}

// Start begins watching the given directory by polling. It blocks until
// the context is cancelled or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absPath

	// Initial scan establishes the baseline; only later changes emit.
	if err := p.detect(false); err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detect(true); err != nil {
				select {
				case p.errors <- err:
				default:
				}
			}
		}
	}
}

// Stop stops the polling watcher. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// detect scans the workspace, compares against the previous snapshot
// and, when emit is set, sends an event per difference.
func (p *PollingWatcher) detect(emit bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]fileSnapshot)

	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(p.rootPath, path)
		if err != nil || relPath == "." {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		current[relPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk workspace for changes: %w", err)
	}

	// The settings document lives in a hidden directory the walk skips.
	settingsRel := filepath.Join(settingsDir, settingsFile)
	if info, err := os.Stat(filepath.Join(p.rootPath, settingsRel)); err == nil {
		current[settingsRel] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}

	if emit {
		for relPath, snapshot := range current {
			prev, exists := p.fileState[relPath]
			switch {
			case !exists:
				p.emitEvent(FileEvent{
					Path:      relPath,
					Operation: OpCreate,
					IsDir:     snapshot.isDir,
					Timestamp: time.Now(),
				})
			case prev.modTime != snapshot.modTime || prev.size != snapshot.size:
				p.emitEvent(FileEvent{
					Path:      relPath,
					Operation: OpModify,
					IsDir:     snapshot.isDir,
					Timestamp: time.Now(),
				})
			}
		}

		for relPath, snapshot := range p.fileState {
			if _, exists := current[relPath]; !exists {
				p.emitEvent(FileEvent{
					Path:      relPath,
					Operation: OpDelete,
					IsDir:     snapshot.isDir,
					Timestamp: time.Now(),
				})
			}
		}
	}

	p.fileState = current
	return nil
}

// emitEvent sends an event to the events channel.
// Must be called with lock held.
func (p *PollingWatcher) emitEvent(event FileEvent) {
	if p.stopped {
		return
	}

	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}
