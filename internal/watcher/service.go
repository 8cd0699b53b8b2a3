package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
)

// Service runs one NoteWatcher per workspace and feeds their batches
// into an AutoIndexer. Workspaces are added lazily as the daemon sees
// them and watched until Close.
type Service struct {
	auto   *AutoIndexer
	logger *slog.Logger
	opts   Options

	mu      sync.Mutex
	watched map[string]*workspaceWatch
	closed  bool
}

type workspaceWatch struct {
	watcher *NoteWatcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewService creates a watching service driving the given indexer.
func NewService(indexer Indexer, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auto:    NewAutoIndexer(indexer, logger),
		logger:  logger,
		opts:    opts.WithDefaults(),
		watched: make(map[string]*workspaceWatch),
	}
}

// EnsureWatching starts watching a workspace if it isn't already.
// Idempotent; concurrent calls for the same workspace are safe.
func (s *Service) EnsureWatching(workspacePath string) error {
	if workspacePath == "" {
		return fmt.Errorf("workspace path is empty")
	}

	info, err := os.Stat(workspacePath)
	if err != nil {
		return fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace path is not a directory: %s", workspacePath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("watcher service is closed")
	}
	if _, ok := s.watched[workspacePath]; ok {
		return nil
	}

	nw, err := NewNoteWatcher(s.opts)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	watch := &workspaceWatch{
		watcher: nw,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.watched[workspacePath] = watch

	go s.consume(ctx, workspacePath, nw)
	go func() {
		defer close(watch.done)
		if err := nw.Start(ctx, workspacePath); err != nil && ctx.Err() == nil {
			s.logger.Error("workspace watcher stopped",
				slog.String("workspace", workspacePath),
				slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("watching workspace",
		slog.String("workspace", workspacePath),
		slog.String("mode", nw.Mode()))
	return nil
}

// consume drains one watcher's batches and errors.
func (s *Service) consume(ctx context.Context, workspacePath string, nw *NoteWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-nw.Events():
			if !ok {
				return
			}
			s.auto.HandleBatch(ctx, workspacePath, batch)
		case err, ok := <-nw.Errors():
			if !ok {
				return
			}
			s.logger.Warn("watcher error",
				slog.String("workspace", workspacePath),
				slog.String("error", err.Error()))
		}
	}
}

// Unwatch stops watching a workspace. A no-op for unknown paths.
func (s *Service) Unwatch(workspacePath string) {
	s.mu.Lock()
	watch, ok := s.watched[workspacePath]
	if ok {
		delete(s.watched, workspacePath)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	watch.cancel()
	_ = watch.watcher.Stop()
	<-watch.done
	s.logger.Info("stopped watching workspace",
		slog.String("workspace", workspacePath))
}

// Watched returns the watched workspace paths, sorted.
func (s *Service) Watched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.watched))
	for path := range s.watched {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Close stops every watcher. The service cannot be reused afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	watches := make(map[string]*workspaceWatch, len(s.watched))
	for path, watch := range s.watched {
		watches[path] = watch
	}
	s.watched = make(map[string]*workspaceWatch)
	s.mu.Unlock()

	for _, watch := range watches {
		watch.cancel()
		_ = watch.watcher.Stop()
		<-watch.done
	}
}
