package settings

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
)

// DefaultCacheSize bounds how many workspaces keep their indexing
// config in memory. Desktop sessions rarely open more than a handful.
const DefaultCacheSize = 64

// Store serves per-workspace indexing configs with a read-through
// cache in front of a Backend. The cache only ever reflects durable
// state: entries are added after a successful load or save, never
// speculatively.
type Store struct {
	backend Backend

	cache *lru.Cache[string, IndexingConfig]
	group singleflight.Group

	// writeMu serializes the load-merge-save cycle so concurrent
	// writers cannot drop each other's sections.
	writeMu sync.Mutex
}

// NewStore creates a config store over the given backend.
func NewStore(backend Backend) *Store {
	cache, _ := lru.New[string, IndexingConfig](DefaultCacheSize)
	return &Store{
		backend: backend,
		cache:   cache,
	}
}

// GetIndexingConfig returns the workspace's indexing config, loading it
// from the backend on first use. A workspace without an indexing
// section returns nil with no error and is not cached, so a section
// written later by another process becomes visible. An empty workspace
// path also returns nil.
func (s *Store) GetIndexingConfig(ctx context.Context, workspacePath string) (*IndexingConfig, error) {
	if workspacePath == "" {
		return nil, nil
	}

	if cfg, ok := s.cache.Get(workspacePath); ok {
		out := cfg
		return &out, nil
	}

	// Concurrent misses for one workspace share a single load.
	v, err, _ := s.group.Do(workspacePath, func() (any, error) {
		if cfg, ok := s.cache.Get(workspacePath); ok {
			out := cfg
			return &out, nil
		}

		doc, err := s.backend.Load(ctx, workspacePath)
		if err != nil {
			return nil, err
		}
		if doc.Indexing == nil {
			return (*IndexingConfig)(nil), nil
		}

		cfg := *doc.Indexing
		s.cache.Add(workspacePath, cfg)
		out := cfg
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*IndexingConfig), nil
}

// SetIndexingConfig writes the workspace's embedding selection. A nil
// autoIndex preserves the stored flag; the zero value applies to fresh
// documents. The full document is loaded first so unrelated sections
// survive the save.
func (s *Store) SetIndexingConfig(ctx context.Context, workspacePath, provider, model string, autoIndex *bool) error {
	if workspacePath == "" {
		return inkerrors.New(inkerrors.ErrCodeInvalidPath, "workspace path is empty", nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := s.backend.Load(ctx, workspacePath)
	if err != nil {
		return err
	}

	cfg := IndexingConfig{
		EmbeddingProvider: provider,
		EmbeddingModel:    model,
	}
	if autoIndex != nil {
		cfg.AutoIndex = *autoIndex
	} else if doc.Indexing != nil {
		cfg.AutoIndex = doc.Indexing.AutoIndex
	}
	doc.Indexing = &cfg

	if err := s.backend.Save(ctx, workspacePath, doc); err != nil {
		return err
	}

	// Only now is the new state durable. An empty model means the
	// workspace reverted to unconfigured, so the entry is dropped and
	// the next read goes back to disk.
	if cfg.EmbeddingModel == "" {
		s.cache.Remove(workspacePath)
	} else {
		s.cache.Add(workspacePath, cfg)
	}
	return nil
}

// Configs returns a snapshot of every cached workspace config.
func (s *Store) Configs() map[string]IndexingConfig {
	out := make(map[string]IndexingConfig, s.cache.Len())
	for _, key := range s.cache.Keys() {
		if cfg, ok := s.cache.Peek(key); ok {
			out[key] = cfg
		}
	}
	return out
}

// Invalidate drops a workspace's cached config, forcing the next read
// to hit the backend.
func (s *Store) Invalidate(workspacePath string) {
	s.cache.Remove(workspacePath)
}
