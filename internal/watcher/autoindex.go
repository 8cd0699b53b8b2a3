package watcher

import (
	"context"
	"log/slog"

	"github.com/inkdown/inkdex/internal/settings"
)

// Indexer is the slice of the coordinator the watcher needs.
type Indexer interface {
	// GetIndexingConfig returns the workspace's stored indexing config,
	// nil when the workspace has none.
	GetIndexingConfig(ctx context.Context, workspacePath string) (*settings.IndexingConfig, error)

	// IndexNote indexes one note, returning false when it was skipped
	// or failed.
	IndexNote(ctx context.Context, workspacePath, notePath, provider, model string) bool

	// InvalidateIndexingConfig drops the cached config for a workspace.
	InvalidateIndexingConfig(workspacePath string)
}

// AutoIndexer reacts to watcher batches: note saves become single-note
// index runs when the workspace has auto-indexing enabled, and settings
// rewrites invalidate the cached config.
type AutoIndexer struct {
	indexer Indexer
	logger  *slog.Logger
}

// NewAutoIndexer creates an auto-indexer over the given coordinator.
func NewAutoIndexer(indexer Indexer, logger *slog.Logger) *AutoIndexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoIndexer{indexer: indexer, logger: logger}
}

// HandleBatch processes one debounced batch for a workspace.
func (a *AutoIndexer) HandleBatch(ctx context.Context, workspacePath string, events []FileEvent) {
	notes := make([]string, 0, len(events))
	for _, event := range events {
		switch event.Operation {
		case OpSettingsChange:
			// The shell rewrote settings.json; the cached config may
			// disagree with disk now.
			a.indexer.InvalidateIndexingConfig(workspacePath)
			a.logger.Debug("settings changed, config cache invalidated",
				slog.String("workspace", workspacePath))
		case OpCreate, OpModify:
			if !event.IsDir {
				notes = append(notes, event.Path)
			}
		default:
			// Deletes and renames are reconciled by the next full
			// index run.
		}
	}

	if len(notes) == 0 {
		return
	}

	cfg, err := a.indexer.GetIndexingConfig(ctx, workspacePath)
	if err != nil {
		a.logger.Warn("auto-index skipped, config unavailable",
			slog.String("workspace", workspacePath),
			slog.String("error", err.Error()))
		return
	}
	if !cfg.Configured() || !cfg.AutoIndex {
		a.logger.Debug("auto-index disabled for workspace",
			slog.String("workspace", workspacePath))
		return
	}

	for _, notePath := range notes {
		if a.indexer.IndexNote(ctx, workspacePath, notePath, cfg.EmbeddingProvider, cfg.EmbeddingModel) {
			a.logger.Debug("note re-indexed",
				slog.String("workspace", workspacePath),
				slog.String("note", notePath))
		}
	}
}
