// Package coordinator drives workspace indexing for the Inkdown shell:
// per-workspace run exclusion, indexed-count polling for the active
// workspace, and the confirm-before-apply embedding model workflow.
// The heavy lifting happens in the indexing engine daemon; this package
// decides when the engine is called and with which configuration.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkdown/inkdex/internal/engine"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/settings"
)

// ErrIndexingInProgress is returned by IndexWorkspace when the
// workspace already has a run in flight. Callers match it with
// errors.Is.
var ErrIndexingInProgress = inkerrors.New(inkerrors.ErrCodeIndexBusy,
	"indexing already in progress", nil)

// Engine is the indexing engine as the coordinator consumes it.
// Production uses engine.Client; tests plug in fakes.
type Engine interface {
	IndexWorkspace(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error)
	IndexNote(ctx context.Context, params engine.NoteParams) (*engine.WorkspaceSummary, error)
	IndexingMeta(ctx context.Context, workspacePath string) (*engine.IndexingMeta, error)
}

// Config wires the coordinator's collaborators.
type Config struct {
	// Engine executes index runs. Required.
	Engine Engine

	// Settings serves per-workspace indexing configs. Required.
	Settings *settings.Store

	// Logger receives structured progress and degradation logs.
	// Nil falls back to slog.Default().
	Logger *slog.Logger

	// PollInterval overrides how often the tracked workspace's count
	// refreshes. Zero means DefaultPollInterval.
	PollInterval time.Duration
}

// Coordinator exposes the whole indexing surface to the daemon server
// and to in-process embedders of the sidecar.
type Coordinator struct {
	engine  Engine
	configs *settings.Store
	logger  *slog.Logger

	sched  *scheduler
	poller *metaPoller
	gate   *modelGate
}

// New creates a coordinator from its collaborators.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		engine:  cfg.Engine,
		configs: cfg.Settings,
		logger:  logger,
		sched:   newScheduler(),
		poller:  newMetaPoller(cfg.Engine, logger, cfg.PollInterval),
		gate:    &modelGate{},
	}
}

// GetIndexingConfig returns the workspace's stored indexing config,
// nil when the workspace has none.
func (c *Coordinator) GetIndexingConfig(ctx context.Context, workspacePath string) (*settings.IndexingConfig, error) {
	return c.configs.GetIndexingConfig(ctx, workspacePath)
}

// SetIndexingConfig writes the workspace's embedding selection. A nil
// autoIndex preserves the stored flag.
func (c *Coordinator) SetIndexingConfig(ctx context.Context, workspacePath, provider, model string, autoIndex *bool) error {
	return c.configs.SetIndexingConfig(ctx, workspacePath, provider, model, autoIndex)
}

// InvalidateIndexingConfig drops the cached config for a workspace so
// the next read goes back to disk. Used when the shell edits settings
// files outside the daemon.
func (c *Coordinator) InvalidateIndexingConfig(workspacePath string) {
	c.configs.Invalidate(workspacePath)
}

// IndexWorkspace runs a full index pass for the workspace. A workspace
// only ever has one run in flight: a second call while one is running
// fails fast with ErrIndexingInProgress instead of queueing behind it.
func (c *Coordinator) IndexWorkspace(ctx context.Context, workspacePath, provider, model string, force bool) (*engine.WorkspaceSummary, error) {
	if !c.sched.tryAcquire(workspacePath) {
		c.logger.Warn("index request rejected, workspace busy",
			slog.String("workspace", workspacePath))
		return nil, inkerrors.New(inkerrors.ErrCodeIndexBusy,
			fmt.Sprintf("indexing already in progress for %s", workspacePath), nil).
			WithDetail("workspace", workspacePath)
	}
	defer c.sched.release(workspacePath)

	c.logger.Info("indexing workspace",
		slog.String("workspace", workspacePath),
		slog.String("provider", provider),
		slog.String("model", model),
		slog.Bool("force", force))

	summary, err := c.engine.IndexWorkspace(ctx, engine.WorkspaceParams{
		WorkspacePath:     workspacePath,
		EmbeddingProvider: provider,
		EmbeddingModel:    model,
		Force:             force,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("workspace indexed",
		slog.String("workspace", workspacePath),
		slog.Int("files_processed", summary.FilesProcessed),
		slog.Int("docs_inserted", summary.DocsInserted),
		slog.Int("docs_deleted", summary.DocsDeleted))
	return summary, nil
}

// IndexNote indexes one note, skipping quietly when the workspace is
// mid-run. Auto-index calls arrive on every save; a skipped or failed
// save gets picked up by the next full run, so this never errors.
// Returns true only when the engine call succeeded.
func (c *Coordinator) IndexNote(ctx context.Context, workspacePath, notePath, provider, model string) bool {
	if !c.sched.tryAcquire(workspacePath) {
		c.logger.Debug("note skipped, workspace busy",
			slog.String("workspace", workspacePath),
			slog.String("note", notePath))
		return false
	}
	defer c.sched.release(workspacePath)

	_, err := c.engine.IndexNote(ctx, engine.NoteParams{
		WorkspacePath:     workspacePath,
		NotePath:          notePath,
		EmbeddingProvider: provider,
		EmbeddingModel:    model,
	})
	if err != nil {
		c.logger.Warn("failed to index note",
			slog.String("workspace", workspacePath),
			slog.String("note", notePath),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// LoadIndexingMeta refreshes the indexed-document count for the
// workspace and marks it as the tracked one. Fetch failures surface as
// a zero count, never as an error.
func (c *Coordinator) LoadIndexingMeta(ctx context.Context, workspacePath string) {
	c.poller.load(ctx, workspacePath)
}

// StartIndexingMetaPolling begins refreshing the workspace's count on
// an interval. Any previous polling loop is replaced.
func (c *Coordinator) StartIndexingMetaPolling(workspacePath string) {
	c.poller.start(workspacePath)
}

// StopIndexingMetaPolling cancels the polling loop. When clearTracked,
// the tracked-workspace marker is dropped too, so late fetch results
// are discarded.
func (c *Coordinator) StopIndexingMetaPolling(clearTracked bool) {
	c.poller.stop(clearTracked)
}

// IndexingState snapshots the per-workspace busy flags.
func (c *Coordinator) IndexingState() map[string]bool {
	return c.sched.snapshot()
}

// IsIndexing reports whether the workspace has a run in flight.
func (c *Coordinator) IsIndexing(workspacePath string) bool {
	return c.sched.isBusy(workspacePath)
}

// Configs snapshots the cached per-workspace indexing configs.
func (c *Coordinator) Configs() map[string]settings.IndexingConfig {
	return c.configs.Configs()
}

// IndexedDocCount returns the tracked workspace's last known count.
func (c *Coordinator) IndexedDocCount() int {
	return c.poller.count()
}

// IsMetaLoading reports whether a one-shot meta load is in flight.
func (c *Coordinator) IsMetaLoading() bool {
	return c.poller.isLoading()
}

// AwaitingConfirmation reports whether a model change waits for the
// user's decision.
func (c *Coordinator) AwaitingConfirmation() bool {
	return c.gate.awaiting()
}

// PendingModelChange returns a copy of the staged model change, nil
// when nothing is staged.
func (c *Coordinator) PendingModelChange() *ModelChange {
	return c.gate.pending()
}

// Close stops polling and drops the tracked workspace.
func (c *Coordinator) Close() {
	c.poller.stop(true)
}
