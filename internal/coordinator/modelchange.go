package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/inkdown/inkdex/internal/settings"
)

// ModelChange is a provider/model pair picked in the settings UI.
type ModelChange struct {
	Provider string
	Model    string
}

// String rebuilds the single-string selection value.
func (m ModelChange) String() string {
	return m.Provider + "|" + m.Model
}

// ParseEmbeddingModelValue splits a settings selection value into its
// provider and model halves. The separator is the first '|'; anything
// after it, further pipes included, belongs to the model name. Values
// arrive exactly as the shell stores them, so nothing is trimmed.
// Both halves must be non-empty.
func ParseEmbeddingModelValue(value string) (ModelChange, bool) {
	provider, model, found := strings.Cut(value, "|")
	if !found || provider == "" || model == "" {
		return ModelChange{}, false
	}
	return ModelChange{Provider: provider, Model: model}, true
}

// modelGate holds the one staged model change awaiting the user's
// confirmation. The staged pair is global to the coordinator: it does
// not remember which workspace staged it, and a confirm for a
// different workspace applies it there.
type modelGate struct {
	mu      sync.Mutex
	staged  *ModelChange
	visible bool
}

func (g *modelGate) stage(change ModelChange) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.staged = &change
	g.visible = true
}

func (g *modelGate) clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.staged = nil
	g.visible = false
}

// pending returns a copy of the staged pair, nil when nothing is staged.
func (g *modelGate) pending() *ModelChange {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.staged == nil {
		return nil
	}
	out := *g.staged
	return &out
}

// awaiting reports whether the confirmation dialog is up.
func (g *modelGate) awaiting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.visible
}

// HandleModelChangeRequest reacts to the user picking an embedding
// model. value is the opaque "provider|model" selection string,
// current the workspace's stored config (nil when unconfigured) and
// indexedCount its indexed-document count.
//
// An unchanged pair, or a workspace with nothing indexed yet, is
// applied right away. A real change on an indexed workspace is only
// staged: applying it invalidates every stored embedding, so the shell
// shows a confirmation dialog before anything is written.
func (c *Coordinator) HandleModelChangeRequest(ctx context.Context, value, workspacePath string, current *settings.IndexingConfig, indexedCount int) error {
	change, ok := ParseEmbeddingModelValue(value)
	if !ok {
		// Malformed values come from stale or transitional UI state.
		c.logger.Debug("ignoring malformed model selection",
			slog.String("value", value),
			slog.String("workspace", workspacePath))
		return nil
	}

	unchanged := current != nil &&
		current.EmbeddingProvider == change.Provider &&
		current.EmbeddingModel == change.Model

	if unchanged || indexedCount == 0 {
		return c.configs.SetIndexingConfig(ctx, workspacePath, change.Provider, change.Model, nil)
	}

	c.gate.stage(change)
	c.logger.Info("model change awaiting confirmation",
		slog.String("workspace", workspacePath),
		slog.String("provider", change.Provider),
		slog.String("model", change.Model),
		slog.Int("indexed_docs", indexedCount))
	return nil
}

// ConfirmModelChange applies the staged pair to the workspace and,
// when forceReindex is set, rebuilds its index with the new model and
// refreshes the indexed count. A failed rebuild is logged and
// swallowed; the stored config already changed, the next manual index
// run repairs the index. No-op when nothing is staged.
func (c *Coordinator) ConfirmModelChange(ctx context.Context, workspacePath string, forceReindex bool) error {
	pending := c.gate.pending()
	if pending == nil {
		return nil
	}

	// Whatever happens below, the dialog closes and the staged pair is
	// dropped. A failed apply must not leave a zombie confirmation.
	defer c.gate.clear()

	current, err := c.configs.GetIndexingConfig(ctx, workspacePath)
	if err != nil {
		return err
	}
	var autoIndex *bool
	if current != nil {
		autoIndex = &current.AutoIndex
	}

	if err := c.configs.SetIndexingConfig(ctx, workspacePath, pending.Provider, pending.Model, autoIndex); err != nil {
		return err
	}

	if forceReindex {
		if _, err := c.IndexWorkspace(ctx, workspacePath, pending.Provider, pending.Model, true); err != nil {
			c.logger.Warn("re-index after model change failed",
				slog.String("workspace", workspacePath),
				slog.String("error", err.Error()))
		} else {
			c.LoadIndexingMeta(ctx, workspacePath)
		}
	}

	return nil
}

// CancelModelChange discards the staged pair without touching the
// stored config or the engine.
func (c *Coordinator) CancelModelChange() {
	c.gate.clear()
}
