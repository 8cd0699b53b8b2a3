package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often the tracked workspace's indexed
// count is refreshed while polling runs.
const DefaultPollInterval = 5 * time.Second

// metaPoller keeps the indexed-document count for the workspace the
// shell currently shows. One workspace is tracked at a time. Every
// fetch remembers which workspace it was started for and its result
// only lands while that workspace is still the tracked one, so a slow
// response for an abandoned workspace can never overwrite newer state.
type metaPoller struct {
	engine   Engine
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	tracked  string
	docCount int
	loading  bool
	cancel   context.CancelFunc
}

func newMetaPoller(eng Engine, logger *slog.Logger, interval time.Duration) *metaPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &metaPoller{
		engine:   eng,
		logger:   logger,
		interval: interval,
	}
}

// load fetches the count for workspacePath once, marking it as the
// tracked workspace and raising the loading flag for the duration.
func (p *metaPoller) load(ctx context.Context, workspacePath string) {
	p.mu.Lock()
	p.tracked = workspacePath
	p.loading = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.tracked == workspacePath {
			p.loading = false
		}
		p.mu.Unlock()
	}()

	p.fetch(ctx, workspacePath)
}

// start begins polling for workspacePath. Any previous loop is stopped
// first; at most one loop is ever alive. The first count is fetched
// right away instead of waiting out the first tick, without touching
// the loading flag.
func (p *metaPoller) start(workspacePath string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.tracked = workspacePath
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		p.fetch(ctx, workspacePath)
		p.run(ctx)
	}()
}

// stop cancels the polling loop if one is running. When clearTracked,
// the tracked-workspace marker is dropped too, turning any in-flight
// fetch into a no-op at apply time.
func (p *metaPoller) stop(clearTracked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if clearTracked {
		p.tracked = ""
	}
}

// count returns the last applied indexed-document count.
func (p *metaPoller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docCount
}

// isLoading reports whether a one-shot load is in flight.
func (p *metaPoller) isLoading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// run ticks until cancelled. The tracked workspace is re-read on every
// tick, so a loop started for one workspace follows the marker when it
// moves.
func (p *metaPoller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			workspacePath := p.tracked
			p.mu.Unlock()
			if workspacePath == "" {
				continue
			}
			p.fetch(ctx, workspacePath)
		}
	}
}

// fetch asks the engine for the workspace's meta and applies the count
// under the tracked-workspace guard. A failed fetch counts as zero:
// the shell shows "not indexed" rather than a stale number, and no
// error escapes.
func (p *metaPoller) fetch(ctx context.Context, workspacePath string) {
	meta, err := p.engine.IndexingMeta(ctx, workspacePath)

	count := 0
	if err != nil {
		p.logger.Warn("failed to fetch indexing meta",
			slog.String("workspace", workspacePath),
			slog.String("error", err.Error()))
	} else if meta != nil {
		count = meta.IndexedDocCount
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tracked != workspacePath {
		return
	}
	p.docCount = count
}
