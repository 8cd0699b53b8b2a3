package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/engine"
	"github.com/inkdown/inkdex/internal/settings"
)

// fakeEngine implements Engine with overridable behavior per test.
type fakeEngine struct {
	indexWorkspaceFunc func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error)
	indexNoteFunc      func(ctx context.Context, params engine.NoteParams) (*engine.WorkspaceSummary, error)
	indexingMetaFunc   func(ctx context.Context, workspacePath string) (*engine.IndexingMeta, error)

	workspaceCalls atomic.Int32
	noteCalls      atomic.Int32
	metaCalls      atomic.Int32
}

func (f *fakeEngine) IndexWorkspace(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
	f.workspaceCalls.Add(1)
	if f.indexWorkspaceFunc != nil {
		return f.indexWorkspaceFunc(ctx, params)
	}
	return &engine.WorkspaceSummary{}, nil
}

func (f *fakeEngine) IndexNote(ctx context.Context, params engine.NoteParams) (*engine.WorkspaceSummary, error) {
	f.noteCalls.Add(1)
	if f.indexNoteFunc != nil {
		return f.indexNoteFunc(ctx, params)
	}
	return &engine.WorkspaceSummary{}, nil
}

func (f *fakeEngine) IndexingMeta(ctx context.Context, workspacePath string) (*engine.IndexingMeta, error) {
	f.metaCalls.Add(1)
	if f.indexingMetaFunc != nil {
		return f.indexingMetaFunc(ctx, workspacePath)
	}
	return &engine.IndexingMeta{}, nil
}

// memBackend keeps settings documents in memory, round-tripping them
// through JSON so tests exercise the real document codec.
type memBackend struct {
	mu      sync.Mutex
	raw     map[string]json.RawMessage
	loadErr error
	saveErr error
	loads   atomic.Int32
	saves   atomic.Int32
}

func newMemBackend() *memBackend {
	return &memBackend{raw: make(map[string]json.RawMessage)}
}

func (m *memBackend) Load(ctx context.Context, workspacePath string) (*settings.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.loads.Add(1)
	raw, ok := m.raw[workspacePath]
	if !ok {
		return settings.NewDocument(), nil
	}
	var doc settings.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (m *memBackend) Save(ctx context.Context, workspacePath string, doc *settings.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.raw[workspacePath] = raw
	m.saves.Add(1)
	return nil
}

// seed stores an indexing config for a workspace without counting as a save.
func (m *memBackend) seed(t *testing.T, workspacePath string, cfg settings.IndexingConfig) {
	t.Helper()
	doc := settings.NewDocument()
	doc.Indexing = &cfg
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	m.mu.Lock()
	m.raw[workspacePath] = raw
	m.mu.Unlock()
}

// config reads back the stored indexing config for a workspace.
func (m *memBackend) config(t *testing.T, workspacePath string) *settings.IndexingConfig {
	t.Helper()
	m.mu.Lock()
	raw, ok := m.raw[workspacePath]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	var doc settings.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc.Indexing
}

func newTestCoordinator(t *testing.T, eng *fakeEngine) (*Coordinator, *memBackend) {
	t.Helper()

	backend := newMemBackend()
	coord := New(Config{
		Engine:       eng,
		Settings:     settings.NewStore(backend),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		PollInterval: 25 * time.Millisecond,
	})
	t.Cleanup(coord.Close)
	return coord, backend
}

func TestNew_Defaults(t *testing.T) {
	coord := New(Config{
		Engine:   &fakeEngine{},
		Settings: settings.NewStore(newMemBackend()),
	})
	defer coord.Close()

	require.NotNil(t, coord)
	assert.Equal(t, 0, coord.IndexedDocCount())
	assert.False(t, coord.IsMetaLoading())
	assert.False(t, coord.AwaitingConfirmation())
	assert.Nil(t, coord.PendingModelChange())
	assert.Empty(t, coord.IndexingState())
}

func TestCoordinator_IndexWorkspace_Success(t *testing.T) {
	eng := &fakeEngine{
		indexWorkspaceFunc: func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
			return &engine.WorkspaceSummary{
				FilesDiscovered: 12,
				FilesProcessed:  10,
				DocsInserted:    10,
				SkippedFiles:    []string{"drafts/broken.md"},
			}, nil
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	summary, err := coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "nomic-embed-text", false)
	require.NoError(t, err)
	assert.Equal(t, 12, summary.FilesDiscovered)
	assert.Equal(t, 10, summary.FilesProcessed)
	assert.Equal(t, []string{"drafts/broken.md"}, summary.SkippedFiles)
	assert.False(t, coord.IsIndexing("/notes/work"))
}

func TestCoordinator_IndexWorkspace_ForwardsParams(t *testing.T) {
	var got engine.WorkspaceParams
	eng := &fakeEngine{
		indexWorkspaceFunc: func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
			got = params
			return &engine.WorkspaceSummary{}, nil
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	_, err := coord.IndexWorkspace(context.Background(), "/notes/work", "openai", "text-embedding-3-small", true)
	require.NoError(t, err)
	assert.Equal(t, "/notes/work", got.WorkspacePath)
	assert.Equal(t, "openai", got.EmbeddingProvider)
	assert.Equal(t, "text-embedding-3-small", got.EmbeddingModel)
	assert.True(t, got.Force)
}

func TestCoordinator_IndexWorkspace_RejectsWhileBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	eng := &fakeEngine{
		indexWorkspaceFunc: func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
			close(started)
			<-release
			return &engine.WorkspaceSummary{FilesProcessed: 3}, nil
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	var firstSummary *engine.WorkspaceSummary
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		firstSummary, firstErr = coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "m", false)
	}()

	<-started
	assert.True(t, coord.IsIndexing("/notes/work"))

	_, err := coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "m", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexingInProgress)
	assert.True(t, inkerrors.IsRetryable(err))
	assert.Equal(t, int32(1), eng.workspaceCalls.Load())

	close(release)
	<-done
	require.NoError(t, firstErr)
	assert.Equal(t, 3, firstSummary.FilesProcessed)
	assert.False(t, coord.IsIndexing("/notes/work"))
}

func TestCoordinator_IndexWorkspace_DistinctWorkspacesRunConcurrently(t *testing.T) {
	started := map[string]chan struct{}{
		"/notes/work":     make(chan struct{}),
		"/notes/personal": make(chan struct{}),
	}
	release := make(chan struct{})
	eng := &fakeEngine{
		indexWorkspaceFunc: func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
			close(started[params.WorkspacePath])
			<-release
			return &engine.WorkspaceSummary{}, nil
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	var wg sync.WaitGroup
	for _, workspace := range []string{"/notes/work", "/notes/personal"} {
		wg.Add(1)
		go func(ws string) {
			defer wg.Done()
			_, err := coord.IndexWorkspace(context.Background(), ws, "ollama", "m", false)
			assert.NoError(t, err)
		}(workspace)
	}

	<-started["/notes/work"]
	<-started["/notes/personal"]

	state := coord.IndexingState()
	assert.True(t, state["/notes/work"])
	assert.True(t, state["/notes/personal"])

	close(release)
	wg.Wait()
	assert.False(t, coord.IsIndexing("/notes/work"))
	assert.False(t, coord.IsIndexing("/notes/personal"))
}

func TestCoordinator_IndexWorkspace_NeverOverlaps(t *testing.T) {
	var inFlight atomic.Int32
	eng := &fakeEngine{
		indexWorkspaceFunc: func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
			if n := inFlight.Add(1); n > 1 {
				t.Errorf("saw %d concurrent runs for one workspace", n)
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return &engine.WorkspaceSummary{}, nil
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	var wins, busy atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "m", false)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrIndexingInProgress):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(16), wins.Load()+busy.Load())
	assert.GreaterOrEqual(t, wins.Load(), int32(1))
	assert.False(t, coord.IsIndexing("/notes/work"))
}

func TestCoordinator_IndexWorkspace_ClearsBusyOnFailure(t *testing.T) {
	eng := &fakeEngine{
		indexWorkspaceFunc: func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
			return nil, inkerrors.New(inkerrors.ErrCodeEngineCommand, "index.workspace failed", nil)
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	_, err := coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "m", false)
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeEngineCommand, inkerrors.GetCode(err))
	assert.False(t, coord.IsIndexing("/notes/work"))

	// The workspace accepts new work after a failed run.
	eng.indexWorkspaceFunc = nil
	_, err = coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "m", false)
	require.NoError(t, err)
}

func TestCoordinator_IndexNote_Success(t *testing.T) {
	var got engine.NoteParams
	eng := &fakeEngine{
		indexNoteFunc: func(ctx context.Context, params engine.NoteParams) (*engine.WorkspaceSummary, error) {
			got = params
			return &engine.WorkspaceSummary{FilesProcessed: 1}, nil
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	ok := coord.IndexNote(context.Background(), "/notes/work", "projects/inkdown.md", "ollama", "nomic-embed-text")
	assert.True(t, ok)
	assert.Equal(t, "/notes/work", got.WorkspacePath)
	assert.Equal(t, "projects/inkdown.md", got.NotePath)
	assert.False(t, coord.IsIndexing("/notes/work"))
}

func TestCoordinator_IndexNote_SkipsWhileWorkspaceBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	eng := &fakeEngine{
		indexWorkspaceFunc: func(ctx context.Context, params engine.WorkspaceParams) (*engine.WorkspaceSummary, error) {
			close(started)
			<-release
			return &engine.WorkspaceSummary{}, nil
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "m", false)
	}()

	<-started
	ok := coord.IndexNote(context.Background(), "/notes/work", "inbox.md", "ollama", "m")
	assert.False(t, ok)
	assert.Equal(t, int32(0), eng.noteCalls.Load())

	close(release)
	<-done

	// Once the run finishes the note goes through.
	ok = coord.IndexNote(context.Background(), "/notes/work", "inbox.md", "ollama", "m")
	assert.True(t, ok)
	assert.Equal(t, int32(1), eng.noteCalls.Load())
}

func TestCoordinator_IndexNote_FalseOnEngineError(t *testing.T) {
	eng := &fakeEngine{
		indexNoteFunc: func(ctx context.Context, params engine.NoteParams) (*engine.WorkspaceSummary, error) {
			return nil, inkerrors.New(inkerrors.ErrCodeRPCUnavailable, "engine not running", nil)
		},
	}
	coord, _ := newTestCoordinator(t, eng)

	ok := coord.IndexNote(context.Background(), "/notes/work", "inbox.md", "ollama", "m")
	assert.False(t, ok)
	assert.False(t, coord.IsIndexing("/notes/work"))
}

func TestCoordinator_GetSetIndexingConfig(t *testing.T) {
	coord, backend := newTestCoordinator(t, &fakeEngine{})
	ctx := context.Background()

	cfg, err := coord.GetIndexingConfig(ctx, "/notes/work")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, coord.SetIndexingConfig(ctx, "/notes/work", "ollama", "nomic-embed-text", nil))

	cfg, err = coord.GetIndexingConfig(ctx, "/notes/work")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "ollama", cfg.EmbeddingProvider)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)

	stored := backend.config(t, "/notes/work")
	require.NotNil(t, stored)
	assert.Equal(t, "nomic-embed-text", stored.EmbeddingModel)

	configs := coord.Configs()
	assert.Len(t, configs, 1)
	assert.Equal(t, "ollama", configs["/notes/work"].EmbeddingProvider)
}

func TestCoordinator_InvalidateIndexingConfig(t *testing.T) {
	coord, backend := newTestCoordinator(t, &fakeEngine{})
	ctx := context.Background()

	backend.seed(t, "/notes/work", settings.IndexingConfig{
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "nomic-embed-text",
	})

	_, err := coord.GetIndexingConfig(ctx, "/notes/work")
	require.NoError(t, err)
	_, err = coord.GetIndexingConfig(ctx, "/notes/work")
	require.NoError(t, err)
	assert.Equal(t, int32(1), backend.loads.Load())

	coord.InvalidateIndexingConfig("/notes/work")
	_, err = coord.GetIndexingConfig(ctx, "/notes/work")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.loads.Load())
}

func TestCoordinator_IndexingState_Snapshot(t *testing.T) {
	coord, _ := newTestCoordinator(t, &fakeEngine{})

	_, err := coord.IndexWorkspace(context.Background(), "/notes/work", "ollama", "m", false)
	require.NoError(t, err)

	state := coord.IndexingState()
	assert.False(t, state["/notes/work"])

	// Mutating the snapshot must not leak into the coordinator.
	state["/notes/work"] = true
	assert.False(t, coord.IsIndexing("/notes/work"))
}
