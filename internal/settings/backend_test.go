package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
)

func TestFileBackend_LoadMissingFile(t *testing.T) {
	backend := NewFileBackend()
	workspace := t.TempDir()

	doc, err := backend.Load(context.Background(), workspace)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Nil(t, doc.Indexing)
}

func TestFileBackend_LoadEmptyWorkspacePath(t *testing.T) {
	backend := NewFileBackend()

	_, err := backend.Load(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeInvalidPath, inkerrors.GetCode(err))
}

func TestFileBackend_SaveLoadRoundTrip(t *testing.T) {
	backend := NewFileBackend()
	workspace := t.TempDir()

	doc := NewDocument()
	doc.Indexing = &IndexingConfig{
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "nomic-embed-text",
		AutoIndex:         true,
	}
	require.NoError(t, backend.Save(context.Background(), workspace, doc))

	// The document lands inside the workspace's .inkdown directory.
	assert.FileExists(t, filepath.Join(workspace, ".inkdown", "settings.json"))

	loaded, err := backend.Load(context.Background(), workspace)
	require.NoError(t, err)
	require.NotNil(t, loaded.Indexing)
	assert.Equal(t, "ollama", loaded.Indexing.EmbeddingProvider)
	assert.Equal(t, "nomic-embed-text", loaded.Indexing.EmbeddingModel)
	assert.True(t, loaded.Indexing.AutoIndex)
}

func TestFileBackend_SavePreservesShellSections(t *testing.T) {
	backend := NewFileBackend()
	workspace := t.TempDir()

	settingsDir := filepath.Join(workspace, ".inkdown")
	require.NoError(t, os.MkdirAll(settingsDir, 0755))
	seed := []byte(`{"appearance": {"theme": "dark"}, "hotkeys": {"toggle-sidebar": "cmd+\\"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(settingsDir, "settings.json"), seed, 0644))

	doc, err := backend.Load(context.Background(), workspace)
	require.NoError(t, err)
	doc.Indexing = &IndexingConfig{EmbeddingProvider: "openai", EmbeddingModel: "text-embedding-3-small"}
	require.NoError(t, backend.Save(context.Background(), workspace, doc))

	reloaded, err := backend.Load(context.Background(), workspace)
	require.NoError(t, err)

	appearance, ok := reloaded.Section("appearance")
	require.True(t, ok, "appearance section should survive the save")
	assert.JSONEq(t, `{"theme": "dark"}`, string(appearance))

	hotkeys, ok := reloaded.Section("hotkeys")
	require.True(t, ok, "hotkeys section should survive the save")
	assert.JSONEq(t, `{"toggle-sidebar": "cmd+\\"}`, string(hotkeys))

	require.NotNil(t, reloaded.Indexing)
	assert.Equal(t, "openai", reloaded.Indexing.EmbeddingProvider)
}

func TestFileBackend_LoadCorruptFile(t *testing.T) {
	backend := NewFileBackend()
	workspace := t.TempDir()

	settingsDir := filepath.Join(workspace, ".inkdown")
	require.NoError(t, os.MkdirAll(settingsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(settingsDir, "settings.json"), []byte("{not json"), 0644))

	_, err := backend.Load(context.Background(), workspace)
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeSettingsCorrupt, inkerrors.GetCode(err))
	assert.True(t, inkerrors.IsFatal(err))
}

func TestFileBackend_SaveNilDocument(t *testing.T) {
	backend := NewFileBackend()

	err := backend.Save(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeInvalidInput, inkerrors.GetCode(err))
}

func TestFileBackend_SaveKeepsBackups(t *testing.T) {
	backend := NewFileBackend()
	workspace := t.TempDir()
	ctx := context.Background()

	// First save has nothing to back up.
	doc := NewDocument()
	doc.Indexing = &IndexingConfig{EmbeddingProvider: "ollama", EmbeddingModel: "v1"}
	require.NoError(t, backend.Save(ctx, workspace, doc))

	backups, err := backend.ListBackups(workspace)
	require.NoError(t, err)
	assert.Empty(t, backups)

	// Every following save snapshots the previous version.
	for _, model := range []string{"v2", "v3", "v4", "v5", "v6"} {
		doc.Indexing.EmbeddingModel = model
		require.NoError(t, backend.Save(ctx, workspace, doc))
	}

	backups, err = backend.ListBackups(workspace)
	require.NoError(t, err)
	require.NotEmpty(t, backups)
	assert.LessOrEqual(t, len(backups), MaxBackups)

	// Newest backup holds the version replaced last.
	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "v5")
}

func TestFileBackend_SettingsPath(t *testing.T) {
	backend := NewFileBackend()

	path := backend.SettingsPath("/home/user/notes")
	assert.Equal(t, filepath.Join("/home/user/notes", ".inkdown", "settings.json"), path)
}
