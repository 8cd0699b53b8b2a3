package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
)

const (
	// settingsDirName is the per-workspace directory holding shell state.
	settingsDirName = ".inkdown"

	// settingsFileName is the settings document within that directory.
	settingsFileName = "settings.json"

	// lockFileName serializes writers across processes.
	lockFileName = ".settings.lock"
)

// Backend loads and saves settings documents for workspaces.
type Backend interface {
	// Load reads the workspace's settings document. A missing file is
	// not an error: an empty document is returned.
	Load(ctx context.Context, workspacePath string) (*Document, error)

	// Save atomically replaces the workspace's settings document.
	Save(ctx context.Context, workspacePath string, doc *Document) error
}

// FileBackend stores settings documents under <workspace>/.inkdown.
// The shell process writes the same file, so saves take a cross-process
// file lock and go through a temp file plus rename.
type FileBackend struct{}

// NewFileBackend creates a filesystem-backed settings store.
func NewFileBackend() *FileBackend {
	return &FileBackend{}
}

// SettingsPath returns the settings document path for a workspace.
func (b *FileBackend) SettingsPath(workspacePath string) string {
	return filepath.Join(workspacePath, settingsDirName, settingsFileName)
}

// Load reads and parses the workspace's settings document.
func (b *FileBackend) Load(ctx context.Context, workspacePath string) (*Document, error) {
	if workspacePath == "" {
		return nil, inkerrors.New(inkerrors.ErrCodeInvalidPath, "workspace path is empty", nil)
	}

	path := b.SettingsPath(workspacePath)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, inkerrors.New(inkerrors.ErrCodeSettingsLoad,
			fmt.Sprintf("failed to read %s", path), err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, inkerrors.New(inkerrors.ErrCodeSettingsCorrupt,
			fmt.Sprintf("failed to parse %s", path), err).
			WithSuggestion(fmt.Sprintf("restore settings.json from a backup in %s",
				filepath.Join(workspacePath, settingsDirName)))
	}
	return &doc, nil
}

// Save atomically replaces the workspace's settings document. The
// previous version is kept as a timestamped backup first.
func (b *FileBackend) Save(ctx context.Context, workspacePath string, doc *Document) error {
	if workspacePath == "" {
		return inkerrors.New(inkerrors.ErrCodeInvalidPath, "workspace path is empty", nil)
	}
	if doc == nil {
		return inkerrors.New(inkerrors.ErrCodeInvalidInput, "settings document is nil", nil)
	}

	dir := filepath.Join(workspacePath, settingsDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return inkerrors.New(inkerrors.ErrCodeSettingsSave,
			"failed to create settings directory", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return inkerrors.New(inkerrors.ErrCodeSettingsSave,
			"failed to lock settings file", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return inkerrors.New(inkerrors.ErrCodeSettingsSave,
			"failed to encode settings", err)
	}

	path := b.SettingsPath(workspacePath)
	if err := b.backupCurrent(path); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return inkerrors.New(inkerrors.ErrCodeSettingsSave,
			"failed to write settings file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return inkerrors.New(inkerrors.ErrCodeSettingsSave,
			"failed to replace settings file", err)
	}
	return nil
}
