package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
)

const (
	// MaxBackups is the maximum number of settings backups kept per workspace.
	MaxBackups = 3

	// BackupSuffix is the file extension for backup files.
	BackupSuffix = ".bak"
)

// backupCurrent snapshots the current settings file before it is
// replaced. Missing file means a fresh workspace, nothing to back up.
func (b *FileBackend) backupCurrent(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return inkerrors.New(inkerrors.ErrCodeSettingsSave,
			"failed to read settings for backup", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	backupPath := fmt.Sprintf("%s%s.%s", path, BackupSuffix, timestamp)
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return inkerrors.New(inkerrors.ErrCodeSettingsSave,
			"failed to write settings backup", err)
	}

	// Best effort, the backup itself already succeeded.
	_ = cleanupOldBackups(path)
	return nil
}

// ListBackups returns the workspace's settings backups, newest first.
func (b *FileBackend) ListBackups(workspacePath string) ([]string, error) {
	return listBackups(b.SettingsPath(workspacePath))
}

func listBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list settings directory: %w", err)
	}

	var backups []string
	prefix := filepath.Base(path) + BackupSuffix + "."
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}

	// The timestamp suffix sorts lexically, newest first after reversal.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// cleanupOldBackups removes backups beyond MaxBackups, keeping the newest.
func cleanupOldBackups(path string) error {
	backups, err := listBackups(path)
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}
	for _, backup := range backups[MaxBackups:] {
		_ = os.Remove(backup)
	}
	return nil
}
