// Package watcher keeps workspace indexes fresh by watching note files
// on disk and re-indexing them as they change.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network
//     mounts, some synced vaults)
//
// Events are debounced to coalesce the rapid write bursts editors
// produce while a note is being typed, and filtered down to note files
// by extension. Changes to a workspace's settings document get their
// own event kind so the daemon can drop its cached indexing config.
//
// Usage:
//
//	svc := watcher.NewService(coord, logger, watcher.DefaultOptions())
//	defer svc.Close()
//
//	if err := svc.EnsureWatching("/path/to/workspace"); err != nil {
//	    return err
//	}
package watcher
