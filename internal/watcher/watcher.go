package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed.
	OpRename
	// OpSettingsChange indicates the workspace's .inkdown/settings.json
	// was rewritten. The shell owns that file, so a change means the
	// daemon's cached indexing config may be stale.
	OpSettingsChange
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpSettingsChange:
		return "SETTINGS_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event within a workspace.
type FileEvent struct {
	// Path is the path relative to the workspace root.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// Debounce is the time to wait before emitting coalesced events.
	// Editors rewrite a note many times per second while it is being
	// typed; the window turns that into one event. Default: 500ms.
	Debounce time.Duration

	// PollInterval is the scan interval for polling mode (fallback).
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 256
	EventBufferSize int

	// Extensions are the note file extensions to watch, lowercase with
	// leading dot. Default: .md, .markdown, .txt
	Extensions []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:        500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 256,
		Extensions:      []string{".md", ".markdown", ".txt"},
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Debounce == 0 {
		o.Debounce = defaults.Debounce
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if len(o.Extensions) == 0 {
		o.Extensions = defaults.Extensions
	}
	return o
}

// IsNote reports whether the path has one of the watched extensions.
func (o Options) IsNote(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, want := range o.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}
