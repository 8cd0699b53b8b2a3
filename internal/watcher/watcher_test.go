package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{OpSettingsChange, "SETTINGS_CHANGE"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 500*time.Millisecond, opts.Debounce)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 256, opts.EventBufferSize)
	assert.Equal(t, []string{".md", ".markdown", ".txt"}, opts.Extensions)
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{Debounce: 100 * time.Millisecond}.WithDefaults()

	assert.Equal(t, 100*time.Millisecond, opts.Debounce)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 256, opts.EventBufferSize)
	assert.NotEmpty(t, opts.Extensions)
}

func TestOptions_IsNote(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		path string
		want bool
	}{
		{"inbox.md", true},
		{"daily/2026-08-22.md", true},
		{"NOTES.MD", true},
		{"guide.markdown", true},
		{"todo.txt", true},
		{"diagram.png", false},
		{"archive.md.bak", false},
		{"README", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, opts.IsNote(tt.path), "path %q", tt.path)
	}
}

func TestOptions_IsNote_CustomExtensions(t *testing.T) {
	opts := Options{Extensions: []string{".org"}}.WithDefaults()

	assert.True(t, opts.IsNote("journal.org"))
	assert.False(t, opts.IsNote("journal.md"))
}

func TestHiddenPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"inbox.md", false},
		{"projects/plan.md", false},
		{".inkdown", true},
		{".inkdown/settings.json", true},
		{"projects/.trash/old.md", true},
		{".git", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, hiddenPath(tt.path), "path %q", tt.path)
	}
}
