package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{
		Path:      "inbox.md",
		Operation: OpCreate,
		Timestamp: time.Now(),
	})

	select {
	case events := <-d.Output():
		require.Len(t, events, 1)
		assert.Equal(t, "inbox.md", events[0].Path)
		assert.Equal(t, OpCreate, events[0].Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_SaveBurst_Coalesces(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// Editors rewrite the file on every keystroke pause.
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{
			Path:      "daily/2026-08-22.md",
			Operation: OpModify,
			Timestamp: time.Now(),
		})
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case events := <-d.Output():
		require.Len(t, events, 1)
		assert.Equal(t, "daily/2026-08-22.md", events[0].Path)
		assert.Equal(t, OpModify, events[0].Operation)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for debounced events")
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "scratch.md", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "scratch.md", Operation: OpDelete, Timestamp: time.Now()})

	// The file never really existed; nothing should come out.
	select {
	case events := <-d.Output():
		assert.Empty(t, events)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncer_ModifyThenDelete_DeleteOnly(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "archive/old.md", Operation: OpModify, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "archive/old.md", Operation: OpDelete, Timestamp: time.Now()})

	select {
	case events := <-d.Output():
		require.Len(t, events, 1)
		assert.Equal(t, OpDelete, events[0].Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_DeleteThenCreate_ModifyEvent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// Atomic saves delete and recreate; the note was replaced.
	d.Add(FileEvent{Path: "ideas.md", Operation: OpDelete, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "ideas.md", Operation: OpCreate, Timestamp: time.Now()})

	select {
	case events := <-d.Output():
		require.Len(t, events, 1)
		assert.Equal(t, OpModify, events[0].Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_CreateThenModify_CreateOnly(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "new-note.md", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "new-note.md", Operation: OpModify, Timestamp: time.Now()})

	select {
	case events := <-d.Output():
		require.Len(t, events, 1)
		assert.Equal(t, OpCreate, events[0].Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_DifferentNotes_IndependentEvents(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.md", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "b.md", Operation: OpModify, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "c.md", Operation: OpDelete, Timestamp: time.Now()})

	select {
	case events := <-d.Output():
		require.Len(t, events, 3)

		ops := make(map[string]Operation)
		for _, e := range events {
			ops[e.Path] = e.Operation
		}
		assert.Equal(t, OpCreate, ops["a.md"])
		assert.Equal(t, OpModify, ops["b.md"])
		assert.Equal(t, OpDelete, ops["c.md"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced events")
	}
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	d.Stop()
	d.Stop()

	select {
	case _, ok := <-d.Output():
		assert.False(t, ok, "channel should be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestDebouncer_AddAfterStop_Dropped(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()

	// Must not panic or emit.
	d.Add(FileEvent{Path: "late.md", Operation: OpCreate, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)
}

func BenchmarkDebouncer_SaveBurst(b *testing.B) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	event := FileEvent{
		Path:      "daily/2026-08-22.md",
		Operation: OpModify,
		Timestamp: time.Now(),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Add(event)
	}
}
