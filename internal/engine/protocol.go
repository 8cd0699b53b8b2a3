// Package engine provides the JSON-RPC client for the Inkdown indexing
// engine. The engine runs as its own daemon and owns index storage and
// embedding; this package only speaks its socket protocol.
package engine

import "fmt"

// JSON-RPC 2.0 method names exposed by the engine socket.
const (
	MethodIndexWorkspace = "index.workspace"
	MethodIndexNote      = "index.note"
	MethodIndexMeta      = "index.meta"
	MethodPing           = "engine.ping"
)

// WorkspaceParams are the parameters for a full workspace index run.
type WorkspaceParams struct {
	// WorkspacePath is the absolute workspace root (required).
	WorkspacePath string `json:"workspacePath"`

	// EmbeddingProvider selects the embedding backend (e.g. "ollama").
	EmbeddingProvider string `json:"embeddingProvider,omitempty"`

	// EmbeddingModel is the model name within the provider.
	EmbeddingModel string `json:"embeddingModel,omitempty"`

	// Force re-indexes every note even when fingerprints are unchanged.
	Force bool `json:"force,omitempty"`
}

// Validate checks that required fields are present.
func (p *WorkspaceParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// NoteParams are the parameters for indexing a single note.
type NoteParams struct {
	// WorkspacePath is the absolute workspace root (required).
	WorkspacePath string `json:"workspacePath"`

	// NotePath is the note's path relative to the workspace root (required).
	NotePath string `json:"notePath"`

	// EmbeddingProvider selects the embedding backend (e.g. "ollama").
	EmbeddingProvider string `json:"embeddingProvider,omitempty"`

	// EmbeddingModel is the model name within the provider.
	EmbeddingModel string `json:"embeddingModel,omitempty"`
}

// Validate checks that required fields are present.
func (p *NoteParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	if p.NotePath == "" {
		return fmt.Errorf("notePath is required")
	}
	return nil
}

// MetaParams are the parameters for the index.meta method.
type MetaParams struct {
	WorkspacePath string `json:"workspacePath"`
}

// Validate checks that required fields are present.
func (p *MetaParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// WorkspaceSummary reports what an index run did. The counters come
// back verbatim from the engine and are passed through uninterpreted.
type WorkspaceSummary struct {
	FilesDiscovered   int      `json:"filesDiscovered"`
	FilesProcessed    int      `json:"filesProcessed"`
	DocsInserted      int      `json:"docsInserted"`
	DocsDeleted       int      `json:"docsDeleted"`
	SegmentsCreated   int      `json:"segmentsCreated"`
	SegmentsUpdated   int      `json:"segmentsUpdated"`
	EmbeddingsWritten int      `json:"embeddingsWritten"`
	EdgesWritten      int      `json:"edgesWritten"`
	EdgesDeleted      int      `json:"edgesDeleted"`
	SkippedFiles      []string `json:"skippedFiles,omitempty"`
}

// IndexingMeta describes the indexed state of a workspace.
type IndexingMeta struct {
	IndexedDocCount int `json:"indexedDocCount"`
}

// PingResult is the response to an engine.ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
