package daemon

import (
	"fmt"

	"github.com/inkdown/inkdex/internal/settings"
)

// JSON-RPC 2.0 method names served by the daemon.
const (
	MethodGetConfig          = "indexing.getConfig"
	MethodSetConfig          = "indexing.setConfig"
	MethodIndexWorkspace     = "indexing.indexWorkspace"
	MethodIndexNote          = "indexing.indexNote"
	MethodLoadMeta           = "indexing.loadMeta"
	MethodStartPolling       = "indexing.startPolling"
	MethodStopPolling        = "indexing.stopPolling"
	MethodModelChangeRequest = "indexing.modelChange.request"
	MethodModelChangeConfirm = "indexing.modelChange.confirm"
	MethodModelChangeCancel  = "indexing.modelChange.cancel"
	MethodStatus             = "daemon.status"
	MethodPing               = "daemon.ping"
)

// Custom error codes for daemon-specific failures.
const (
	ErrCodeIndexBusy      = -32001
	ErrCodeIndexingFailed = -32002
	ErrCodeSettingsFailed = -32003
)

// GetConfigParams are the parameters for indexing.getConfig.
type GetConfigParams struct {
	// WorkspacePath identifies the workspace (required).
	WorkspacePath string `json:"workspacePath"`

	// Refresh drops the cached config and rereads settings from disk.
	Refresh bool `json:"refresh,omitempty"`
}

// Validate checks that required fields are present.
func (p *GetConfigParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// ConfigResult carries a workspace's indexing config; Config is null
// when the workspace has no indexing section.
type ConfigResult struct {
	Config *settings.IndexingConfig `json:"config"`
}

// SetConfigParams are the parameters for indexing.setConfig.
type SetConfigParams struct {
	// WorkspacePath identifies the workspace (required).
	WorkspacePath string `json:"workspacePath"`

	// EmbeddingProvider is the embedding backend name.
	EmbeddingProvider string `json:"embeddingProvider"`

	// EmbeddingModel is the model identifier. An empty model clears
	// the workspace's configured state.
	EmbeddingModel string `json:"embeddingModel"`

	// AutoIndex toggles indexing on note save. When omitted the stored
	// value is preserved.
	AutoIndex *bool `json:"autoIndex,omitempty"`
}

// Validate checks that required fields are present.
func (p *SetConfigParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// IndexWorkspaceParams are the parameters for indexing.indexWorkspace.
type IndexWorkspaceParams struct {
	// WorkspacePath identifies the workspace (required).
	WorkspacePath string `json:"workspacePath"`

	// EmbeddingProvider is the embedding backend name.
	EmbeddingProvider string `json:"embeddingProvider,omitempty"`

	// EmbeddingModel is the model identifier.
	EmbeddingModel string `json:"embeddingModel,omitempty"`

	// Force rebuilds the index even for unchanged files.
	Force bool `json:"force,omitempty"`
}

// Validate checks that required fields are present.
func (p *IndexWorkspaceParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// IndexNoteParams are the parameters for indexing.indexNote.
type IndexNoteParams struct {
	// WorkspacePath identifies the workspace (required).
	WorkspacePath string `json:"workspacePath"`

	// NotePath is the note file, relative to the workspace (required).
	NotePath string `json:"notePath"`

	// EmbeddingProvider is the embedding backend name.
	EmbeddingProvider string `json:"embeddingProvider,omitempty"`

	// EmbeddingModel is the model identifier.
	EmbeddingModel string `json:"embeddingModel,omitempty"`
}

// Validate checks that required fields are present.
func (p *IndexNoteParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	if p.NotePath == "" {
		return fmt.Errorf("notePath is required")
	}
	return nil
}

// IndexNoteResult reports whether a note indexing request went through.
// Indexed is false when the workspace was busy or the engine call
// failed; neither case is an RPC error.
type IndexNoteResult struct {
	Indexed bool `json:"indexed"`
}

// LoadMetaParams are the parameters for indexing.loadMeta.
type LoadMetaParams struct {
	// WorkspacePath identifies the workspace (required).
	WorkspacePath string `json:"workspacePath"`
}

// Validate checks that required fields are present.
func (p *LoadMetaParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// MetaResult is the indexing metadata snapshot after a load.
type MetaResult struct {
	IndexedDocCount int  `json:"indexedDocCount"`
	Loading         bool `json:"loading"`
}

// StartPollingParams are the parameters for indexing.startPolling.
type StartPollingParams struct {
	// WorkspacePath identifies the workspace to track (required).
	WorkspacePath string `json:"workspacePath"`
}

// Validate checks that required fields are present.
func (p *StartPollingParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// StopPollingParams are the parameters for indexing.stopPolling.
type StopPollingParams struct {
	// ClearTracked also forgets the tracked workspace, so late fetch
	// results are discarded. Used on teardown rather than pause.
	ClearTracked bool `json:"clearTracked,omitempty"`
}

// ModelChangeInfo is a staged embedding model selection.
type ModelChangeInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ModelChangeRequestParams are the parameters for indexing.modelChange.request.
type ModelChangeRequestParams struct {
	// WorkspacePath identifies the workspace the selection came from (required).
	WorkspacePath string `json:"workspacePath"`

	// Value is the raw "provider|model" selection from the settings UI.
	Value string `json:"value"`
}

// Validate checks that required fields are present.
func (p *ModelChangeRequestParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	if p.Value == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// ModelChangeRequestResult tells the shell whether to show the
// confirmation dialog. A malformed value leaves both fields false.
type ModelChangeRequestResult struct {
	AwaitingConfirmation bool             `json:"awaitingConfirmation"`
	Pending              *ModelChangeInfo `json:"pending,omitempty"`
}

// ModelChangeConfirmParams are the parameters for indexing.modelChange.confirm.
type ModelChangeConfirmParams struct {
	// WorkspacePath identifies the workspace the change applies to (required).
	WorkspacePath string `json:"workspacePath"`

	// ForceReindex additionally rebuilds the index with the new model.
	ForceReindex bool `json:"forceReindex,omitempty"`
}

// Validate checks that required fields are present.
func (p *ModelChangeConfirmParams) Validate() error {
	if p.WorkspacePath == "" {
		return fmt.Errorf("workspacePath is required")
	}
	return nil
}

// AckResult acknowledges an operation with no payload.
type AckResult struct {
	OK bool `json:"ok"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running             bool             `json:"running"`
	PID                 int              `json:"pid"`
	Version             string           `json:"version"`
	Uptime              string           `json:"uptime"`
	Memory              string           `json:"memory,omitempty"`
	SocketPath          string           `json:"socketPath"`
	EngineConnected     bool             `json:"engineConnected"`
	IndexedDocCount     int              `json:"indexedDocCount"`
	MetaLoading         bool             `json:"metaLoading"`
	ActiveWorkspaces    []string         `json:"activeWorkspaces,omitempty"`
	AwaitingModelChange bool             `json:"awaitingModelChange"`
	PendingModelChange  *ModelChangeInfo `json:"pendingModelChange,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
