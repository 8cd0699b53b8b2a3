package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/rpc"
	"github.com/inkdown/inkdex/internal/settings"
)

// serveOnce listens on socketPath, accepts one connection and answers
// its single request with respond.
func serveOnce(t *testing.T, socketPath string, respond func(req rpc.Request) rpc.Response) {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var req rpc.Request
		if err := json.NewDecoder(conn).Decode(&req); err != nil {
			return
		}
		_ = json.NewEncoder(conn).Encode(respond(req))
	}()
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("/tmp/inkdex.sock", 0, 0)

	assert.Equal(t, "/tmp/inkdex.sock", client.socketPath)
	assert.Equal(t, 2*time.Second, client.dialTimeout)
	assert.Equal(t, 30*time.Second, client.callTimeout)
}

func TestClient_IsRunning_NoSocket(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(filepath.Join(tmpDir, "nonexistent.sock"), time.Second, time.Second)

	assert.False(t, client.IsRunning(), "Should return false when socket doesn't exist")
}

func TestClient_Ping_DaemonDown(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(filepath.Join(tmpDir, "nonexistent.sock"), 100*time.Millisecond, time.Second)

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeRPCUnavailable, inkerrors.GetCode(err))

	var inkErr *inkerrors.InkdexError
	require.True(t, errors.As(err, &inkErr))
	assert.Contains(t, inkErr.Suggestion, "inkdex serve")
}

func TestClient_Status_Decodes(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	serveOnce(t, socketPath, func(req rpc.Request) rpc.Response {
		assert.Equal(t, MethodStatus, req.Method)
		return rpc.NewSuccessResponse(req.ID, StatusResult{
			Running:         true,
			PID:             4321,
			Version:         "0.3.0",
			IndexedDocCount: 12,
			PendingModelChange: &ModelChangeInfo{
				Provider: "openai",
				Model:    "text-embedding-3-small",
			},
		})
	})

	client := NewClient(socketPath, time.Second, time.Second)
	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 4321, status.PID)
	assert.Equal(t, "0.3.0", status.Version)
	assert.Equal(t, 12, status.IndexedDocCount)
	require.NotNil(t, status.PendingModelChange)
	assert.Equal(t, "openai", status.PendingModelChange.Provider)
}

func TestClient_GetConfig_SendsParams(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	received := make(chan rpc.Request, 1)
	serveOnce(t, socketPath, func(req rpc.Request) rpc.Response {
		received <- req
		return rpc.NewSuccessResponse(req.ID, ConfigResult{
			Config: &settings.IndexingConfig{
				EmbeddingProvider: "ollama",
				EmbeddingModel:    "nomic-embed-text",
			},
		})
	})

	client := NewClient(socketPath, time.Second, time.Second)
	cfg, err := client.GetConfig(context.Background(), GetConfigParams{
		WorkspacePath: "/notes/work",
		Refresh:       true,
	})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)

	req := <-received
	assert.Equal(t, MethodGetConfig, req.Method)

	var params GetConfigParams
	require.NoError(t, rpc.DecodeParams(req.Params, &params))
	assert.Equal(t, "/notes/work", params.WorkspacePath)
	assert.True(t, params.Refresh)
}

func TestClient_IndexNote_Result(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	serveOnce(t, socketPath, func(req rpc.Request) rpc.Response {
		assert.Equal(t, MethodIndexNote, req.Method)
		return rpc.NewSuccessResponse(req.ID, IndexNoteResult{Indexed: true})
	})

	client := NewClient(socketPath, time.Second, time.Second)
	indexed, err := client.IndexNote(context.Background(), IndexNoteParams{
		WorkspacePath: "/notes/work",
		NotePath:      "inbox.md",
	})
	require.NoError(t, err)
	assert.True(t, indexed)
}

func TestClient_ErrorCarriesDaemonCode(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	serveOnce(t, socketPath, func(req rpc.Request) rpc.Response {
		resp := rpc.NewErrorResponse(req.ID, ErrCodeSettingsFailed, "failed to save settings")
		resp.Error.Data = inkerrors.ErrCodeSettingsSave
		return resp
	})

	client := NewClient(socketPath, time.Second, time.Second)
	err := client.SetConfig(context.Background(), SetConfigParams{
		WorkspacePath:     "/notes/work",
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "nomic-embed-text",
	})
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeSettingsSave, inkerrors.GetCode(err))
	assert.Contains(t, err.Error(), "failed to save settings")
}

func TestClient_BusyCodeWithoutData(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	serveOnce(t, socketPath, func(req rpc.Request) rpc.Response {
		return rpc.NewErrorResponse(req.ID, ErrCodeIndexBusy, "workspace is being indexed")
	})

	client := NewClient(socketPath, time.Second, time.Second)
	_, err := client.IndexWorkspace(context.Background(), IndexWorkspaceParams{
		WorkspacePath: "/notes/work",
	})
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeIndexBusy, inkerrors.GetCode(err))
	assert.True(t, inkerrors.IsRetryable(err))
}

func TestClient_InvalidParamsFromServer(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	serveOnce(t, socketPath, func(req rpc.Request) rpc.Response {
		return rpc.NewErrorResponse(req.ID, rpc.ErrCodeInvalidParams, "workspacePath is required")
	})

	client := NewClient(socketPath, time.Second, time.Second)
	err := client.StartPolling(context.Background(), "/notes/work")
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeInvalidInput, inkerrors.GetCode(err))
}

func TestClient_ValidatesBeforeDialing(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(filepath.Join(tmpDir, "nonexistent.sock"), time.Second, time.Second)

	// An invalid-input error, not a connection error: the request never
	// left the process.
	_, err := client.GetConfig(context.Background(), GetConfigParams{})
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeInvalidInput, inkerrors.GetCode(err))

	_, err = client.IndexNote(context.Background(), IndexNoteParams{WorkspacePath: "/notes/work"})
	require.Error(t, err)
	assert.Equal(t, inkerrors.ErrCodeInvalidInput, inkerrors.GetCode(err))
}
