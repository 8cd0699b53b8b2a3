package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_JSON(t *testing.T) {
	req := NewRequest("req-1", "index.workspace", map[string]string{
		"workspacePath": "/home/user/notes",
	})

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, "2.0", decoded.JSONRPC)
	assert.Equal(t, "index.workspace", decoded.Method)
	assert.Equal(t, "req-1", decoded.ID)
}

func TestResponse_Success(t *testing.T) {
	resp := NewSuccessResponse("req-1", map[string]int{"filesProcessed": 12})

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.NotNil(t, resp.Result)
	assert.Nil(t, resp.Error)
}

func TestResponse_Error(t *testing.T) {
	resp := NewErrorResponse("req-1", ErrCodeInvalidParams, "workspace path is required")

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "workspace path is required", resp.Error.Message)
}

func TestError_ErrorString(t *testing.T) {
	err := &Error{Code: ErrCodeMethodNotFound, Message: "no such method"}

	assert.Contains(t, err.Error(), "-32601")
	assert.Contains(t, err.Error(), "no such method")
}

func TestDecodeParams(t *testing.T) {
	type noteParams struct {
		WorkspacePath string `json:"workspacePath"`
		NotePath      string `json:"notePath"`
	}

	// Params decoded from the wire arrive as map[string]any.
	raw := map[string]any{
		"workspacePath": "/home/user/notes",
		"notePath":      "daily/2026-01-05.md",
	}

	var params noteParams
	err := DecodeParams(raw, &params)
	require.NoError(t, err)

	assert.Equal(t, "/home/user/notes", params.WorkspacePath)
	assert.Equal(t, "daily/2026-01-05.md", params.NotePath)
}

func TestDecodeResult(t *testing.T) {
	type summary struct {
		FilesProcessed int `json:"filesProcessed"`
		DocsInserted   int `json:"docsInserted"`
	}

	raw := map[string]any{
		"filesProcessed": float64(7),
		"docsInserted":   float64(21),
	}

	var s summary
	err := DecodeResult(raw, &s)
	require.NoError(t, err)

	assert.Equal(t, 7, s.FilesProcessed)
	assert.Equal(t, 21, s.DocsInserted)
}

func TestDecodeResult_TypeMismatch(t *testing.T) {
	var s struct {
		Count int `json:"count"`
	}

	err := DecodeResult(map[string]any{"count": "not-a-number"}, &s)
	assert.Error(t, err)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, -32700, ErrCodeParseError)
	assert.Equal(t, -32600, ErrCodeInvalidRequest)
	assert.Equal(t, -32601, ErrCodeMethodNotFound)
	assert.Equal(t, -32602, ErrCodeInvalidParams)
	assert.Equal(t, -32603, ErrCodeInternalError)
}
