package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/inkdown/inkdex/internal/engine"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/rpc"
	"github.com/inkdown/inkdex/internal/settings"
)

// Client talks to the daemon over its unix socket. Each call dials a
// fresh connection, sends one request and reads one response. Used by
// the CLI; the desktop shell speaks the same protocol directly.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
	callTimeout time.Duration
	requestID   atomic.Uint64
}

// NewClient creates a daemon client for the given socket path.
// Zero timeouts fall back to 2s for dialing and 30s for calls. Callers
// issuing indexing.indexWorkspace should pass a call timeout sized for
// a full index run.
func NewClient(socketPath string, dialTimeout, callTimeout time.Duration) *Client {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Client{
		socketPath:  socketPath,
		dialTimeout: dialTimeout,
		callTimeout: callTimeout,
	}
}

// connect establishes a connection to the daemon socket.
func (c *Client) connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return nil, inkerrors.New(inkerrors.ErrCodeRPCUnavailable,
			"failed to connect to daemon", err).
			WithDetail("socket", c.socketPath).
			WithSuggestion("start the daemon with 'inkdex serve'")
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var result PingResult
	return c.call(ctx, MethodPing, nil, &result)
}

// Status fetches the daemon's status snapshot.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetConfig fetches a workspace's indexing config; nil when unset.
func (c *Client) GetConfig(ctx context.Context, params GetConfigParams) (*settings.IndexingConfig, error) {
	if err := params.Validate(); err != nil {
		return nil, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var result ConfigResult
	if err := c.call(ctx, MethodGetConfig, params, &result); err != nil {
		return nil, err
	}
	return result.Config, nil
}

// SetConfig writes a workspace's indexing config.
func (c *Client) SetConfig(ctx context.Context, params SetConfigParams) error {
	if err := params.Validate(); err != nil {
		return inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var result AckResult
	return c.call(ctx, MethodSetConfig, params, &result)
}

// IndexWorkspace runs a full index pass and returns the engine summary.
func (c *Client) IndexWorkspace(ctx context.Context, params IndexWorkspaceParams) (*engine.WorkspaceSummary, error) {
	if err := params.Validate(); err != nil {
		return nil, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var summary engine.WorkspaceSummary
	if err := c.call(ctx, MethodIndexWorkspace, params, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// IndexNote indexes a single note. The bool reports whether the note
// was actually indexed; a busy workspace or failed engine call yields
// false without an error.
func (c *Client) IndexNote(ctx context.Context, params IndexNoteParams) (bool, error) {
	if err := params.Validate(); err != nil {
		return false, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var result IndexNoteResult
	if err := c.call(ctx, MethodIndexNote, params, &result); err != nil {
		return false, err
	}
	return result.Indexed, nil
}

// LoadMeta refreshes and returns the indexing metadata for a workspace.
func (c *Client) LoadMeta(ctx context.Context, workspacePath string) (*MetaResult, error) {
	params := LoadMetaParams{WorkspacePath: workspacePath}
	if err := params.Validate(); err != nil {
		return nil, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var result MetaResult
	if err := c.call(ctx, MethodLoadMeta, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartPolling starts metadata polling for a workspace.
func (c *Client) StartPolling(ctx context.Context, workspacePath string) error {
	params := StartPollingParams{WorkspacePath: workspacePath}
	if err := params.Validate(); err != nil {
		return inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var result AckResult
	return c.call(ctx, MethodStartPolling, params, &result)
}

// StopPolling stops metadata polling, optionally clearing the tracked
// workspace marker.
func (c *Client) StopPolling(ctx context.Context, clearTracked bool) error {
	var result AckResult
	return c.call(ctx, MethodStopPolling, StopPollingParams{ClearTracked: clearTracked}, &result)
}

// RequestModelChange submits a raw "provider|model" selection.
func (c *Client) RequestModelChange(ctx context.Context, params ModelChangeRequestParams) (*ModelChangeRequestResult, error) {
	if err := params.Validate(); err != nil {
		return nil, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var result ModelChangeRequestResult
	if err := c.call(ctx, MethodModelChangeRequest, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ConfirmModelChange applies the staged model change.
func (c *Client) ConfirmModelChange(ctx context.Context, params ModelChangeConfirmParams) error {
	if err := params.Validate(); err != nil {
		return inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var result AckResult
	return c.call(ctx, MethodModelChangeConfirm, params, &result)
}

// CancelModelChange discards the staged model change.
func (c *Client) CancelModelChange(ctx context.Context) error {
	var result AckResult
	return c.call(ctx, MethodModelChangeCancel, nil, &result)
}

// call dials the daemon, performs one request/response exchange, and
// decodes the result into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Deadline is the sooner of the call timeout and the context deadline.
	deadline := time.Now().Add(c.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := rpc.NewRequest(c.nextID(), method, params)
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return c.wireError(method, "send", err)
	}

	var resp rpc.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return c.wireError(method, "receive", err)
	}

	if resp.Error != nil {
		return c.rpcError(method, resp.Error)
	}

	if out == nil {
		return nil
	}
	if err := rpc.DecodeResult(resp.Result, out); err != nil {
		return inkerrors.Wrap(inkerrors.ErrCodeRPCProtocol, err)
	}
	return nil
}

// rpcError rebuilds a structured error from a daemon error response.
// The daemon puts the original error code in the data field; without
// one, the JSON-RPC code picks the closest category.
func (c *Client) rpcError(method string, rpcErr *rpc.Error) error {
	code := inkerrors.ErrCodeInternal
	if s, ok := rpcErr.Data.(string); ok && s != "" {
		code = s
	} else {
		switch rpcErr.Code {
		case ErrCodeIndexBusy:
			code = inkerrors.ErrCodeIndexBusy
		case rpc.ErrCodeInvalidParams:
			code = inkerrors.ErrCodeInvalidInput
		}
	}
	return inkerrors.New(code, rpcErr.Message, rpcErr).WithDetail("method", method)
}

// wireError classifies a send/receive failure as timeout or protocol.
func (c *Client) wireError(method, op string, err error) error {
	code := inkerrors.ErrCodeRPCProtocol
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		code = inkerrors.ErrCodeRPCTimeout
	}
	return inkerrors.New(code, fmt.Sprintf("failed to %s %s", op, method), err)
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
