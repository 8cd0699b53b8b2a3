package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/rpc"
)

// Client talks to the indexing engine over its unix socket. Each call
// dials a fresh connection, sends one request and reads one response.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
	callTimeout time.Duration
	requestID   atomic.Uint64
}

// NewClient creates an engine client for the given socket path.
// Zero timeouts fall back to 2s for dialing and 10m for calls (a full
// workspace index of a large vault can run for minutes).
func NewClient(socketPath string, dialTimeout, callTimeout time.Duration) *Client {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Minute
	}
	return &Client{
		socketPath:  socketPath,
		dialTimeout: dialTimeout,
		callTimeout: callTimeout,
	}
}

// connect establishes a connection to the engine socket.
func (c *Client) connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return nil, inkerrors.New(inkerrors.ErrCodeRPCUnavailable,
			"failed to connect to indexing engine", err).
			WithDetail("socket", c.socketPath)
	}
	return conn, nil
}

// IsRunning checks if the engine is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the engine is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var result PingResult
	return c.call(ctx, MethodPing, nil, &result)
}

// WaitUntilReady pings the engine with backoff until it responds or the
// context is cancelled. Used at startup, where the engine daemon may
// still be binding its socket.
func (c *Client) WaitUntilReady(ctx context.Context) error {
	cfg := inkerrors.RetryConfig{
		MaxRetries:   10,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
	return inkerrors.Retry(ctx, cfg, func() error {
		return c.Ping(ctx)
	})
}

// IndexWorkspace runs a full index pass over a workspace and returns
// the engine's summary of the run.
func (c *Client) IndexWorkspace(ctx context.Context, params WorkspaceParams) (*WorkspaceSummary, error) {
	if err := params.Validate(); err != nil {
		return nil, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var summary WorkspaceSummary
	if err := c.call(ctx, MethodIndexWorkspace, params, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// IndexNote indexes a single note within a workspace.
func (c *Client) IndexNote(ctx context.Context, params NoteParams) (*WorkspaceSummary, error) {
	if err := params.Validate(); err != nil {
		return nil, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var summary WorkspaceSummary
	if err := c.call(ctx, MethodIndexNote, params, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// IndexingMeta fetches the indexed state of a workspace.
func (c *Client) IndexingMeta(ctx context.Context, workspacePath string) (*IndexingMeta, error) {
	params := MetaParams{WorkspacePath: workspacePath}
	if err := params.Validate(); err != nil {
		return nil, inkerrors.Wrap(inkerrors.ErrCodeInvalidInput, err)
	}

	var meta IndexingMeta
	if err := c.call(ctx, MethodIndexMeta, params, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// call dials the engine, performs one request/response exchange, and
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
		return inkerrors.New(inkerrors.ErrCodeEngineCommand,
			fmt.Sprintf("%s failed: %s", method, resp.Error.Message), resp.Error).
			WithDetail("method", method)
	}

	if out == nil {
		return nil
	}
	if err := rpc.DecodeResult(resp.Result, out); err != nil {
		return inkerrors.Wrap(inkerrors.ErrCodeRPCProtocol, err)
	}
	return nil
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
