package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/inkdown/inkdex/internal/coordinator"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/profiling"
	"github.com/inkdown/inkdex/internal/rpc"
)

// EnginePinger reports whether the indexing engine socket is reachable.
type EnginePinger interface {
	IsRunning() bool
}

// WorkspaceWatcher starts watching workspaces for note changes.
type WorkspaceWatcher interface {
	EnsureWatching(workspacePath string) error
}

// ServerConfig holds the dependencies for a daemon server.
type ServerConfig struct {
	// SocketPath is the Unix socket to listen on.
	SocketPath string

	// Coordinator serves all indexing operations.
	Coordinator *coordinator.Coordinator

	// Engine is used for status reporting only; may be nil.
	Engine EnginePinger

	// Watcher, when set, is told about each workspace the shell touches
	// so note saves get auto-indexed. May be nil.
	Watcher WorkspaceWatcher

	// Logger receives request and lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Version is reported in daemon.status responses.
	Version string

	// RequestTimeout bounds how long a connected client may take to
	// deliver a request. Zero means 30 seconds.
	RequestTimeout time.Duration

	// ShutdownGrace bounds how long shutdown waits for in-flight
	// requests. Zero means 10 seconds.
	ShutdownGrace time.Duration
}

// Server listens on a Unix socket and handles RPC requests from the shell.
type Server struct {
	socketPath     string
	coord          *coordinator.Coordinator
	engine         EnginePinger
	watcher        WorkspaceWatcher
	logger         *slog.Logger
	version        string
	requestTimeout time.Duration
	shutdownGrace  time.Duration

	listener net.Listener
	started  time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server from the given configuration.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	shutdownGrace := cfg.ShutdownGrace
	if shutdownGrace <= 0 {
		shutdownGrace = 10 * time.Second
	}

	return &Server{
		socketPath:     cfg.SocketPath,
		coord:          cfg.Coordinator,
		engine:         cfg.Engine,
		watcher:        cfg.Watcher,
		logger:         logger,
		version:        cfg.Version,
		requestTimeout: requestTimeout,
		shutdownGrace:  shutdownGrace,
	}, nil
}

// ListenAndServe starts the server and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket from a previous run.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return inkerrors.New(inkerrors.ErrCodeRPCUnavailable,
			fmt.Sprintf("failed to listen on %s", s.socketPath), err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("daemon listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	// Wait for in-flight requests, but not past the grace period.
	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(s.shutdownGrace):
		s.logger.Warn("shutdown grace period expired with requests in flight")
	}

	return ctx.Err()
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Bound how long a client may take to deliver its request. The
	// deadline is lifted once the request is in hand because workspace
	// indexing can legitimately run for minutes.
	if err := conn.SetReadDeadline(time.Now().Add(s.requestTimeout)); err != nil {
		s.logger.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req rpc.Request
	if err := decoder.Decode(&req); err != nil {
		resp := rpc.NewErrorResponse("", rpc.ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	s.logger.Debug("handled request",
		slog.String("method", req.Method),
		slog.String("id", req.ID),
		slog.Bool("ok", resp.Error == nil),
		slog.Duration("took", time.Since(start)))

	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req rpc.Request) rpc.Response {
	switch req.Method {
	case MethodPing:
		return rpc.NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return rpc.NewSuccessResponse(req.ID, s.getStatus())

	case MethodGetConfig:
		return s.handleGetConfig(ctx, req)

	case MethodSetConfig:
		return s.handleSetConfig(ctx, req)

	case MethodIndexWorkspace:
		return s.handleIndexWorkspace(ctx, req)

	case MethodIndexNote:
		return s.handleIndexNote(ctx, req)

	case MethodLoadMeta:
		return s.handleLoadMeta(ctx, req)

	case MethodStartPolling:
		return s.handleStartPolling(req)

	case MethodStopPolling:
		return s.handleStopPolling(req)

	case MethodModelChangeRequest:
		return s.handleModelChangeRequest(ctx, req)

	case MethodModelChangeConfirm:
		return s.handleModelChangeConfirm(ctx, req)

	case MethodModelChangeCancel:
		return s.handleModelChangeCancel(req)

	default:
		return rpc.NewErrorResponse(req.ID, rpc.ErrCodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleGetConfig(ctx context.Context, req rpc.Request) rpc.Response {
	var params GetConfigParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	s.ensureWatched(params.WorkspacePath)

	if params.Refresh {
		s.coord.InvalidateIndexingConfig(params.WorkspacePath)
	}

	cfg, err := s.coord.GetIndexingConfig(ctx, params.WorkspacePath)
	if err != nil {
		return s.errorResponse(req.ID, ErrCodeSettingsFailed, err)
	}
	return rpc.NewSuccessResponse(req.ID, ConfigResult{Config: cfg})
}

func (s *Server) handleSetConfig(ctx context.Context, req rpc.Request) rpc.Response {
	var params SetConfigParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	s.ensureWatched(params.WorkspacePath)

	err := s.coord.SetIndexingConfig(ctx, params.WorkspacePath,
		params.EmbeddingProvider, params.EmbeddingModel, params.AutoIndex)
	if err != nil {
		return s.errorResponse(req.ID, ErrCodeSettingsFailed, err)
	}
	return rpc.NewSuccessResponse(req.ID, AckResult{OK: true})
}

func (s *Server) handleIndexWorkspace(ctx context.Context, req rpc.Request) rpc.Response {
	var params IndexWorkspaceParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	s.ensureWatched(params.WorkspacePath)

	summary, err := s.coord.IndexWorkspace(ctx, params.WorkspacePath,
		params.EmbeddingProvider, params.EmbeddingModel, params.Force)
	if err != nil {
		if errors.Is(err, coordinator.ErrIndexingInProgress) {
			return s.errorResponse(req.ID, ErrCodeIndexBusy, err)
		}
		return s.errorResponse(req.ID, ErrCodeIndexingFailed, err)
	}
	return rpc.NewSuccessResponse(req.ID, summary)
}

func (s *Server) handleIndexNote(ctx context.Context, req rpc.Request) rpc.Response {
	var params IndexNoteParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	indexed := s.coord.IndexNote(ctx, params.WorkspacePath, params.NotePath,
		params.EmbeddingProvider, params.EmbeddingModel)
	return rpc.NewSuccessResponse(req.ID, IndexNoteResult{Indexed: indexed})
}

func (s *Server) handleLoadMeta(ctx context.Context, req rpc.Request) rpc.Response {
	var params LoadMetaParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	s.ensureWatched(params.WorkspacePath)

	s.coord.LoadIndexingMeta(ctx, params.WorkspacePath)
	return rpc.NewSuccessResponse(req.ID, MetaResult{
		IndexedDocCount: s.coord.IndexedDocCount(),
		Loading:         s.coord.IsMetaLoading(),
	})
}

func (s *Server) handleStartPolling(req rpc.Request) rpc.Response {
	var params StartPollingParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	s.ensureWatched(params.WorkspacePath)

	s.coord.StartIndexingMetaPolling(params.WorkspacePath)
	return rpc.NewSuccessResponse(req.ID, AckResult{OK: true})
}

func (s *Server) handleStopPolling(req rpc.Request) rpc.Response {
	var params StopPollingParams
	if resp, ok := s.decodeParams(req, &params, nil); !ok {
		return resp
	}

	s.coord.StopIndexingMetaPolling(params.ClearTracked)
	return rpc.NewSuccessResponse(req.ID, AckResult{OK: true})
}

func (s *Server) handleModelChangeRequest(ctx context.Context, req rpc.Request) rpc.Response {
	var params ModelChangeRequestParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	current, err := s.coord.GetIndexingConfig(ctx, params.WorkspacePath)
	if err != nil {
		return s.errorResponse(req.ID, ErrCodeSettingsFailed, err)
	}

	// The tracked workspace's document count decides whether the change
	// is destructive.
	count := s.coord.IndexedDocCount()
	if err := s.coord.HandleModelChangeRequest(ctx, params.Value, params.WorkspacePath, current, count); err != nil {
		return s.errorResponse(req.ID, ErrCodeSettingsFailed, err)
	}

	result := ModelChangeRequestResult{
		AwaitingConfirmation: s.coord.AwaitingConfirmation(),
	}
	if pending := s.coord.PendingModelChange(); pending != nil {
		result.Pending = &ModelChangeInfo{Provider: pending.Provider, Model: pending.Model}
	}
	return rpc.NewSuccessResponse(req.ID, result)
}

func (s *Server) handleModelChangeConfirm(ctx context.Context, req rpc.Request) rpc.Response {
	var params ModelChangeConfirmParams
	if resp, ok := s.decodeParams(req, &params, params.Validate); !ok {
		return resp
	}

	if err := s.coord.ConfirmModelChange(ctx, params.WorkspacePath, params.ForceReindex); err != nil {
		return s.errorResponse(req.ID, ErrCodeSettingsFailed, err)
	}
	return rpc.NewSuccessResponse(req.ID, AckResult{OK: true})
}

func (s *Server) handleModelChangeCancel(req rpc.Request) rpc.Response {
	s.coord.CancelModelChange()
	return rpc.NewSuccessResponse(req.ID, AckResult{OK: true})
}

// ensureWatched best-effort starts the file watcher for a workspace.
// Failures are logged, never surfaced to the client.
func (s *Server) ensureWatched(workspacePath string) {
	if s.watcher == nil || workspacePath == "" {
		return
	}
	if err := s.watcher.EnsureWatching(workspacePath); err != nil {
		s.logger.Warn("failed to watch workspace",
			slog.String("workspace", workspacePath),
			slog.String("error", err.Error()))
	}
}

// decodeParams decodes and validates request parameters. On failure it
// returns the error response to send and ok=false.
func (s *Server) decodeParams(req rpc.Request, v any, validate func() error) (rpc.Response, bool) {
	if err := rpc.DecodeParams(req.Params, v); err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.ErrCodeInvalidParams, "failed to decode params"), false
	}
	if validate != nil {
		if err := validate(); err != nil {
			return rpc.NewErrorResponse(req.ID, rpc.ErrCodeInvalidParams, err.Error()), false
		}
	}
	return rpc.Response{}, true
}

// errorResponse builds an error response, carrying the structured error
// code in the data field so clients can rebuild the original error.
func (s *Server) errorResponse(id string, code int, err error) rpc.Response {
	resp := rpc.NewErrorResponse(id, code, err.Error())
	if inkCode := inkerrors.GetCode(err); inkCode != "" {
		resp.Error.Data = inkCode
	}
	return resp
}

// getStatus returns the current daemon status.
func (s *Server) getStatus() StatusResult {
	status := StatusResult{
		Running:             true,
		PID:                 os.Getpid(),
		Version:             s.version,
		Uptime:              time.Since(s.started).Round(time.Second).String(),
		Memory:              profiling.FormatBytes(profiling.MemStats().Alloc),
		SocketPath:          s.socketPath,
		IndexedDocCount:     s.coord.IndexedDocCount(),
		MetaLoading:         s.coord.IsMetaLoading(),
		AwaitingModelChange: s.coord.AwaitingConfirmation(),
	}

	if s.engine != nil {
		status.EngineConnected = s.engine.IsRunning()
	}

	for workspace, busy := range s.coord.IndexingState() {
		if busy {
			status.ActiveWorkspaces = append(status.ActiveWorkspaces, workspace)
		}
	}
	sort.Strings(status.ActiveWorkspaces)

	if pending := s.coord.PendingModelChange(); pending != nil {
		status.PendingModelChange = &ModelChangeInfo{Provider: pending.Provider, Model: pending.Model}
	}

	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
