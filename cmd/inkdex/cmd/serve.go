package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inkdown/inkdex/internal/config"
	"github.com/inkdown/inkdex/internal/coordinator"
	"github.com/inkdown/inkdex/internal/daemon"
	"github.com/inkdown/inkdex/internal/engine"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/logging"
	"github.com/inkdown/inkdex/internal/settings"
	"github.com/inkdown/inkdex/internal/watcher"
	"github.com/inkdown/inkdex/pkg/version"
)

func newServeCmd() *cobra.Command {
	var (
		foreground bool
		workspaces []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexing daemon",
		Long: `Run the inkdex daemon.

The daemon listens on a Unix socket for requests from the Inkdown shell,
forwards indexing work to the engine, polls indexing metadata for the
active workspace, and re-indexes notes as they are saved.

By default it detaches and runs in the background. Use --foreground for
debugging or when a supervisor manages the process.`,
		Example: `  # Start in the background
  inkdex serve

  # Run attached to the terminal
  inkdex serve --foreground

  # Watch workspaces from startup instead of waiting for the shell
  inkdex serve --workspace ~/notes --workspace ~/work/wiki`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, foreground, workspaces)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	cmd.Flags().StringArrayVar(&workspaces, "workspace", nil, "Workspace to watch from startup (repeatable)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, foreground bool, workspaces []string) error {
	out := newWriter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := daemon.NewClient(cfg.Daemon.SocketPath, 0, 0)
	if client.IsRunning() {
		out.Status("Daemon is already running")
		return nil
	}

	if foreground {
		return runDaemon(ctx, cmd, cfg, workspaces)
	}

	out.Status("Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "--foreground"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if debugMode {
		args = append(args, "--debug")
	}
	for _, workspace := range workspaces {
		args = append(args, "--workspace", workspace)
	}

	bgCmd := exec.Command(execPath, args...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil

	// Detach from the parent's session so closing the terminal does not
	// take the daemon down with it.
	bgCmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and catch it dying before the socket comes up.
	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 20; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Successf("Daemon started (pid: %d)", bgCmd.Process.Pid)
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

// runDaemon assembles the daemon and blocks until shutdown.
func runDaemon(ctx context.Context, cmd *cobra.Command, cfg *config.Config, workspaces []string) error {
	out := newWriter(cmd)

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	dcfg := daemon.Config{
		SocketPath:          cfg.Daemon.SocketPath,
		PIDPath:             cfg.Daemon.PIDPath,
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: cfg.ShutdownTimeout(),
	}
	if err := dcfg.Validate(); err != nil {
		return inkerrors.Wrap(inkerrors.ErrCodeConfigInvalid, err)
	}
	if err := dcfg.EnsureDir(); err != nil {
		return err
	}

	pidFile := daemon.NewPIDFile(dcfg.PIDPath)
	if pidFile.IsRunning() {
		return fmt.Errorf("daemon already running (pid file %s)", pidFile.Path())
	}
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() { _ = pidFile.Remove() }()

	eng := engine.NewClient(cfg.Engine.SocketPath, cfg.EngineDialTimeout(), cfg.EngineCallTimeout())
	store := settings.NewStore(settings.NewFileBackend())

	coord := coordinator.New(coordinator.Config{
		Engine:       eng,
		Settings:     store,
		Logger:       logger,
		PollInterval: cfg.PollInterval(),
	})
	defer coord.Close()

	watch := watcher.NewService(coord, logger, watcher.Options{
		Debounce:   cfg.WatchDebounce(),
		Extensions: cfg.NoteExtensions(),
	})
	defer watch.Close()

	// Workspaces named on the command line get watched right away; the
	// rest join as the shell touches them.
	for _, workspace := range workspaces {
		if err := watch.EnsureWatching(workspace); err != nil {
			logger.Warn("failed to watch workspace",
				slog.String("workspace", workspace),
				slog.String("error", err.Error()))
		}
	}

	srv, err := daemon.NewServer(daemon.ServerConfig{
		SocketPath:     dcfg.SocketPath,
		Coordinator:    coord,
		Engine:         eng,
		Watcher:        watch,
		Logger:         logger,
		Version:        version.Version,
		RequestTimeout: dcfg.Timeout,
		ShutdownGrace:  dcfg.ShutdownGracePeriod,
	})
	if err != nil {
		return err
	}

	out.Status("Starting daemon in foreground...")
	out.Detailf("socket: %s", dcfg.SocketPath)
	out.Detailf("engine: %s", cfg.Engine.SocketPath)
	out.Detailf("logs:   %s", logCfg.FilePath)
	out.Status("Press Ctrl+C to stop")
	out.Newline()

	logger.Info("daemon starting",
		slog.String("version", version.Version),
		slog.String("socket", dcfg.SocketPath),
		slog.String("engine_socket", cfg.Engine.SocketPath),
		slog.Int("pid", os.Getpid()))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Stop background work before the server finishes draining.
		coord.StopIndexingMetaPolling(true)
		watch.Close()
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited", slog.Any("error", inkerrors.FormatForLog(err)))
		return err
	}

	logger.Info("daemon stopped")
	out.Status("Daemon stopped")
	return nil
}
