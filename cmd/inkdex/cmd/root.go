// Package cmd provides the CLI commands for inkdex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inkdown/inkdex/internal/config"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/logging"
	"github.com/inkdown/inkdex/internal/output"
	"github.com/inkdown/inkdex/internal/profiling"
	"github.com/inkdown/inkdex/pkg/version"
)

// Global flags shared by all commands.
var (
	cfgFile   string
	debugMode bool
	noColor   bool

	profileCPU   string
	profileMem   string
	profileTrace string

	profiler       = profiling.NewProfiler()
	cpuCleanup     func()
	traceCleanup   func()
	loggingCleanup func()
)

// NewRootCmd creates the root command for the inkdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inkdex",
		Short: "Indexing sidecar for the Inkdown note app",
		Long: `Inkdex keeps Inkdown workspaces searchable.

It runs as a background daemon next to the desktop shell, talks to the
indexing engine over a Unix socket, and re-indexes notes as they are
saved. The shell controls it over JSON-RPC; this CLI covers the same
operations for scripting and debugging.

Start it with 'inkdex serve'.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("inkdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default ~/.config/inkdex/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.inkdex/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts CPU/trace profiling and debug logging
// when the matching flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling, writes the memory profile if
// requested, and closes the debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}

	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command, printing structured errors to stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, inkerrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads the sidecar configuration honoring --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, inkerrors.New(inkerrors.ErrCodeConfigInvalid, "failed to load configuration", err).
			WithSuggestion("check the config file syntax or remove it to use defaults")
	}
	return cfg, nil
}

// newWriter builds the output writer for a command, honoring --no-color.
func newWriter(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout(), output.WithNoColor(noColor))
}

// resolveWorkspace makes a workspace path absolute, defaulting to the
// working directory.
func resolveWorkspace(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", inkerrors.New(inkerrors.ErrCodeInvalidPath,
			fmt.Sprintf("failed to resolve workspace path %q", path), err)
	}
	return abs, nil
}
