package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/logging"
	"github.com/inkdown/inkdex/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View daemon logs",
		Long: `View and tail the inkdex daemon log.

By default, shows the last 50 lines. Use -f to follow new entries in
real time (like 'tail -f').

Examples:
  inkdex logs                   # Show last 50 lines
  inkdex logs -n 100            # Show last 100 lines
  inkdex logs -f                # Follow logs in real time
  inkdex logs --level error     # Show only errors
  inkdex logs --filter "index"  # Filter by pattern`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file (overrides the configured path)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	explicit := opts.logFile
	if explicit == "" {
		explicit = cfg.Logging.File
	}

	path, err := logging.FindLogFile(explicit)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return inkerrors.New(inkerrors.ErrCodeInvalidInput, "invalid filter pattern", err).
				WithSuggestion("use Go regular expression syntax, e.g. --filter 'index.*failed'")
		}
	}

	stdout := cmd.OutOrStdout()
	useColor := !noColor && !output.DetectNoColor() && output.IsTTY(stdout)
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: !useColor,
	}, stdout)

	// Headers go to stderr so piping stdout yields clean log lines
	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n", path)
	if opts.follow {
		fmt.Fprintln(cmd.ErrOrStderr(), "Following... (Ctrl+C to stop)")
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "---")

	if opts.follow {
		return followLogs(cmd, viewer, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func followLogs(cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr(), "\n---")
			fmt.Fprintln(cmd.ErrOrStderr(), "Stopped.")
			return nil
		}
	}
}
