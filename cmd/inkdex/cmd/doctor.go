package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkdown/inkdex/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [workspace]",
		Short: "Check system requirements and diagnose issues",
		Long: `Run diagnostics to ensure the inkdex daemon can operate correctly.

Checks:
  - Daemon state directory (~/.inkdex) is writable
  - Disk space (100MB minimum)
  - File descriptor limits (1024 minimum)
  - Daemon socket liveness
  - Engine socket reachability

With a workspace argument, also checks that the workspace's settings
directory can be written.

Socket checks are non-critical warnings; the daemon may simply be
stopped, and the Inkdown app starts the engine on demand.`,
		Example: `  # Run diagnostics
  inkdex doctor

  # Include a workspace's settings directory
  inkdex doctor ~/notes

  # JSON output for scripting
  inkdex doctor --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := ""
			if len(args) > 0 {
				var err error
				workspace, err = resolveWorkspace(args[0])
				if err != nil {
					return err
				}
			}
			return runDoctor(cmd, workspace, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, workspace string, verbose, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithDaemonSocket(cfg.Daemon.SocketPath),
		preflight.WithEngineSocket(cfg.Engine.SocketPath),
	)

	results := checker.RunAll(cmd.Context(), workspace)

	if jsonOutput {
		if err := writeDoctorJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}

// doctorReport is the JSON shape of a doctor run.
type doctorReport struct {
	Status   string        `json:"status"`
	Checks   []doctorCheck `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func writeDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	report := doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: make([]doctorCheck, len(results)),
	}

	for i, r := range results {
		report.Checks[i] = doctorCheck{
			Name:     r.Name,
			Status:   strings.ToLower(r.Status.String()),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}

		if r.IsCritical() {
			report.Errors = append(report.Errors, r.Name+": "+r.Message)
		} else if r.Status == preflight.StatusWarn {
			report.Warnings = append(report.Warnings, r.Name+": "+r.Message)
		}
	}

	return newWriter(cmd).JSON(report)
}
