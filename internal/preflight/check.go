// Package preflight validates that the machine can run the inkdex
// daemon: state directory, disk space, descriptor limits, and the two
// Unix sockets it lives on.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/inkdown/inkdex/internal/settings"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose      bool
	output       io.Writer
	runtimeDir   string
	daemonSocket string
	engineSocket string
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithRuntimeDir sets the daemon state directory to check.
func WithRuntimeDir(dir string) Option {
	return func(c *Checker) {
		c.runtimeDir = dir
	}
}

// WithDaemonSocket sets the daemon socket path to check.
func WithDaemonSocket(path string) Option {
	return func(c *Checker) {
		c.daemonSocket = path
	}
}

// WithEngineSocket sets the engine socket path to check.
func WithEngineSocket(path string) Option {
	return func(c *Checker) {
		c.engineSocket = path
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:     os.Stdout,
		runtimeDir: defaultRuntimeDir(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultRuntimeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".inkdex")
	}
	return filepath.Join(home, ".inkdex")
}

// RunAll runs all preflight checks and returns the results. A non-empty
// workspacePath adds a settings check for that workspace.
func (c *Checker) RunAll(_ context.Context, workspacePath string) []CheckResult {
	var results []CheckResult

	// Runtime dir first; the disk check stats the directory it creates
	results = append(results, c.CheckRuntimeDir())
	results = append(results, c.CheckDiskSpace(c.runtimeDir))
	results = append(results, c.CheckFileDescriptors())
	results = append(results, c.CheckDaemonSocket())
	results = append(results, c.CheckEngineSocket())

	if workspacePath != "" {
		results = append(results, c.CheckWorkspace(workspacePath))
	}

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "Inkdex System Check")
	_, _ = fmt.Fprintln(c.output, "===================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	status := c.SummaryStatus(results)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(status))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status == StatusWarn {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckRuntimeDir checks that the daemon state directory can be written.
// Logs, the PID file, and profiles all live under it.
func (c *Checker) CheckRuntimeDir() CheckResult {
	result := CheckResult{
		Name:     "runtime_dir",
		Required: true,
	}

	if err := os.MkdirAll(c.runtimeDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", c.runtimeDir, err)
		return result
	}

	testFile := filepath.Join(c.runtimeDir, ".inkdex-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = c.runtimeDir
	return result
}

// CheckWorkspace checks that a workspace exists and its settings
// directory can be written.
func (c *Checker) CheckWorkspace(path string) CheckResult {
	result := CheckResult{
		Name:     "workspace_settings",
		Required: true,
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("workspace not found: %v", err)
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = path + " is not a directory"
		return result
	}

	settingsDir := filepath.Dir(settings.NewFileBackend().SettingsPath(path))
	if err := os.MkdirAll(settingsDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", settingsDir, err)
		return result
	}

	testFile := filepath.Join(settingsDir, ".inkdex-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}
