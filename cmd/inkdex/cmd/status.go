package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkdown/inkdex/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Show the current status of the inkdex daemon.

Displays whether the daemon is running, its process ID, uptime, engine
connectivity, the tracked workspace's indexed document count, and any
model change awaiting confirmation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := newWriter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := daemon.NewClient(cfg.Daemon.SocketPath, 0, 0)

	if !client.IsRunning() {
		if jsonOutput {
			return out.JSON(daemon.StatusResult{Running: false})
		}
		out.Status("Daemon is not running")
		out.Status("Run 'inkdex serve' to start it")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonOutput {
		return out.JSON(status)
	}

	out.Header("Inkdex daemon")
	out.Field("Status", "running")
	out.Field("PID", status.PID)
	out.Field("Version", status.Version)
	out.Field("Uptime", status.Uptime)
	if status.Memory != "" {
		out.Field("Memory", status.Memory)
	}
	out.Field("Socket", status.SocketPath)
	out.Field("Engine", engineState(status.EngineConnected))
	out.Field("Indexed docs", status.IndexedDocCount)
	if len(status.ActiveWorkspaces) > 0 {
		out.Field("Indexing now", strings.Join(status.ActiveWorkspaces, ", "))
	}

	if status.AwaitingModelChange && status.PendingModelChange != nil {
		out.Newline()
		out.Warningf("Model change awaiting confirmation: %s|%s",
			status.PendingModelChange.Provider, status.PendingModelChange.Model)
		out.Status("Run 'inkdex model confirm' to apply or 'inkdex model cancel' to discard")
	}

	return nil
}

func engineState(connected bool) string {
	if connected {
		return "connected"
	}
	return "unreachable"
}
