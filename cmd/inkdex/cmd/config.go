package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inkdown/inkdex/configs"
	"github.com/inkdown/inkdex/internal/config"
	"github.com/inkdown/inkdex/internal/daemon"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/settings"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage a workspace's indexing configuration",
		Long: `Manage the per-workspace indexing configuration.

Each workspace stores its embedding provider, embedding model, and
auto-index preference in .inkdown/settings.json inside the workspace.
When the daemon is running, reads and writes go through it so its cache
stays coherent; otherwise the settings file is accessed directly.`,
		Example: `  # Show the current directory's indexing config
  inkdex config get

  # Configure embeddings for a workspace
  inkdex config set ~/notes --provider ollama --model nomic-embed-text

  # Turn on indexing on save
  inkdex config set --auto-index

  # Print the settings file path
  inkdex config path

  # Create the sidecar's own config file
  inkdex config init`,
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var (
		jsonOutput bool
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "get [workspace]",
		Short: "Show a workspace's indexing configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := ""
			if len(args) > 0 {
				workspace = args[0]
			}
			return runConfigGet(cmd.Context(), cmd, workspace, refresh, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the daemon's cache and reread from disk")

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	var (
		provider  string
		model     string
		autoIndex bool
	)

	cmd := &cobra.Command{
		Use:   "set [workspace]",
		Short: "Update a workspace's indexing configuration",
		Long: `Update a workspace's indexing configuration.

--provider and --model must be given together. --auto-index on its own
toggles indexing on save while keeping the stored model.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := ""
			if len(args) > 0 {
				workspace = args[0]
			}

			var auto *bool
			if cmd.Flags().Changed("auto-index") {
				auto = &autoIndex
			}
			return runConfigSet(cmd.Context(), cmd, workspace, provider, model, auto)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Embedding provider (e.g. ollama)")
	cmd.Flags().StringVar(&model, "model", "", "Embedding model (e.g. nomic-embed-text)")
	cmd.Flags().BoolVar(&autoIndex, "auto-index", false, "Index notes automatically on save")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path [workspace]",
		Short: "Print the workspace's settings file path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := ""
			if len(args) > 0 {
				workspace = args[0]
			}
			abs, err := resolveWorkspace(workspace)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), settings.NewFileBackend().SettingsPath(abs))
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the sidecar's configuration file",
		Long: `Create the inkdex configuration file from the built-in template.

The file is created at ~/.config/inkdex/config.yaml (or
$XDG_CONFIG_HOME/inkdex/config.yaml if XDG_CONFIG_HOME is set). Every
setting ships commented out; the daemon runs fine without the file.

This configures the sidecar process itself. Per-workspace indexing
settings are managed with 'inkdex config set'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing config file (a .bak copy is kept)")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := newWriter(cmd)
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("Configuration file already exists")
			out.Detailf("location: %s", configPath)
			out.Status("Use --force to replace it with a fresh template")
			return nil
		}

		backupPath := configPath + ".bak"
		if err := os.Rename(configPath, backupPath); err != nil {
			return fmt.Errorf("failed to back up existing config: %w", err)
		}
		out.Statusf("Backed up existing config to %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration file")
	out.Detailf("location: %s", configPath)
	out.Status("Uncomment a setting to change it; defaults cover the rest")
	return nil
}

func runConfigGet(ctx context.Context, cmd *cobra.Command, workspace string, refresh, jsonOutput bool) error {
	out := newWriter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	abs, err := resolveWorkspace(workspace)
	if err != nil {
		return err
	}

	ic, err := fetchIndexingConfig(ctx, cfg.Daemon.SocketPath, abs, refresh)
	if err != nil {
		return err
	}

	if jsonOutput {
		return out.JSON(ic)
	}

	if ic == nil {
		out.Status("No indexing configuration")
		out.Status("Run 'inkdex config set --provider <p> --model <m>' to create one")
		return nil
	}

	out.Field("Provider", ic.EmbeddingProvider)
	out.Field("Model", ic.EmbeddingModel)
	out.Field("Auto-index", ic.AutoIndex)
	out.Field("Configured", ic.Configured())
	return nil
}

func runConfigSet(ctx context.Context, cmd *cobra.Command, workspace, provider, model string, autoIndex *bool) error {
	out := newWriter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	abs, err := resolveWorkspace(workspace)
	if err != nil {
		return err
	}

	if (provider == "") != (model == "") {
		return inkerrors.New(inkerrors.ErrCodeMissingModel,
			"--provider and --model must be given together", nil)
	}

	// Toggling auto-index alone keeps the stored model, which requires
	// one to exist.
	if provider == "" && model == "" {
		if autoIndex == nil {
			return inkerrors.New(inkerrors.ErrCodeInvalidInput,
				"nothing to set", nil).
				WithSuggestion("pass --provider and --model, or --auto-index")
		}

		current, err := fetchIndexingConfig(ctx, cfg.Daemon.SocketPath, abs, false)
		if err != nil {
			return err
		}
		if !current.Configured() {
			return inkerrors.New(inkerrors.ErrCodeMissingModel,
				"workspace has no embedding model to toggle auto-index for", nil).
				WithSuggestion("set --provider and --model first")
		}
		provider = current.EmbeddingProvider
		model = current.EmbeddingModel
	}

	if err := storeIndexingConfig(ctx, cfg.Daemon.SocketPath, abs, provider, model, autoIndex); err != nil {
		return err
	}

	out.Successf("Indexing configuration updated for %s", abs)
	return nil
}

// fetchIndexingConfig reads a workspace's config through the daemon
// when it is running, directly from the settings file otherwise.
func fetchIndexingConfig(ctx context.Context, socketPath, workspace string, refresh bool) (*settings.IndexingConfig, error) {
	client := daemon.NewClient(socketPath, 0, 0)
	if client.IsRunning() {
		return client.GetConfig(ctx, daemon.GetConfigParams{
			WorkspacePath: workspace,
			Refresh:       refresh,
		})
	}

	store := settings.NewStore(settings.NewFileBackend())
	return store.GetIndexingConfig(ctx, workspace)
}

// storeIndexingConfig writes a workspace's config through the daemon
// when it is running, keeping its cache coherent, directly otherwise.
func storeIndexingConfig(ctx context.Context, socketPath, workspace, provider, model string, autoIndex *bool) error {
	client := daemon.NewClient(socketPath, 0, 0)
	if client.IsRunning() {
		return client.SetConfig(ctx, daemon.SetConfigParams{
			WorkspacePath:     workspace,
			EmbeddingProvider: provider,
			EmbeddingModel:    model,
			AutoIndex:         autoIndex,
		})
	}

	store := settings.NewStore(settings.NewFileBackend())
	return store.SetIndexingConfig(ctx, workspace, provider, model, autoIndex)
}
