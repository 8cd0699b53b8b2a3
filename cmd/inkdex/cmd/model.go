package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkdown/inkdex/internal/daemon"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Change a workspace's embedding model",
		Long: `Change the embedding model used to index a workspace.

Changing the model invalidates existing embeddings, so unless the
workspace index is empty the change is staged and must be confirmed
before it takes effect. Only one change can be staged at a time.`,
		Example: `  # Request a model change
  inkdex model change "ollama|mxbai-embed-large"

  # Apply the staged change and rebuild the index
  inkdex model confirm --reindex

  # Discard the staged change
  inkdex model cancel`,
	}

	cmd.AddCommand(newModelChangeCmd())
	cmd.AddCommand(newModelConfirmCmd())
	cmd.AddCommand(newModelCancelCmd())

	return cmd
}

func newModelChangeCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "change <provider|model>",
		Short: "Request an embedding model change",
		Long: `Request an embedding model change for a workspace.

The selection uses the form 'provider|model'. When the new pair matches
the stored one, or the workspace index is empty, the change applies
immediately; otherwise it is staged for confirmation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelChange(cmd.Context(), cmd, workspace, args[0])
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace path (default current directory)")
	return cmd
}

func newModelConfirmCmd() *cobra.Command {
	var (
		workspace string
		reindex   bool
	)

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Apply the staged model change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModelConfirm(cmd.Context(), cmd, workspace, reindex)
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace path (default current directory)")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the index with the new model after applying")
	return cmd
}

func newModelCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the staged model change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModelCancel(cmd.Context(), cmd)
		},
	}
}

// parseSelection validates a 'provider|model' selection. The daemon
// treats malformed selections as a silent no-op to protect the shell's
// settings UI; a human typing at the CLI gets told what is wrong.
func parseSelection(raw string) (provider, model string, err error) {
	idx := strings.Index(raw, "|")
	if idx < 0 {
		return "", "", inkerrors.New(inkerrors.ErrCodeBadModelValue,
			fmt.Sprintf("invalid model selection %q", raw), nil).
			WithSuggestion("use the form 'provider|model', e.g. 'ollama|nomic-embed-text'")
	}

	provider, model = raw[:idx], raw[idx+1:]
	if provider == "" || model == "" {
		return "", "", inkerrors.New(inkerrors.ErrCodeMissingModel,
			fmt.Sprintf("model selection %q is missing its provider or model", raw), nil).
			WithSuggestion("both sides of the '|' must be non-empty")
	}
	return provider, model, nil
}

func runModelChange(ctx context.Context, cmd *cobra.Command, workspace, raw string) error {
	out := newWriter(cmd)

	provider, model, err := parseSelection(raw)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	abs, err := resolveWorkspace(workspace)
	if err != nil {
		return err
	}

	client := daemon.NewClient(cfg.Daemon.SocketPath, 0, 0)
	result, err := client.RequestModelChange(ctx, daemon.ModelChangeRequestParams{
		WorkspacePath: abs,
		Value:         raw,
	})
	if err != nil {
		return err
	}

	if !result.AwaitingConfirmation {
		out.Successf("Model set to %s|%s", provider, model)
		return nil
	}

	out.Warningf("Model change to %s|%s is staged", result.Pending.Provider, result.Pending.Model)
	out.Status("Existing embeddings were built with the current model.")
	out.Status("Run 'inkdex model confirm --reindex' to apply and rebuild, or 'inkdex model cancel' to discard")
	return nil
}

func runModelConfirm(ctx context.Context, cmd *cobra.Command, workspace string, reindex bool) error {
	out := newWriter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	abs, err := resolveWorkspace(workspace)
	if err != nil {
		return err
	}

	client := daemon.NewClient(cfg.Daemon.SocketPath, 0, cfg.EngineCallTimeout())
	if err := client.ConfirmModelChange(ctx, daemon.ModelChangeConfirmParams{
		WorkspacePath: abs,
		ForceReindex:  reindex,
	}); err != nil {
		return err
	}

	out.Success("Model change applied")
	if reindex {
		out.Status("Index rebuilt with the new model; see 'inkdex status' for the count")
	}
	return nil
}

func runModelCancel(ctx context.Context, cmd *cobra.Command) error {
	out := newWriter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := daemon.NewClient(cfg.Daemon.SocketPath, 0, 0)
	if err := client.CancelModelChange(ctx); err != nil {
		return err
	}

	out.Status("Model change discarded")
	return nil
}
