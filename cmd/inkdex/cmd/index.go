package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkdown/inkdex/internal/daemon"
	"github.com/inkdown/inkdex/internal/engine"
	inkerrors "github.com/inkdown/inkdex/internal/errors"
	"github.com/inkdown/inkdex/internal/output"
)

func newIndexCmd() *cobra.Command {
	var (
		force      bool
		jsonOutput bool
		provider   string
		model      string
		notePath   string
	)

	cmd := &cobra.Command{
		Use:   "index [workspace]",
		Short: "Index a workspace",
		Long: `Index the notes of a workspace through the running daemon.

The workspace defaults to the current directory. The embedding provider
and model come from the workspace's stored indexing configuration; use
--provider and --model to override for one run.

Only one index run per workspace is allowed at a time. A second request
while one is running fails with a busy error and can simply be retried
once the run finishes.`,
		Example: `  # Index the current directory
  inkdex index

  # Rebuild everything, even unchanged notes
  inkdex index ~/notes --force

  # Index a single note
  inkdex index ~/notes --note daily/today.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := ""
			if len(args) > 0 {
				workspace = args[0]
			}
			return runIndex(cmd.Context(), cmd, indexOptions{
				workspace:  workspace,
				force:      force,
				jsonOutput: jsonOutput,
				provider:   provider,
				model:      model,
				notePath:   notePath,
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rebuild the index even for unchanged notes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run summary as JSON")
	cmd.Flags().StringVar(&provider, "provider", "", "Embedding provider override")
	cmd.Flags().StringVar(&model, "model", "", "Embedding model override")
	cmd.Flags().StringVar(&notePath, "note", "", "Index a single note (path relative to the workspace)")

	return cmd
}

type indexOptions struct {
	workspace  string
	force      bool
	jsonOutput bool
	provider   string
	model      string
	notePath   string
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	out := newWriter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workspace, err := resolveWorkspace(opts.workspace)
	if err != nil {
		return err
	}

	// Workspace runs can take minutes, so the call timeout follows the
	// engine's rather than the default RPC timeout.
	client := daemon.NewClient(cfg.Daemon.SocketPath, 0, cfg.EngineCallTimeout())

	provider, model := opts.provider, opts.model
	if provider == "" || model == "" {
		stored, err := client.GetConfig(ctx, daemon.GetConfigParams{WorkspacePath: workspace})
		if err != nil {
			return err
		}
		if !stored.Configured() {
			return inkerrors.New(inkerrors.ErrCodeMissingModel,
				fmt.Sprintf("workspace %s has no embedding model configured", workspace), nil).
				WithSuggestion("run 'inkdex config set --provider <p> --model <m>' first")
		}
		if provider == "" {
			provider = stored.EmbeddingProvider
		}
		if model == "" {
			model = stored.EmbeddingModel
		}
	}

	if opts.notePath != "" {
		return runIndexNote(ctx, cmd, client, workspace, opts.notePath, provider, model)
	}

	if !opts.jsonOutput {
		out.Statusf("Indexing %s...", workspace)
	}

	summary, err := client.IndexWorkspace(ctx, daemon.IndexWorkspaceParams{
		WorkspacePath:     workspace,
		EmbeddingProvider: provider,
		EmbeddingModel:    model,
		Force:             opts.force,
	})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return out.JSON(summary)
	}

	printSummary(out, summary)
	return nil
}

func runIndexNote(ctx context.Context, cmd *cobra.Command, client *daemon.Client, workspace, note, provider, model string) error {
	out := newWriter(cmd)

	indexed, err := client.IndexNote(ctx, daemon.IndexNoteParams{
		WorkspacePath:     workspace,
		NotePath:          note,
		EmbeddingProvider: provider,
		EmbeddingModel:    model,
	})
	if err != nil {
		return err
	}

	if !indexed {
		out.Warningf("Note %s was not indexed (workspace busy or engine unavailable)", note)
		out.Status("It will be picked up by the next full index run")
		return nil
	}

	out.Successf("Note indexed: %s", note)
	return nil
}

func printSummary(out *output.Writer, summary *engine.WorkspaceSummary) {
	out.Success("Workspace indexed")
	out.Field("Files discovered", summary.FilesDiscovered)
	out.Field("Files processed", summary.FilesProcessed)
	out.Field("Docs inserted", summary.DocsInserted)
	out.Field("Docs deleted", summary.DocsDeleted)
	out.Field("Segments", fmt.Sprintf("%d created, %d updated", summary.SegmentsCreated, summary.SegmentsUpdated))
	out.Field("Embeddings", summary.EmbeddingsWritten)
	out.Field("Edges", fmt.Sprintf("%d written, %d deleted", summary.EdgesWritten, summary.EdgesDeleted))

	if len(summary.SkippedFiles) > 0 {
		out.Newline()
		out.Warningf("Skipped %d files", len(summary.SkippedFiles))
		for _, f := range summary.SkippedFiles {
			out.Detail(f)
		}
	}
}
