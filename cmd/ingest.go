package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/usage"
)

func newIngestCmd() *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest <agent-id> <file>",
		Short: "Ingest a document into an agent's training corpus",
		Long: `Ingest extracts text from the file, splits it into overlapping chunks,
embeds every chunk and stores the result for similarity search. The flat
per-chunk token cost is charged to your current billing period.

Supported file types: PDF and anything text-based (plain text, markdown).`,
		Args: cobra.ExactArgs(2),
		RunE: withApp(runIngest),
	}

	ingestCmd.AddCommand(newIngestListCmd())
	ingestCmd.AddCommand(newIngestDeleteCmd())

	return ingestCmd
}

func runIngest(ctx context.Context, a *app.App, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	agentID, err := parseAgentID(args[0])
	if err != nil {
		return err
	}

	ag, err := a.Agents.Get(ctx, agentID)
	if err != nil {
		return err
	}
	if ag.CreatorID != user {
		return fmt.Errorf("agent %d does not belong to %s", agentID, user)
	}

	path := args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	fileName := filepath.Base(path)
	result, err := a.Pipeline.IngestDocument(ctx, agentID, fileName, data, mimeTypeOf(path))
	if err != nil {
		return err
	}

	period, err := a.Usage.CurrentPeriod(ctx, user)
	if err != nil {
		return err
	}
	record := usage.Record{
		UserID:        user,
		AgentID:       &agentID,
		TokensUsed:    result.TokensCharged,
		ModelUsed:     a.Config.EmbedderModel,
		OperationType: usage.OpDocumentEmbedding,
	}
	if err := a.Usage.Charge(ctx, period.ID, result.TokensCharged, false, []usage.Record{record}); err != nil {
		return err
	}

	fmt.Printf("Ingested %s: document %d, %d chunks, %d tokens charged\n",
		fileName, result.DocumentID, result.ChunkCount, result.TokensCharged)
	return nil
}

func newIngestListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's training documents",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			agentID, err := parseAgentID(args[0])
			if err != nil {
				return err
			}

			docs, err := a.Documents.ListDocuments(ctx, agentID)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("No training documents.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILE\tTYPE\tCHUNKS\tSTATUS\tCREATED")
			for _, d := range docs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
					d.ID, d.FileName, d.FileType, d.ChunkCount, d.Status,
					d.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		}),
	}
}

func newIngestDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a training document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id: %s", args[0])
			}
			if err := a.Documents.DeleteDocument(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted document %d\n", id)
			return nil
		}),
	}
}

// mimeTypeOf maps a file path to the MIME type the extractor expects.
func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "text/plain"
}
