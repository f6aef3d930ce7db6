package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notechat/notechat/internal/rag"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from Notion",
	Long: `Extract every page of the configured Notion database, embed it and
upsert it into the search index.

Pages keep their ids across runs, so reindexing updates documents in place
instead of duplicating them. Only one reindex can run at a time.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	exists, err := a.Index.Exists(ctx)
	if err != nil {
		return fmt.Errorf("checking index: %w", err)
	}
	if !exists {
		return fmt.Errorf("index %q does not exist; run 'notechat index create' first", a.Config.IndexName)
	}

	fmt.Printf("Reindexing from Notion database %s...\n", a.Config.NotionDatabaseID)

	report, err := a.Indexer.ReindexAll(ctx)
	if err != nil {
		if errors.Is(err, rag.ErrReindexBusy) {
			return fmt.Errorf("another reindex is already running; try again when it finishes")
		}
		return fmt.Errorf("reindexing: %w", err)
	}

	printReport(report)
	return nil
}

func printReport(report *rag.Report) {
	if report.Total == 0 {
		fmt.Println("The Notion database has no pages; nothing to index.")
		return
	}

	fmt.Println()
	fmt.Printf("Indexed %d/%d documents in %s.\n", report.Uploaded, report.Total, report.Duration.Round(time.Millisecond))
	if report.Empty > 0 {
		fmt.Printf("  %d page(s) had no text content (indexed anyway).\n", report.Empty)
	}
	if report.Failed > 0 {
		fmt.Printf("  %d page(s) failed:\n", report.Failed)
		for _, doc := range report.Documents {
			if doc.Err != nil {
				fmt.Printf("    - %s (%s): %v\n", doc.Category, doc.ID, doc.Err)
			}
		}
	}
}
