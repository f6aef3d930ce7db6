package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := a.Config

	fmt.Println("Configuration:")
	fmt.Printf("  Chat model:     %s (temperature %.2f)\n", cfg.ModelName, cfg.Temperature)
	fmt.Printf("  Embedder:       %s (%d dimensions)\n", cfg.EmbedderModel, cfg.EmbedderDimension)
	fmt.Printf("  Top-k:          %d\n", cfg.TopK)
	fmt.Printf("  Notion DB:      %s\n", cfg.NotionDatabaseID)
	fmt.Printf("  Postgres:       %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)
	fmt.Println()

	exists, err := a.Index.Exists(ctx)
	if err != nil {
		return fmt.Errorf("checking index: %w", err)
	}

	fmt.Println("Index:")
	if !exists {
		fmt.Printf("  %q does not exist. Run 'notechat index create' to create it.\n", cfg.IndexName)
		return nil
	}

	count, err := a.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}

	fmt.Printf("  Name:           %s\n", cfg.IndexName)
	fmt.Printf("  Documents:      %d\n", count)
	fmt.Printf("  HNSW:           m=%d, ef_construction=%d, ef_search=%d\n",
		cfg.HNSWM, cfg.HNSWEfConstruction, cfg.HNSWEfSearch)

	if count == 0 {
		fmt.Fprintln(os.Stderr, "\nThe index is empty. Run 'notechat reindex' to fill it from Notion.")
	}

	return nil
}
