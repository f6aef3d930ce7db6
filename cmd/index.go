package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notechat/notechat/internal/index"
)

var dropYes bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the search index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the search index",
	Long: `Create the search index table with its HNSW vector index.

Creation fails if the index already exists; drop it first to rebuild from
scratch.`,
	RunE: runIndexCreate,
}

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the search index and all indexed documents",
	RunE:  runIndexDrop,
}

func init() {
	indexDropCmd.Flags().BoolVar(&dropYes, "yes", false, "skip the confirmation prompt")
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexDropCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Index.Create(ctx); err != nil {
		if errors.Is(err, index.ErrIndexExists) {
			return fmt.Errorf("index %q already exists; run 'notechat index drop' first to rebuild it", a.Config.IndexName)
		}
		return fmt.Errorf("creating index: %w", err)
	}

	fmt.Printf("Created index %q (dimension %d).\n", a.Config.IndexName, a.Config.EmbedderDimension)
	fmt.Println("Run 'notechat reindex' to fill it from Notion.")
	return nil
}

func runIndexDrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !dropYes {
		fmt.Printf("This deletes index %q and every indexed document.\n", a.Config.IndexName)
		fmt.Print("Type 'yes' to continue: ")
		var confirm string
		if _, err := fmt.Scanln(&confirm); err != nil || confirm != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := a.Index.Drop(ctx); err != nil {
		return fmt.Errorf("dropping index: %w", err)
	}

	fmt.Printf("Dropped index %q.\n", a.Config.IndexName)
	return nil
}
