// Package cmd implements the notechat command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/notechat/notechat/internal/app"
	"github.com/notechat/notechat/internal/config"
	"github.com/notechat/notechat/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "notechat",
	Short: "Chat with your Notion workspace",
	Long: `notechat answers questions grounded on the contents of a Notion database.

Pages are embedded and stored in a PostgreSQL vector index; every question
retrieves the closest pages and feeds them to the model as context.

Running notechat without a subcommand starts the interactive chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute is the entry point called from main.
func Execute() error {
	slog.SetDefault(initLogger())
	return rootCmd.Execute()
}

// initLogger builds the process logger. DEBUG in the environment enables
// debug level; output goes to stderr, stdout belongs to the chat.
func initLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// setupApp loads configuration and wires the application. The caller owns
// the returned App and must Close it.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		if os.Getenv("GEMINI_API_KEY") == "" {
			fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Please run:")
			fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		}
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}
