// Package app wires the application together: configuration, database pool,
// Genkit, the index manager and the retrieval pipeline.
package app

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notechat/notechat/internal/chat"
	"github.com/notechat/notechat/internal/config"
	"github.com/notechat/notechat/internal/embed"
	"github.com/notechat/notechat/internal/index"
	"github.com/notechat/notechat/internal/notion"
	"github.com/notechat/notechat/internal/rag"
)

// App is the application container. Setup builds it fully wired; Close
// releases everything.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	EmbedClient *embed.Client
	Index       *index.Manager
	Notion      *notion.Client
	Extractor   *notion.Extractor
	Indexer     *rag.Indexer
	Retriever   *rag.Retriever
	Generator   *rag.Generator
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger().Debug("database pool closed")
	}

	return nil
}

// NewSession starts a fresh chat session over the wired pipeline.
func (a *App) NewSession() (*chat.Session, error) {
	return chat.NewSession(a.Retriever, a.Generator, a.Logger)
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// reindexLockPath returns the file used for cross-process reindex
// exclusivity, next to the config directory.
func reindexLockPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".notechat", "reindex.lock")
}
