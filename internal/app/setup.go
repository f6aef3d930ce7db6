package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notechat/notechat/db"
	"github.com/notechat/notechat/internal/config"
	"github.com/notechat/notechat/internal/embed"
	"github.com/notechat/notechat/internal/index"
	"github.com/notechat/notechat/internal/notion"
	"github.com/notechat/notechat/internal/rag"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.EmbedClient, err = embed.NewClient(
		embedder,
		cfg.EmbedderDimension,
		embed.RetryConfig{
			Attempts: cfg.EmbedAttempts,
			Backoff:  time.Duration(cfg.EmbedBackoffMs) * time.Millisecond,
		},
		embed.PerMinuteLimiter(cfg.EmbedPerMinute),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	schema, err := index.NewSchema(cfg.IndexName, cfg.EmbedderDimension)
	if err != nil {
		return nil, fmt.Errorf("building index schema: %w", err)
	}
	schema.HNSW = index.HNSWParams{
		M:              cfg.HNSWM,
		EfConstruction: cfg.HNSWEfConstruction,
		EfSearch:       cfg.HNSWEfSearch,
	}

	a.Index, err = index.NewManager(pool, schema, logger)
	if err != nil {
		return nil, fmt.Errorf("creating index manager: %w", err)
	}

	a.Notion, err = notion.New(cfg.NotionToken, logger)
	if err != nil {
		return nil, fmt.Errorf("creating notion client: %w", err)
	}

	a.Extractor, err = notion.NewExtractor(a.Notion, cfg.NotionDatabaseID, logger)
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}

	a.Indexer, err = rag.NewIndexer(a.Extractor, a.EmbedClient, a.Index, reindexLockPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating indexer: %w", err)
	}

	a.Retriever, err = rag.NewRetriever(a.EmbedClient, a.Index, cfg.TopK, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	a.Generator, err = rag.NewGenerator(g, cfg.ModelName, cfg.Temperature, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	return a, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
