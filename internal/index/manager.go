package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Sentinel errors for index operations.
var (
	// ErrIndexExists indicates Create found an index with the same name.
	// Creation never silently reuses an existing index; drop it first.
	ErrIndexExists = errors.New("index already exists")

	// ErrIndexNotFound indicates the index table does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrDimensionMismatch indicates a vector does not match the schema
	// dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidTopK indicates a non-positive search limit.
	ErrInvalidTopK = errors.New("top-k must be at least 1")
)

// PostgreSQL error codes checked against pgconn.PgError.
const (
	pgErrDuplicateTable = "42P07"
	pgErrUndefinedTable = "42P01"
)

// searchTimeout bounds a single vector search, query embedding excluded.
const searchTimeout = 10 * time.Second

// DB is the database surface Manager needs. *pgxpool.Pool satisfies it;
// tests substitute lighter fakes.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Manager performs all operations on one search index: lifecycle (Create,
// Drop), ingestion (Upload) and queries (Search, Count).
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	db     DB
	schema Schema
	logger *slog.Logger
}

// NewManager creates a Manager over a validated schema.
func NewManager(db DB, schema Schema, logger *slog.Logger) (*Manager, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, schema: schema, logger: logger}, nil
}

// Schema returns the schema the Manager operates on.
func (m *Manager) Schema() Schema {
	return m.schema
}

// Create creates the index table and its HNSW and category indexes in one
// transaction. Returns ErrIndexExists if an index with the same name is
// already present.
func (m *Manager) Create(ctx context.Context) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.schema.createTableSQL()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrDuplicateTable {
			return fmt.Errorf("%w: %s", ErrIndexExists, m.schema.Name)
		}
		return fmt.Errorf("create index table: %w", err)
	}

	if _, err := tx.Exec(ctx, m.schema.createVectorIndexSQL()); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}

	if _, err := tx.Exec(ctx, m.schema.createCategoryIndexSQL()); err != nil {
		return fmt.Errorf("create category index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create transaction: %w", err)
	}

	m.logger.Info("created index",
		"name", m.schema.Name,
		"dimension", m.schema.Dimension,
		"hnsw_m", m.schema.HNSW.M,
		"hnsw_ef_construction", m.schema.HNSW.EfConstruction)
	return nil
}

// Drop removes the index table and all indexed documents. Dropping a
// nonexistent index is not an error.
func (m *Manager) Drop(ctx context.Context) error {
	if _, err := m.db.Exec(ctx, m.schema.dropSQL()); err != nil {
		return fmt.Errorf("drop index %s: %w", m.schema.Name, err)
	}
	m.logger.Info("dropped index", "name", m.schema.Name)
	return nil
}

// Exists reports whether the index table is present.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	var regclass *string
	err := m.db.QueryRow(ctx, `SELECT to_regclass($1)::text`, m.schema.Name).Scan(&regclass)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", m.schema.Name, err)
	}
	return regclass != nil, nil
}

// Upload upserts records by id, one statement per record. It returns one
// UploadResult per input record in order; a failed record does not stop the
// rest. The returned error covers failures that doom the whole upload, like
// a missing index table.
//
// Records whose vector does not match the schema dimension fail with
// ErrDimensionMismatch before touching the database. Statements are sent
// individually, not batched: a batch runs in one implicit transaction, so a
// mid-batch failure would roll back earlier records after their results
// were already reported as stored.
func (m *Manager) Upload(ctx context.Context, records []Record) ([]UploadResult, error) {
	results := make([]UploadResult, len(records))
	if len(records) == 0 {
		return results, nil
	}

	upsertSQL := fmt.Sprintf(`
		INSERT INTO %s (id, category, text, text_vector)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			category    = EXCLUDED.category,
			text        = EXCLUDED.text,
			text_vector = EXCLUDED.text_vector`, m.schema.Name)

	failed := 0
	for i, rec := range records {
		results[i].ID = rec.ID
		if len(rec.TextVector) != m.schema.Dimension {
			results[i].Err = fmt.Errorf("%w: got %d, index expects %d",
				ErrDimensionMismatch, len(rec.TextVector), m.schema.Dimension)
			failed++
			continue
		}

		_, err := m.db.Exec(ctx, upsertSQL, rec.ID, rec.Category, rec.Text, pgvector.NewVector(rec.TextVector))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgErrUndefinedTable {
				return results, fmt.Errorf("%w: %s", ErrIndexNotFound, m.schema.Name)
			}
			results[i].Err = fmt.Errorf("upsert %q: %w", rec.ID, err)
			failed++
		}
	}

	m.logger.Debug("uploaded records",
		"index", m.schema.Name,
		"total", len(records),
		"failed", failed)
	return results, nil
}

// Search returns up to topK hits nearest to the query vector by cosine
// distance, ordered by descending similarity. Fewer hits than topK means
// the index holds fewer documents.
func (m *Manager) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if len(vector) != m.schema.Dimension {
		return nil, fmt.Errorf("%w: query has %d, index expects %d",
			ErrDimensionMismatch, len(vector), m.schema.Dimension)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	tx, err := m.db.Begin(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("begin search transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(queryCtx) }()

	// SET does not take bind parameters; EfSearch is a validated int from
	// the schema, never user input. SET LOCAL scopes it to this transaction.
	setSQL := fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", m.schema.HNSW.EfSearch)
	if _, err := tx.Exec(queryCtx, setSQL); err != nil {
		return nil, fmt.Errorf("set hnsw.ef_search: %w", err)
	}

	distance := m.schema.distanceExpr()
	searchSQL := fmt.Sprintf(`
		SELECT id, category, text, 1 - %s AS score
		FROM %s
		ORDER BY %s
		LIMIT $2`, distance, m.schema.Name, distance)

	rows, err := tx.Query(queryCtx, searchSQL, pgvector.NewVector(vector), topK)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUndefinedTable {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, m.schema.Name)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search timeout: %w", err)
		}
		return nil, fmt.Errorf("search %s: %w", m.schema.Name, err)
	}

	hits, err := scanHits(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(queryCtx); err != nil {
		return nil, fmt.Errorf("commit search transaction: %w", err)
	}

	m.logger.Debug("search complete", "index", m.schema.Name, "top_k", topK, "hits", len(hits))
	return hits, nil
}

// Count returns the number of indexed documents.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var count int64
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, m.schema.Name)
	if err := m.db.QueryRow(ctx, countSQL).Scan(&count); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUndefinedTable {
			return 0, fmt.Errorf("%w: %s", ErrIndexNotFound, m.schema.Name)
		}
		return 0, fmt.Errorf("count %s: %w", m.schema.Name, err)
	}
	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

func scanHits(rows pgx.Rows) ([]Hit, error) {
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Category, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}
