package index

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema problems.
var (
	// ErrInvalidSchemaName indicates the index name is unsafe as a table
	// identifier.
	ErrInvalidSchemaName = errors.New("invalid index name")

	// ErrInvalidDimension indicates the vector dimension is out of range.
	ErrInvalidDimension = errors.New("invalid vector dimension")
)

// HNSWParams tunes the HNSW graph built over the vector column.
type HNSWParams struct {
	// M is the maximum number of bidirectional links per node.
	M int

	// EfConstruction is the candidate list size during index build.
	EfConstruction int

	// EfSearch is the candidate list size during queries. Applied per
	// search transaction, not stored in the index itself.
	EfSearch int
}

// Schema declares the shape of a search index. The field set is fixed:
//
//	id          text primary key
//	category    text, filterable
//	text        text, searchable content
//	text_vector vector(Dimension), HNSW cosine
type Schema struct {
	// Name is both the index name and the backing table name.
	Name string

	// Dimension is the embedding dimension. Every uploaded vector must
	// match it exactly.
	Dimension int

	HNSW HNSWParams
}

// DefaultHNSW matches the tuning used for small document collections: a
// sparse graph (m=4) with a wide build and search beam.
func DefaultHNSW() HNSWParams {
	return HNSWParams{M: 4, EfConstruction: 400, EfSearch: 500}
}

// NewSchema builds a validated Schema with default HNSW parameters.
func NewSchema(name string, dimension int) (Schema, error) {
	s := Schema{Name: name, Dimension: dimension, HNSW: DefaultHNSW()}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Validate checks that the schema can be turned into DDL safely.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSchemaName)
	}
	for _, r := range s.Name {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidSchemaName, s.Name)
		}
	}
	if s.Dimension < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, s.Dimension)
	}
	if s.HNSW.M < 2 {
		return fmt.Errorf("invalid HNSW m: %d", s.HNSW.M)
	}
	if s.HNSW.EfConstruction < 2*s.HNSW.M {
		return fmt.Errorf("invalid HNSW ef_construction: %d (must be >= 2*m)", s.HNSW.EfConstruction)
	}
	if s.HNSW.EfSearch < 1 {
		return fmt.Errorf("invalid HNSW ef_search: %d", s.HNSW.EfSearch)
	}
	return nil
}

// hnswMaxVectorDim is the pgvector limit for HNSW indexes over the plain
// vector type. Wider embeddings are indexed through a halfvec cast, the
// approach pgvector documents for high-dimensional models.
const hnswMaxVectorDim = 2000

func (s Schema) useHalfvec() bool {
	return s.Dimension > hnswMaxVectorDim
}

// distanceExpr returns the cosine distance expression between the stored
// vector and bind parameter $1. Must match the indexed expression exactly or
// the planner falls back to a sequential scan.
func (s Schema) distanceExpr() string {
	if s.useHalfvec() {
		return fmt.Sprintf("(text_vector::halfvec(%d) <=> $1::halfvec(%d))", s.Dimension, s.Dimension)
	}
	return "(text_vector <=> $1)"
}

// createTableSQL returns the DDL for the index table. No IF NOT EXISTS:
// creating an existing index is an error the caller must handle explicitly.
func (s Schema) createTableSQL() string {
	return fmt.Sprintf(`
		CREATE TABLE %s (
			id          TEXT PRIMARY KEY,
			category    TEXT NOT NULL DEFAULT '',
			text        TEXT NOT NULL DEFAULT '',
			text_vector VECTOR(%d) NOT NULL
		)`, s.Name, s.Dimension)
}

// createVectorIndexSQL returns the DDL for the HNSW index over text_vector.
// The operator class matches the cosine distance operator used in Search.
func (s Schema) createVectorIndexSQL() string {
	column := "text_vector vector_cosine_ops"
	if s.useHalfvec() {
		column = fmt.Sprintf("(text_vector::halfvec(%d)) halfvec_cosine_ops", s.Dimension)
	}
	return fmt.Sprintf(`
		CREATE INDEX %s_text_vector_idx ON %s
		USING hnsw (%s)
		WITH (m = %d, ef_construction = %d)`,
		s.Name, s.Name, column, s.HNSW.M, s.HNSW.EfConstruction)
}

// createCategoryIndexSQL returns the DDL for the filterable category field.
func (s Schema) createCategoryIndexSQL() string {
	return fmt.Sprintf(`CREATE INDEX %s_category_idx ON %s (category)`, s.Name, s.Name)
}

// dropSQL returns the DDL to remove the index table and everything on it.
func (s Schema) dropSQL() string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.Name)
}
