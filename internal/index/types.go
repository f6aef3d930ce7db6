// Package index manages the vector search index backed by PostgreSQL with
// the pgvector extension.
//
// An index is a table with four fixed fields (id, category, text,
// text_vector) plus an HNSW cosine index over the vector column. The schema
// is declared up front and the table is created explicitly; uploads upsert by
// id so re-ingesting the same source converges instead of duplicating.
package index

// Document is an index-ready unit of content. ID must be stable across
// ingestion runs for upserts to converge.
type Document struct {
	ID       string
	Category string
	Text     string
}

// Record is a Document paired with its embedding, ready for upload.
type Record struct {
	Document
	TextVector []float32
}

// Hit is a single search result. Score is cosine similarity in [-1, 1],
// higher is closer.
type Hit struct {
	ID       string
	Category string
	Text     string
	Score    float64
}

// UploadResult reports the outcome of uploading one record. Err is nil on
// success.
type UploadResult struct {
	ID  string
	Err error
}
