package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema(t *testing.T) {
	s, err := NewSchema("pages", 3072)
	require.NoError(t, err)

	assert.Equal(t, "pages", s.Name)
	assert.Equal(t, 3072, s.Dimension)
	assert.Equal(t, HNSWParams{M: 4, EfConstruction: 400, EfSearch: 500}, s.HNSW)
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr error
	}{
		{
			name:   "valid",
			schema: Schema{Name: "pages_v2", Dimension: 768, HNSW: DefaultHNSW()},
		},
		{
			name:    "empty name",
			schema:  Schema{Name: "", Dimension: 768, HNSW: DefaultHNSW()},
			wantErr: ErrInvalidSchemaName,
		},
		{
			name:    "uppercase name",
			schema:  Schema{Name: "Pages", Dimension: 768, HNSW: DefaultHNSW()},
			wantErr: ErrInvalidSchemaName,
		},
		{
			name:    "sql injection attempt",
			schema:  Schema{Name: "pages; drop table users--", Dimension: 768, HNSW: DefaultHNSW()},
			wantErr: ErrInvalidSchemaName,
		},
		{
			name:    "zero dimension",
			schema:  Schema{Name: "pages", Dimension: 0, HNSW: DefaultHNSW()},
			wantErr: ErrInvalidDimension,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchemaValidateHNSWBounds(t *testing.T) {
	s := Schema{Name: "pages", Dimension: 768, HNSW: HNSWParams{M: 1, EfConstruction: 400, EfSearch: 500}}
	assert.Error(t, s.Validate())

	s.HNSW = HNSWParams{M: 16, EfConstruction: 20, EfSearch: 500}
	assert.Error(t, s.Validate(), "ef_construction below 2*m must be rejected")

	s.HNSW = HNSWParams{M: 16, EfConstruction: 200, EfSearch: 0}
	assert.Error(t, s.Validate())
}

func TestSchemaDDL(t *testing.T) {
	s, err := NewSchema("pages", 768)
	require.NoError(t, err)

	table := s.createTableSQL()
	assert.Contains(t, table, "CREATE TABLE pages")
	assert.Contains(t, table, "id          TEXT PRIMARY KEY")
	assert.Contains(t, table, "VECTOR(768)")
	assert.NotContains(t, table, "IF NOT EXISTS", "conflict detection relies on the bare CREATE failing")

	vectorIdx := s.createVectorIndexSQL()
	assert.Contains(t, vectorIdx, "USING hnsw (text_vector vector_cosine_ops)")
	assert.Contains(t, vectorIdx, "m = 4, ef_construction = 400")

	assert.Contains(t, s.createCategoryIndexSQL(), "pages_category_idx")
	assert.Equal(t, "DROP TABLE IF EXISTS pages", s.dropSQL())
}

func TestSchemaWideVectorsUseHalfvec(t *testing.T) {
	// HNSW over plain vector caps at 2000 dimensions; wider embeddings go
	// through a halfvec cast that index and query must share.
	wide, err := NewSchema("pages", 3072)
	require.NoError(t, err)
	assert.Contains(t, wide.createVectorIndexSQL(), "halfvec_cosine_ops")
	assert.Contains(t, wide.createVectorIndexSQL(), "halfvec(3072)")
	assert.Contains(t, wide.distanceExpr(), "halfvec(3072)")

	narrow, err := NewSchema("pages", 768)
	require.NoError(t, err)
	assert.Contains(t, narrow.createVectorIndexSQL(), "vector_cosine_ops")
	assert.Equal(t, "(text_vector <=> $1)", narrow.distanceExpr())
}
