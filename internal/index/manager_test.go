package index

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notechat/notechat/internal/log"
)

// fakeDB scripts Exec outcomes by record id. Only the surface Upload
// touches is implemented.
type fakeDB struct {
	execIDs []string
	failIDs map[string]error
}

func (f *fakeDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	id, _ := args[0].(string)
	f.execIDs = append(f.execIDs, id)
	if err, found := f.failIDs[id]; found {
		return pgconn.CommandTag{}, err
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("QueryRow not scripted")
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	panic("Begin not scripted")
}

func newUploadManager(t *testing.T, db DB) *Manager {
	t.Helper()
	schema, err := NewSchema("pages", 3)
	require.NoError(t, err)
	m, err := NewManager(db, schema, log.NewNop())
	require.NoError(t, err)
	return m
}

func uploadRec(id string, vec []float32) Record {
	return Record{
		Document:   Document{ID: id, Category: "notes", Text: "body"},
		TextVector: vec,
	}
}

func TestUploadIsolatesServerSideFailures(t *testing.T) {
	boom := &pgconn.PgError{Code: "23514", Message: "check constraint violated"}
	db := &fakeDB{failIDs: map[string]error{"b": boom}}
	m := newUploadManager(t, db)

	results, err := m.Upload(context.Background(), []Record{
		uploadRec("a", []float32{1, 0, 0}),
		uploadRec("b", []float32{0, 1, 0}),
		uploadRec("c", []float32{0, 0, 1}),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err, "a stored before the failure must stay stored")
	assert.ErrorContains(t, results[1].Err, "check constraint violated")
	assert.NoError(t, results[2].Err, "a failed record must not stop the rest")
	assert.Equal(t, []string{"a", "b", "c"}, db.execIDs)
}

func TestUploadMissingIndexAbortsTheRun(t *testing.T) {
	db := &fakeDB{failIDs: map[string]error{
		"b": &pgconn.PgError{Code: pgErrUndefinedTable},
	}}
	m := newUploadManager(t, db)

	_, err := m.Upload(context.Background(), []Record{
		uploadRec("a", []float32{1, 0, 0}),
		uploadRec("b", []float32{0, 1, 0}),
		uploadRec("c", []float32{0, 0, 1}),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexNotFound)
	assert.Equal(t, []string{"a", "b"}, db.execIDs, "no point retrying records against a missing table")
}

func TestUploadRejectsMismatchedDimensionsClientSide(t *testing.T) {
	db := &fakeDB{}
	m := newUploadManager(t, db)

	results, err := m.Upload(context.Background(), []Record{
		uploadRec("short", []float32{1}),
		uploadRec("ok", []float32{1, 0, 0}),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, results[0].Err, ErrDimensionMismatch)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, []string{"ok"}, db.execIDs, "mismatched vectors never reach the database")
}

func TestUploadEmptyInput(t *testing.T) {
	db := &fakeDB{}
	m := newUploadManager(t, db)

	results, err := m.Upload(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, db.execIDs)
}
