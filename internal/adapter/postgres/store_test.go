package postgres

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeBatchResults struct {
	n      int
	execs  int
	failAt int
	closed bool
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	f.execs++
	if f.failAt > 0 && f.execs == f.failAt {
		return pgconn.CommandTag{}, errors.New("deadlock detected")
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("unused") }
func (f *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (f *fakeBatchResults) Close() error {
	f.closed = true
	return nil
}

type fakeDB struct {
	batch   *pgx.Batch
	results *fakeBatchResults
	copied  [][]any
	cols    []string
	execSQL []string
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unused")
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batch = b
	if f.results == nil {
		f.results = &fakeBatchResults{}
	}
	f.results.n = b.Len()
	return f.results
}

func (f *fakeDB) CopyFrom(_ context.Context, _ pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	f.cols = cols
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copied = append(f.copied, vals)
		n++
	}
	return n, nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

// --- tests ---

func TestToRawRecord(t *testing.T) {
	values := []string{"abc", "2024-03", "South Yorkshire Police", "-1.5", "53.3", "On or near Park", "Burglary", "", "Ecclesall", "", ""}

	rec := toRawRecord(42, values)

	assert.Equal(t, domain.RecordRef{Source: Source, Row: 42}, rec.Ref)
	assert.Equal(t, "Burglary", rec.Fields[domain.ColumnCrimeType])
	assert.Equal(t, "Ecclesall", rec.Fields[domain.ColumnArea])
	assert.Equal(t, "53.3", rec.Fields[domain.ColumnLatitude])

	inc, err := domain.ParseIncident(rec)
	require.NoError(t, err)
	assert.Equal(t, "abc", inc.ID)
}

func TestSelectSQL_KeysetPagination(t *testing.T) {
	sql := selectSQL()

	assert.Contains(t, sql, "WHERE row_id > $1 ORDER BY row_id LIMIT $2")
	assert.Contains(t, sql, "last_outcome_category")
}

func TestStore_LoadBatch_QueuesOneUpdatePerIncident(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, slog.Default())

	err := s.LoadBatch(context.Background(), []domain.Incident{
		{Colour: domain.ColourSerious, Icon: "🏠", Ref: domain.RecordRef{Source: Source, Row: 1}},
		{Colour: domain.ColourNeutral, Icon: "💊", Ref: domain.RecordRef{Source: Source, Row: 2}},
		{Colour: domain.ColourNeutral, Icon: "💊", Ref: domain.RecordRef{Source: "street.csv", Row: 3}},
	})
	require.NoError(t, err)

	require.Equal(t, 2, db.batch.Len())
	assert.Equal(t, []any{"red", "🏠", int64(1)}, db.batch.QueuedQueries[0].Arguments)
	assert.Equal(t, 2, db.results.execs)
	assert.True(t, db.results.closed)
}

func TestStore_LoadBatch_NothingToUpdate(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, slog.Default())

	require.NoError(t, s.LoadBatch(context.Background(), nil))
	assert.Nil(t, db.batch)
}

func TestStore_LoadBatch_ExecError(t *testing.T) {
	db := &fakeDB{results: &fakeBatchResults{failAt: 2}}
	s := NewStore(db, slog.Default())

	err := s.LoadBatch(context.Background(), []domain.Incident{
		{Ref: domain.RecordRef{Source: Source, Row: 1}},
		{Ref: domain.RecordRef{Source: Source, Row: 2}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
	assert.True(t, db.results.closed)
}

func TestStore_Import(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db, slog.Default())

	n, err := s.Import(context.Background(), []domain.RawRecord{
		{Fields: map[string]string{domain.ColumnCrimeType: " Drugs ", domain.ColumnArea: "Ecclesall"}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), n)
	require.Len(t, db.copied, 1)
	assert.Len(t, db.cols, len(columns))
	assert.Equal(t, "Drugs", db.copied[0][6])
	assert.Equal(t, "Ecclesall", db.copied[0][8])
	assert.Equal(t, "", db.copied[0][9])
}

func TestStore_Truncate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewStore(db, slog.Default()).Truncate(context.Background()))
	assert.Equal(t, []string{"TRUNCATE incidents RESTART IDENTITY"}, db.execSQL)
}

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/crime?sslmode=disable", "pgx5://u:p@db:5432/crime?sslmode=disable"},
		{"postgresql://db/crime", "pgx5://db/crime"},
		{"pgx5://db/crime", "pgx5://db/crime"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MigrationURL(tt.in))
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
