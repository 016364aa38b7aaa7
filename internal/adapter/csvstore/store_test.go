package csvstore

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streetHeader = "Crime ID,Month,Reported by,Falls within,Longitude,Latitude,Location,LSOA code,LSOA name,Crime type,Last outcome category,Context,MSOA\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func classifyAll(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for {
		batch, err := s.ExtractBatch(ctx, 2)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		out := make([]domain.Incident, 0, len(batch))
		for _, raw := range batch {
			inc, err := domain.ParseIncident(raw)
			require.NoError(t, err)
			out = append(out, domain.Classify(inc))
		}
		require.NoError(t, s.LoadBatch(ctx, out))
	}
	require.NoError(t, s.Flush(ctx))
}

func TestStore_ExtractBatch_AcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "2024-03-south-yorkshire-street.csv", streetHeader+
		",2024-03,South Yorkshire Police,South Yorkshire Police,-1.51,53.35,On or near Abbey Lane,E01,Sheffield 001A,Anti-social behaviour,,,Bents Green & Millhouses\n"+
		"abc,2024-03,South Yorkshire Police,South Yorkshire Police,-1.50,53.36,On or near Park,E01,Sheffield 001A,Burglary,Under investigation,,Ecclesall\n")
	b := writeFile(t, dir, "2024-04-south-yorkshire-street.csv", streetHeader+
		"def,2024-04,South Yorkshire Police,South Yorkshire Police,,,No Location,,,Drugs,,,\n")
	writeFile(t, dir, "notes.txt", "ignored")

	s := New(dir, "*street*.csv", slog.Default())
	ctx := context.Background()

	first, err := s.ExtractBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, domain.RecordRef{Source: a, Row: 0}, first[0].Ref)
	assert.Equal(t, "Anti-social behaviour", first[0].Fields[domain.ColumnCrimeType])
	assert.Equal(t, "Bents Green & Millhouses", first[0].Fields[domain.ColumnArea])
	assert.Equal(t, "Burglary", first[1].Fields[domain.ColumnCrimeType])

	second, err := s.ExtractBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, domain.RecordRef{Source: b, Row: 0}, second[0].Ref)

	_, err = s.ExtractBatch(ctx, 2)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStore_ExtractBatch_NoFiles(t *testing.T) {
	s := New(t.TempDir(), "*street*.csv", slog.Default())

	_, err := s.ExtractBatch(context.Background(), 10)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStore_ExtractBatch_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty-street.csv", streetHeader)

	s := New(dir, "*street*.csv", slog.Default())
	_, err := s.ExtractBatch(context.Background(), 10)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStore_ExtractBatch_StripsBOM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bom-street.csv", "\ufeffCrime ID,Crime type,MSOA\nx1,Robbery,Ecclesall\n")

	s := New(dir, "*street*.csv", slog.Default())
	batch, err := s.ExtractBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "x1", batch[0].Fields[domain.ColumnCrimeID])
}

func TestStore_Flush_AppendsDerivedColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "street.csv", "Crime ID,Crime type,MSOA\n"+
		"1,Robbery,Ecclesall\n"+
		"2,Theft from the person,Ecclesall\n"+
		"3,Jaywalking,Ecclesall\n")

	classifyAll(t, New(dir, "*.csv", slog.Default()))

	rows := readRows(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Crime ID", "Crime type", "MSOA", "COLOUR", "ICON"}, rows[0])
	assert.Equal(t, []string{"1", "Robbery", "Ecclesall", "darkred", "👊"}, rows[1])
	assert.Equal(t, []string{"2", "Theft from the person", "Ecclesall", "dodgerblue", "😲"}, rows[2])
	assert.Equal(t, []string{"3", "Jaywalking", "Ecclesall", "dodgerblue", string(domain.IconUnknown)}, rows[3])
}

func TestStore_Flush_RerunDoesNotDuplicateColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "street.csv", "Crime ID,Crime type,MSOA\n"+
		"1,Burglary,Ecclesall\n"+
		"2,Drugs,Ecclesall\n")

	classifyAll(t, New(dir, "*.csv", slog.Default()))
	once := readRows(t, path)

	classifyAll(t, New(dir, "*.csv", slog.Default()))
	twice := readRows(t, path)

	assert.Equal(t, once, twice)
	assert.Len(t, twice[0], 5)
}

func TestStore_Flush_ReplacesStaleDerivedColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "street.csv", "COLOUR,Crime ID,Crime type,ICON,MSOA,COLOUR\n"+
		"green,1,Burglary,x,Ecclesall,green\n")

	classifyAll(t, New(dir, "*.csv", slog.Default()))

	rows := readRows(t, path)
	assert.Equal(t, []string{"Crime ID", "Crime type", "MSOA", "COLOUR", "ICON"}, rows[0])
	assert.Equal(t, []string{"1", "Burglary", "Ecclesall", "red", "🏠"}, rows[1])
}

func TestStore_Flush_ShortRowsArePadded(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "street.csv", "Crime ID,Crime type,MSOA\n"+
		"1,Drugs\n")

	classifyAll(t, New(dir, "*.csv", slog.Default()))

	rows := readRows(t, path)
	assert.Equal(t, []string{"1", "Drugs", "", "dodgerblue", "💊"}, rows[1])
}

func TestStore_Files(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b-street.csv", streetHeader)
	a := writeFile(t, dir, "a-street.csv", streetHeader)

	files, err := New(dir, "*street*.csv", slog.Default()).Files()
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}

func TestStore_ExtractBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "street.csv", "Crime ID\n1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(dir, "*.csv", slog.Default()).ExtractBatch(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
