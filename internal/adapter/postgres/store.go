// Package postgres stores police.uk street records in PostgreSQL. It serves as a
// record source for classification and as the sink for the derived colour and
// icon columns.
package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Source is the RecordRef.Source value for rows read from the incidents table.
const Source = "postgres:incidents"

// columns maps table columns to the record field names used by the domain.
var columns = []struct {
	db    string
	field string
}{
	{"crime_id", domain.ColumnCrimeID},
	{"month", domain.ColumnMonth},
	{"falls_within", domain.ColumnForce},
	{"longitude", domain.ColumnLongitude},
	{"latitude", domain.ColumnLatitude},
	{"location", domain.ColumnLocation},
	{"crime_type", domain.ColumnCrimeType},
	{"last_outcome_category", domain.ColumnOutcome},
	{"msoa", domain.ColumnArea},
	{"colour", domain.ColumnColour},
	{"icon", domain.ColumnIcon},
}

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPool opens a connection pool and verifies it with a ping.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Store reads incidents in primary-key order and writes derived columns back.
type Store struct {
	db     DB
	logger *slog.Logger
	lastID int64
}

// NewStore creates a Store over db.
func NewStore(db DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func selectSQL() string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.db
	}
	return "SELECT row_id, " + strings.Join(names, ", ") +
		" FROM incidents WHERE row_id > $1 ORDER BY row_id LIMIT $2"
}

// ExtractBatch returns the next batchSize rows after the last one read. It
// returns io.EOF when no rows remain.
func (s *Store) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRecord, error) {
	rows, err := s.db.Query(ctx, selectSQL(), s.lastID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	batch := make([]domain.RawRecord, 0, batchSize)
	for rows.Next() {
		var rowID int64
		values := make([]string, len(columns))
		dest := make([]any, 0, len(columns)+1)
		dest = append(dest, &rowID)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		batch = append(batch, toRawRecord(rowID, values))
		s.lastID = rowID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func toRawRecord(rowID int64, values []string) domain.RawRecord {
	fields := make(map[string]string, len(columns))
	for i, c := range columns {
		fields[c.field] = values[i]
	}
	return domain.RawRecord{
		Ref:    domain.RecordRef{Source: Source, Row: rowID},
		Fields: fields,
	}
}

// LoadBatch overwrites colour and icon for every incident read from this table
// in a single round trip.
func (s *Store) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	b := &pgx.Batch{}
	for _, inc := range incidents {
		if inc.Ref.Source != Source {
			continue
		}
		b.Queue("UPDATE incidents SET colour = $1, icon = $2 WHERE row_id = $3",
			string(inc.Colour), string(inc.Icon), inc.Ref.Row)
	}
	if b.Len() == 0 {
		return nil
	}

	br := s.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck // first error wins
			return fmt.Errorf("update derived columns: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close update batch: %w", err)
	}
	return nil
}

// Import copies raw records into the incidents table. Derived columns are
// copied as found so an unclassified import leaves them empty.
func (s *Store) Import(ctx context.Context, records []domain.RawRecord) (int64, error) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.db
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = strings.TrimSpace(rec.Fields[c.field])
		}
		rows[i] = row
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"incidents"}, names, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy incidents: %w", err)
	}
	s.logger.Info("incidents imported", "rows", n)
	return n, nil
}

// Truncate removes every incident. Used before a fresh import.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "TRUNCATE incidents RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate incidents: %w", err)
	}
	return nil
}

// Reset rewinds extraction to the first row.
func (s *Store) Reset() { s.lastID = 0 }
