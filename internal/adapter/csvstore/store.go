// Package csvstore reads police.uk street CSV files as a record source and writes
// the derived COLOUR and ICON columns back into the same files.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/couchcryptid/crime-map/internal/domain"
)

const utf8BOM = "\ufeff"

type derived struct {
	colour domain.Colour
	icon   domain.Icon
}

// Store is a record source over every file matching a glob pattern in a
// directory. It is also a pipeline loader: classified rows are remembered and
// Flush rewrites each file with exactly one set of derived columns.
type Store struct {
	dir     string
	pattern string
	logger  *slog.Logger

	files   []string
	listed  bool
	fileIdx int
	current *fileReader

	mu      sync.Mutex
	results map[domain.RecordRef]derived
}

// New creates a Store for files matching pattern under dir.
func New(dir, pattern string, logger *slog.Logger) *Store {
	return &Store{
		dir:     dir,
		pattern: pattern,
		logger:  logger,
		results: make(map[domain.RecordRef]derived),
	}
}

// Files lists the matched files in processing order.
func (s *Store) Files() ([]string, error) {
	if err := s.list(); err != nil {
		return nil, err
	}
	return append([]string(nil), s.files...), nil
}

func (s *Store) list() error {
	if s.listed {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, s.pattern))
	if err != nil {
		return fmt.Errorf("glob %q: %w", s.pattern, err)
	}
	sort.Strings(matches)
	s.files = matches
	s.listed = true
	s.logger.Info("record files discovered", "dir", s.dir, "pattern", s.pattern, "files", len(matches))
	return nil
}

// ExtractBatch returns up to batchSize rows, moving across files as each is
// exhausted. It returns io.EOF once every file has been read.
func (s *Store) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRecord, error) {
	if err := s.list(); err != nil {
		return nil, err
	}

	batch := make([]domain.RawRecord, 0, batchSize)
	for len(batch) < batchSize {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		if s.current == nil {
			if s.fileIdx >= len(s.files) {
				break
			}
			fr, err := openFile(s.files[s.fileIdx])
			if err != nil {
				return batch, err
			}
			s.current = fr
			s.fileIdx++
		}

		rec, err := s.current.next()
		if errors.Is(err, io.EOF) {
			s.current.close()
			s.current = nil
			continue
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, rec)
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// LoadBatch remembers the derived columns of each incident for Flush.
func (s *Store) LoadBatch(_ context.Context, incidents []domain.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range incidents {
		s.results[inc.Ref] = derived{colour: inc.Colour, icon: inc.Icon}
	}
	return nil
}

// Flush rewrites every discovered file. Existing COLOUR and ICON columns are
// dropped and a single fresh pair is appended, so repeated runs never duplicate
// them. Rows that were not classified get empty derived cells.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.list(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range s.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.rewrite(path); err != nil {
			return err
		}
		s.logger.Info("record file rewritten", "source", path)
	}
	return nil
}

func (s *Store) rewrite(path string) error {
	rows, err := readAll(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	header := normalizeHeader(rows[0])
	keep := make([]int, 0, len(header))
	for i, name := range header {
		if name != domain.ColumnColour && name != domain.ColumnIcon {
			keep = append(keep, i)
		}
	}

	out := make([][]string, 0, len(rows))
	out = append(out, append(project(header, keep), domain.ColumnColour, domain.ColumnIcon))
	for i, row := range rows[1:] {
		d := s.results[domain.RecordRef{Source: path, Row: int64(i)}]
		out = append(out, append(project(row, keep), string(d.colour), string(d.icon)))
	}

	return writeAtomic(path, out)
}

// project picks the given column indexes, padding short rows.
func project(row []string, idx []int) []string {
	out := make([]string, len(idx), len(idx)+2)
	for j, i := range idx {
		if i < len(row) {
			out[j] = row[i]
		}
	}
	return out
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// writeAtomic writes rows to a temp file beside path and renames it into place.
func writeAtomic(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// fileReader streams the rows of one CSV file as raw records.
type fileReader struct {
	path   string
	f      *os.File
	r      *csv.Reader
	header []string
	row    int64
}

func openFile(path string) (*fileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return &fileReader{path: path, f: f, r: r, header: normalizeHeader(header)}, nil
}

func (fr *fileReader) next() (domain.RawRecord, error) {
	if len(fr.header) == 0 {
		return domain.RawRecord{}, io.EOF
	}
	cells, err := fr.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.RawRecord{}, io.EOF
		}
		return domain.RawRecord{}, fmt.Errorf("read %s row %d: %w", fr.path, fr.row, err)
	}

	fields := make(map[string]string, len(fr.header))
	for i, name := range fr.header {
		if i < len(cells) {
			fields[name] = cells[i]
		}
	}
	rec := domain.RawRecord{
		Ref:    domain.RecordRef{Source: fr.path, Row: fr.row},
		Fields: fields,
	}
	fr.row++
	return rec, nil
}

func (fr *fileReader) close() {
	fr.f.Close() //nolint:errcheck // read-only handle
}
