// Package digestservice coordinates digest storage, validation, and indexing.
package digestservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/digest"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/schema"
	"github.com/starford/dagaz/internal/storage"
)

// DefaultName is used when an upload carries no dataset name, matching the
// dashboard's placeholder.
const DefaultName = "dataset"

// Summary condenses one dataset for the dashboard's summary card.
type Summary struct {
	Subjects  int      `json:"subjects"`  // unique subjects
	Records   int      `json:"records"`   // unique (subject, session) pairs
	Rows      int      `json:"rows"`      // total observations
	Sessions  []string `json:"sessions"`  // distinct sessions, ascending
	Variables []string `json:"variables"` // distinct variables, ascending
}

// DatasetDetail is the full representation of an indexed digest.
type DatasetDetail struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SchemaName string    `json:"schema"`
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	UploadedAt time.Time `json:"uploaded_at"`
	Summary    Summary   `json:"summary"`
}

// DatasetListItem is a lightweight item in a list response.
type DatasetListItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SchemaName string    `json:"schema"`
	Subjects   int       `json:"subjects"`
	Rows       int       `json:"rows"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Service coordinates storage, validation, and index operations. The schema
// registry is shared read-only; each load-validate-build cycle is otherwise
// independent, so concurrent uploads need no coordination here.
type Service struct {
	store   storage.Provider
	db      *index.DB
	reg     *schema.Registry
	maxRows int
}

// NewService creates a new digest service. maxRows caps the data rows
// accepted per upload (0 means unlimited).
func NewService(store storage.Provider, db *index.DB, reg *schema.Registry, maxRows int) *Service {
	return &Service{store: store, db: db, reg: reg, maxRows: maxRows}
}

// Registry returns the shared schema registry.
func (s *Service) Registry() *schema.Registry { return s.reg }

// Upload validates raw digest bytes against the named schema. On violations
// it returns them in full and persists nothing; on success the file is
// stored and indexed, replacing any previous digest with the same name and
// schema. The returned violations are meant to be surfaced to the user
// verbatim.
func (s *Service) Upload(_ context.Context, name, schemaName string, raw []byte) (*DatasetDetail, digest.Violations, error) {
	sch, ok := s.reg.Get(schemaName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", apperr.ErrUnknownSchema, schemaName)
	}
	if name == "" {
		name = DefaultName
	}

	table, err := digest.ParseTSV(bytes.NewReader(raw), s.maxRows)
	if err != nil {
		return nil, digest.Violations{{Kind: digest.KindStructural, Message: err.Error()}}, nil
	}
	ds, violations := digest.Validate(table, sch)
	if len(violations) > 0 {
		return nil, violations, nil
	}

	path := storage.DigestPath(name, schemaName)
	id, err := s.db.IDByPath(path)
	if err != nil {
		return nil, nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	if err := s.store.Write(path, raw); err != nil {
		return nil, nil, err
	}

	row := index.DatasetRow{
		ID:         id,
		Name:       name,
		SchemaName: schemaName,
		Path:       path,
		Checksum:   checksum.Sum(raw),
		Subjects:   countSubjects(ds.Records),
		Records:    len(ds.Records),
		UploadedAt: time.Now().UTC(),
	}
	if err := s.db.UpsertDataset(row, ds.Records); err != nil {
		return nil, nil, err
	}

	return s.detail(&row, ds), nil, nil
}

// Get returns dataset detail with a freshly computed summary.
func (s *Service) Get(_ context.Context, id string) (*DatasetDetail, error) {
	row, ds, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return s.detail(row, ds), nil
}

// Matrix derives the availability matrix for one dataset, optionally
// narrowed by a filter.
func (s *Service) Matrix(_ context.Context, id string, f digest.Filter) (*digest.AvailabilityMatrix, error) {
	_, ds, err := s.load(id)
	if err != nil {
		return nil, err
	}
	m := digest.BuildAvailability(ds)
	if f.Empty() {
		return m, nil
	}
	return f.Apply(m), nil
}

// StatusCounts returns variable × status counts for the status plots.
func (s *Service) StatusCounts(_ context.Context, id string) ([]index.StatusCount, error) {
	if _, err := s.row(id); err != nil {
		return nil, err
	}
	return s.db.StatusCounts(id)
}

// SearchSubjects finds subject ids in a dataset matching the query.
func (s *Service) SearchSubjects(_ context.Context, id, query string, limit int) ([]string, error) {
	if _, err := s.row(id); err != nil {
		return nil, err
	}
	return s.db.SearchSubjects(id, query, limit)
}

// List returns paginated datasets with an optional schema filter.
func (s *Service) List(_ context.Context, limit, offset int, schemaName, sort string) ([]DatasetListItem, int, error) {
	rows, total, err := s.db.ListDatasets(limit, offset, schemaName, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DatasetListItem, len(rows))
	for i, r := range rows {
		items[i] = DatasetListItem{
			ID:         r.ID,
			Name:       r.Name,
			SchemaName: r.SchemaName,
			Subjects:   r.Subjects,
			Rows:       r.Records,
			UploadedAt: r.UploadedAt,
		}
	}
	return items, total, nil
}

// Delete removes a dataset from storage and index.
func (s *Service) Delete(_ context.Context, id string) error {
	row, err := s.row(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(row.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.db.DeleteDataset(id)
}

// Raw returns the original TSV bytes and the stored filename.
func (s *Service) Raw(_ context.Context, id string) ([]byte, string, error) {
	row, err := s.row(id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.store.Read(row.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", apperr.ErrNotFound
		}
		return nil, "", err
	}
	return data, row.Path, nil
}

// row fetches the index row or apperr.ErrNotFound.
func (s *Service) row(id string) (*index.DatasetRow, error) {
	row, err := s.db.GetDataset(id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.ErrNotFound
	}
	return row, nil
}

// load fetches the index row and re-validates the stored file. An indexed
// digest always validates; a failure here means the file changed on disk
// under us and the watcher has not caught up yet.
func (s *Service) load(id string) (*index.DatasetRow, *digest.Dataset, error) {
	row, err := s.row(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Read(row.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, err
	}
	sch, ok := s.reg.Get(row.SchemaName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", apperr.ErrUnknownSchema, row.SchemaName)
	}
	table, err := digest.ParseTSV(bytes.NewReader(data), 0)
	if err != nil {
		return nil, nil, err
	}
	ds, violations := digest.Validate(table, sch)
	if len(violations) > 0 {
		return nil, nil, fmt.Errorf("digest %s no longer validates: %s", row.Path, violations[0])
	}
	return row, ds, nil
}

func (s *Service) detail(row *index.DatasetRow, ds *digest.Dataset) *DatasetDetail {
	m := digest.BuildAvailability(ds)
	return &DatasetDetail{
		ID:         row.ID,
		Name:       row.Name,
		SchemaName: row.SchemaName,
		Path:       row.Path,
		Checksum:   row.Checksum,
		UploadedAt: row.UploadedAt,
		Summary: Summary{
			Subjects:  len(m.Subjects()),
			Records:   len(m.Groups),
			Rows:      len(ds.Records),
			Sessions:  nonNilSlice(m.Sessions()),
			Variables: nonNilSlice(m.Variables),
		},
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func countSubjects(records []digest.Record) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.Subject] = struct{}{}
	}
	return len(seen)
}
