package index

import "github.com/starford/dagaz/internal/digest"

// DatasetIndex defines the interface for digest indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type DatasetIndex interface {
	UpsertDataset(d DatasetRow, records []digest.Record) error
	DeleteDataset(id string) error
	DeleteDatasetByPath(path string) error
	GetDataset(id string) (*DatasetRow, error)
	IDByPath(path string) (string, error)
	ListDatasets(limit, offset int, schemaName, sort string) ([]DatasetRow, int, error)
	StatusCounts(datasetID string) ([]StatusCount, error)
	SearchSubjects(datasetID, query string, limit int) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DatasetIndex at compile time.
var _ DatasetIndex = (*DB)(nil)
