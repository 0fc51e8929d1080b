package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/dagaz/internal/digest"
)

// DatasetRow represents a row in the datasets table.
type DatasetRow struct {
	ID         string
	Name       string
	SchemaName string
	Path       string
	Checksum   string
	Subjects   int
	Records    int
	UploadedAt time.Time
}

// StatusCount is one (variable, status) bucket of a dataset, used by the
// dashboard's status plots.
type StatusCount struct {
	Variable string `json:"variable"`
	Status   string `json:"status"`
	Count    int    `json:"count"`
}

// UpsertDataset inserts or replaces a dataset and its observations within a
// transaction. Existing observations for the dataset are replaced wholesale.
func (db *DB) UpsertDataset(d DatasetRow, records []digest.Record) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO datasets (id, name, schema_name, path, checksum, subjects, records, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			schema_name = excluded.schema_name,
			path        = excluded.path,
			checksum    = excluded.checksum,
			subjects    = excluded.subjects,
			records     = excluded.records,
			uploaded_at = excluded.uploaded_at
	`, d.ID, d.Name, d.SchemaName, d.Path, d.Checksum, d.Subjects, d.Records, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("index: upsert dataset: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM observations WHERE dataset_id = ?`, d.ID); err != nil {
		return fmt.Errorf("index: clear observations: %w", err)
	}
	if len(records) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO observations (dataset_id, subject, session, variable, status) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare observation insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range records {
			if _, err := stmt.Exec(d.ID, r.Subject, r.Session, r.Variable, r.Status); err != nil {
				return fmt.Errorf("index: insert observation: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDataset removes a dataset and its observations.
func (db *DB) DeleteDataset(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM observations WHERE dataset_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM datasets WHERE id = ?`, id)

	return tx.Commit()
}

// DeleteDatasetByPath removes the dataset stored at the given file path.
func (db *DB) DeleteDatasetByPath(path string) error {
	id, err := db.IDByPath(path)
	if err != nil || id == "" {
		return err
	}
	return db.DeleteDataset(id)
}

// GetDataset returns one dataset row, or nil when the id is unknown.
func (db *DB) GetDataset(id string) (*DatasetRow, error) {
	var d DatasetRow
	err := db.conn.QueryRow(`
		SELECT id, name, schema_name, path, checksum, subjects, records, uploaded_at
		FROM datasets WHERE id = ?
	`, id).Scan(&d.ID, &d.Name, &d.SchemaName, &d.Path, &d.Checksum, &d.Subjects, &d.Records, &d.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get dataset: %w", err)
	}
	return &d, nil
}

// IDByPath returns the dataset id indexed under path, or empty string.
func (db *DB) IDByPath(path string) (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM datasets WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: id by path: %w", err)
	}
	return id, nil
}

// ListDatasets returns paginated dataset rows with an optional schema
// filter. sort is one of uploaded_at (default, newest first), name, subjects.
func (db *DB) ListDatasets(limit, offset int, schemaName, sort string) ([]DatasetRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	orderBy := "uploaded_at DESC"
	switch sort {
	case "name":
		orderBy = "name ASC"
	case "subjects":
		orderBy = "subjects DESC"
	}

	where := ""
	args := []any{}
	if schemaName != "" {
		where = "WHERE schema_name = ?"
		args = append(args, schemaName)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM datasets `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count datasets: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT id, name, schema_name, path, checksum, subjects, records, uploaded_at
		FROM datasets `+where+` ORDER BY `+orderBy+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetRow
	for rows.Next() {
		var d DatasetRow
		if err := rows.Scan(&d.ID, &d.Name, &d.SchemaName, &d.Path, &d.Checksum, &d.Subjects, &d.Records, &d.UploadedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// StatusCounts returns per-variable status counts for one dataset in stable
// (variable, status) order.
func (db *DB) StatusCounts(datasetID string) ([]StatusCount, error) {
	rows, err := db.conn.Query(`
		SELECT variable, status, COUNT(*)
		FROM observations
		WHERE dataset_id = ?
		GROUP BY variable, status
		ORDER BY variable, status
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("index: status counts: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Variable, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchSubjects returns distinct subject ids in a dataset matching the
// query substring, ascending, capped at limit.
func (db *DB) SearchSubjects(datasetID, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT DISTINCT subject
		FROM observations
		WHERE dataset_id = ? AND subject LIKE ?
		ORDER BY subject
		LIMIT ?
	`, datasetID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("index: search subjects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed dataset.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM datasets`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
