package index

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/digest"
	"github.com/starford/dagaz/internal/schema"
	"github.com/starford/dagaz/internal/storage"
)

// Sync walks the data directory and brings the index up to date:
//   - new/changed digest files are validated and upserted
//   - files removed from disk are deleted from the index
//
// Files that fail validation (or do not follow the naming convention) are
// logged and skipped; they never partially enter the index.
func Sync(db *DB, store storage.Provider, reg *schema.Registry, logger *slog.Logger) error {
	infos, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, fi := range infos {
		disk[fi.Path] = struct{}{}

		if checksums[fi.Path] == fi.Checksum {
			continue
		}

		data, err := store.Read(fi.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, reg, fi.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", fi.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDatasetByPath(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile validates a digest file and upserts it into the index. The
// dataset keeps its id when the path was indexed before.
func indexFile(db *DB, reg *schema.Registry, path string, data []byte) error {
	name, schemaName, ok := storage.SplitDigestPath(path)
	if !ok {
		return fmt.Errorf("index: %s does not follow <name>.<schema>.tsv naming", path)
	}
	s, found := reg.Get(schemaName)
	if !found {
		return fmt.Errorf("index: unknown schema %q for %s", schemaName, path)
	}

	table, err := digest.ParseTSV(bytes.NewReader(data), 0)
	if err != nil {
		return err
	}
	ds, violations := digest.Validate(table, s)
	if len(violations) > 0 {
		return fmt.Errorf("index: %s has %d violations, first: %s", path, len(violations), violations[0])
	}

	id, err := db.IDByPath(path)
	if err != nil {
		return err
	}
	if id == "" {
		id = uuid.NewString()
	}

	return db.UpsertDataset(DatasetRow{
		ID:         id,
		Name:       name,
		SchemaName: schemaName,
		Path:       path,
		Checksum:   checksum.Sum(data),
		Subjects:   countSubjects(ds.Records),
		Records:    len(ds.Records),
		UploadedAt: time.Now().UTC(),
	}, ds.Records)
}

func countSubjects(records []digest.Record) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.Subject] = struct{}{}
	}
	return len(seen)
}
