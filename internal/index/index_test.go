package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/digest"
	"github.com/starford/dagaz/internal/schema"
	"github.com/starford/dagaz/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-index-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Load("")
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleRecords() []digest.Record {
	return []digest.Record{
		{Subject: "sub-01", Session: "ses-01", Variable: "fmriprep-20.2.7", Status: "SUCCESS"},
		{Subject: "sub-01", Session: "ses-02", Variable: "fmriprep-20.2.7", Status: "FAIL"},
		{Subject: "sub-02", Session: "ses-01", Variable: "fmriprep-20.2.7", Status: "SUCCESS"},
	}
}

func TestUpsertAndGetDataset(t *testing.T) {
	db := testDB(t)

	row := DatasetRow{
		ID: "d1", Name: "study", SchemaName: "imaging",
		Path: "study.imaging.tsv", Checksum: "abc",
		Subjects: 2, Records: 3, UploadedAt: time.Now().UTC(),
	}
	if err := db.UpsertDataset(row, sampleRecords()); err != nil {
		t.Fatalf("UpsertDataset: %v", err)
	}

	got, err := db.GetDataset("d1")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got == nil || got.Name != "study" || got.Subjects != 2 || got.Records != 3 {
		t.Errorf("got = %+v", got)
	}

	// Re-upsert replaces observations, not duplicates them.
	if err := db.UpsertDataset(row, sampleRecords()[:1]); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	counts, err := db.StatusCounts("d1")
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total != 1 {
		t.Errorf("observations after re-upsert = %d, want 1", total)
	}
}

func TestGetDataset_Unknown(t *testing.T) {
	db := testDB(t)
	got, err := db.GetDataset("nope")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestListDatasets(t *testing.T) {
	db := testDB(t)

	now := time.Now().UTC()
	for i, d := range []DatasetRow{
		{ID: "a", Name: "zeta", SchemaName: "imaging", Path: "zeta.imaging.tsv", Subjects: 5},
		{ID: "b", Name: "alpha", SchemaName: "phenotypic", Path: "alpha.phenotypic.tsv", Subjects: 9},
	} {
		d.UploadedAt = now.Add(time.Duration(i) * time.Minute)
		if err := db.UpsertDataset(d, nil); err != nil {
			t.Fatal(err)
		}
	}

	// Default sort: newest first.
	rows, total, err := db.ListDatasets(10, 0, "", "")
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if total != 2 || len(rows) != 2 || rows[0].ID != "b" {
		t.Errorf("rows = %+v, total = %d", rows, total)
	}

	// Schema filter.
	rows, total, err = db.ListDatasets(10, 0, "imaging", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || rows[0].ID != "a" {
		t.Errorf("filtered rows = %+v", rows)
	}

	// Name sort.
	rows, _, err = db.ListDatasets(10, 0, "", "name")
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Name != "alpha" {
		t.Errorf("name sort first = %q", rows[0].Name)
	}

	// Subjects sort, descending.
	rows, _, err = db.ListDatasets(10, 0, "", "subjects")
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Subjects != 9 {
		t.Errorf("subjects sort first = %d", rows[0].Subjects)
	}
}

func TestStatusCounts(t *testing.T) {
	db := testDB(t)
	row := DatasetRow{ID: "d1", Name: "s", SchemaName: "imaging", Path: "s.imaging.tsv", UploadedAt: time.Now().UTC()}
	if err := db.UpsertDataset(row, sampleRecords()); err != nil {
		t.Fatal(err)
	}

	counts, err := db.StatusCounts("d1")
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts = %+v, want 2 buckets", counts)
	}
	// Ordered by (variable, status): FAIL before SUCCESS.
	if counts[0].Status != "FAIL" || counts[0].Count != 1 {
		t.Errorf("first bucket = %+v", counts[0])
	}
	if counts[1].Status != "SUCCESS" || counts[1].Count != 2 {
		t.Errorf("second bucket = %+v", counts[1])
	}
}

func TestSearchSubjects(t *testing.T) {
	db := testDB(t)
	row := DatasetRow{ID: "d1", Name: "s", SchemaName: "imaging", Path: "s.imaging.tsv", UploadedAt: time.Now().UTC()}
	if err := db.UpsertDataset(row, sampleRecords()); err != nil {
		t.Fatal(err)
	}

	subs, err := db.SearchSubjects("d1", "sub-0", 10)
	if err != nil {
		t.Fatalf("SearchSubjects: %v", err)
	}
	if len(subs) != 2 || subs[0] != "sub-01" || subs[1] != "sub-02" {
		t.Errorf("subjects = %v", subs)
	}

	subs, err = db.SearchSubjects("d1", "02", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0] != "sub-02" {
		t.Errorf("substring match = %v", subs)
	}
}

func TestDeleteDataset(t *testing.T) {
	db := testDB(t)
	row := DatasetRow{ID: "d1", Name: "s", SchemaName: "imaging", Path: "s.imaging.tsv", UploadedAt: time.Now().UTC()}
	if err := db.UpsertDataset(row, sampleRecords()); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteDataset("d1"); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	got, _ := db.GetDataset("d1")
	if got != nil {
		t.Error("dataset still present after delete")
	}
	counts, _ := db.StatusCounts("d1")
	if len(counts) != 0 {
		t.Error("observations still present after delete")
	}
}

// Sync tests.

const syncTSV = "participant_id\tsession\tpipeline_name\tpipeline_version\tpipeline_complete\n" +
	"sub-01\tses-01\tfmriprep\t20.2.7\tSUCCESS\n"

func syncTestEnv(t *testing.T) (string, storage.Provider, *DB, *schema.Registry) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := storage.NewFS(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	return dataDir, store, testDB(t), testRegistry(t)
}

func TestSync_IndexesValidFiles(t *testing.T) {
	dataDir, store, db, reg := syncTestEnv(t)

	_ = os.WriteFile(filepath.Join(dataDir, "study.imaging.tsv"), []byte(syncTSV), 0o644)

	if err := Sync(db, store, reg, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	id, err := db.IDByPath("study.imaging.tsv")
	if err != nil || id == "" {
		t.Fatalf("file not indexed: id=%q err=%v", id, err)
	}
	row, _ := db.GetDataset(id)
	if row.Name != "study" || row.SchemaName != "imaging" || row.Subjects != 1 {
		t.Errorf("row = %+v", row)
	}
}

func TestSync_KeepsIDOnReindex(t *testing.T) {
	dataDir, store, db, reg := syncTestEnv(t)

	path := filepath.Join(dataDir, "study.imaging.tsv")
	_ = os.WriteFile(path, []byte(syncTSV), 0o644)
	_ = Sync(db, store, reg, quietLogger())
	id1, _ := db.IDByPath("study.imaging.tsv")

	updated := syncTSV + "sub-02\tses-01\tfmriprep\t20.2.7\tFAIL\n"
	_ = os.WriteFile(path, []byte(updated), 0o644)
	_ = Sync(db, store, reg, quietLogger())

	id2, _ := db.IDByPath("study.imaging.tsv")
	if id1 == "" || id1 != id2 {
		t.Errorf("id changed across re-index: %q vs %q", id1, id2)
	}
	row, _ := db.GetDataset(id2)
	if row.Records != 2 {
		t.Errorf("records after update = %d, want 2", row.Records)
	}
}

func TestSync_SkipsInvalidFiles(t *testing.T) {
	dataDir, store, db, reg := syncTestEnv(t)

	// Out-of-domain status: whole file is rejected.
	bad := "participant_id\tsession\tpipeline_name\tpipeline_version\tpipeline_complete\n" +
		"sub-01\tses-01\tfmriprep\t20.2.7\tDONE\n"
	_ = os.WriteFile(filepath.Join(dataDir, "bad.imaging.tsv"), []byte(bad), 0o644)
	// Unknown schema in the file name.
	_ = os.WriteFile(filepath.Join(dataDir, "odd.mystery.tsv"), []byte(syncTSV), 0o644)
	// No schema in the file name.
	_ = os.WriteFile(filepath.Join(dataDir, "plain.tsv"), []byte(syncTSV), 0o644)

	if err := Sync(db, store, reg, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	_, total, err := db.ListDatasets(10, 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("indexed %d datasets, want 0", total)
	}
}

func TestSync_RemovesStale(t *testing.T) {
	dataDir, store, db, reg := syncTestEnv(t)

	path := filepath.Join(dataDir, "study.imaging.tsv")
	_ = os.WriteFile(path, []byte(syncTSV), 0o644)
	_ = Sync(db, store, reg, quietLogger())

	_ = os.Remove(path)
	_ = Sync(db, store, reg, quietLogger())

	id, _ := db.IDByPath("study.imaging.tsv")
	if id != "" {
		t.Error("stale entry survived sync")
	}
}
