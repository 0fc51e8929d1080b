package digestservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/digest"
	"github.com/starford/dagaz/internal/testutil"
)

const imagingTSV = "participant_id\tsession\tpipeline_name\tpipeline_version\tpipeline_complete\n" +
	"sub-01\tses-01\tfmriprep\t20.2.7\tSUCCESS\n" +
	"sub-01\tses-02\tfmriprep\t20.2.7\tINCOMPLETE\n" +
	"sub-02\tses-01\tfreesurfer\t7.3.2\tUNAVAILABLE\n"

func newTestService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestDataDir(t)
	return NewService(store, testutil.TestDB(t), testutil.TestRegistry(t), 0)
}

func TestUploadAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	detail, violations, err := svc.Upload(ctx, "study", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v", violations)
	}
	if detail.Name != "study" || detail.SchemaName != "imaging" {
		t.Errorf("detail = %+v", detail)
	}
	if detail.Summary.Subjects != 2 || detail.Summary.Rows != 3 {
		t.Errorf("summary = %+v", detail.Summary)
	}
	if len(detail.Summary.Sessions) != 2 || len(detail.Summary.Variables) != 2 {
		t.Errorf("summary slices = %+v", detail.Summary)
	}

	got, err := svc.Get(ctx, detail.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != detail.ID || got.Summary.Rows != 3 {
		t.Errorf("got = %+v", got)
	}
}

func TestUpload_ViolationsPersistNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	bad := "participant_id\tsession\tpipeline_name\tpipeline_version\tpipeline_complete\n" +
		"sub-01\tses-01\tfmriprep\t20.2.7\tDONE\n"
	detail, violations, err := svc.Upload(ctx, "bad", "imaging", []byte(bad))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if detail != nil {
		t.Error("detail should be nil on violations")
	}
	if len(violations) != 1 || violations[0].Kind != digest.KindDomain {
		t.Errorf("violations = %v", violations)
	}

	items, total, err := svc.List(ctx, 10, 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("rejected upload was indexed: %v", items)
	}
}

func TestUpload_ParseErrorsAsViolations(t *testing.T) {
	svc := newTestService(t)

	_, violations, err := svc.Upload(context.Background(), "empty", "imaging", []byte(""))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(violations) != 1 || violations[0].Kind != digest.KindStructural {
		t.Errorf("violations = %v", violations)
	}
}

func TestUpload_UnknownSchema(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Upload(context.Background(), "x", "mystery", []byte(imagingTSV))
	if !errors.Is(err, apperr.ErrUnknownSchema) {
		t.Errorf("err = %v, want ErrUnknownSchema", err)
	}
}

func TestUpload_ReplacesSameNameAndSchema(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.Upload(ctx, "study", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatal(err)
	}

	updated := imagingTSV + "sub-03\tses-01\tfmriprep\t20.2.7\tFAIL\n"
	second, violations, err := svc.Upload(ctx, "study", "imaging", []byte(updated))
	if err != nil || len(violations) != 0 {
		t.Fatalf("re-upload: %v %v", err, violations)
	}
	if second.ID != first.ID {
		t.Errorf("re-upload changed id: %q vs %q", second.ID, first.ID)
	}
	if second.Summary.Rows != 4 {
		t.Errorf("rows = %d, want 4", second.Summary.Rows)
	}

	_, total, _ := svc.List(ctx, 10, 0, "", "")
	if total != 1 {
		t.Errorf("datasets = %d, want 1", total)
	}
}

func TestUpload_DefaultName(t *testing.T) {
	svc := newTestService(t)

	detail, _, err := svc.Upload(context.Background(), "", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatal(err)
	}
	if detail.Name != DefaultName {
		t.Errorf("name = %q, want %q", detail.Name, DefaultName)
	}
}

func TestMatrixWithFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	detail, _, err := svc.Upload(ctx, "study", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatal(err)
	}

	m, err := svc.Matrix(ctx, detail.ID, digest.Filter{})
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if len(m.Groups) != 3 {
		t.Errorf("groups = %d, want 3", len(m.Groups))
	}

	// Only sub-01 has both sessions.
	m, err = svc.Matrix(ctx, detail.ID, digest.Filter{Sessions: []string{"ses-01", "ses-02"}})
	if err != nil {
		t.Fatal(err)
	}
	if subs := m.Subjects(); len(subs) != 1 || subs[0] != "sub-01" {
		t.Errorf("filtered subjects = %v", subs)
	}
}

func TestStatusCountsAndSubjects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	detail, _, err := svc.Upload(ctx, "study", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatal(err)
	}

	counts, err := svc.StatusCounts(ctx, detail.ID)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if len(counts) != 3 {
		t.Errorf("counts = %+v, want 3 buckets", counts)
	}

	subs, err := svc.SearchSubjects(ctx, detail.ID, "sub", 10)
	if err != nil {
		t.Fatalf("SearchSubjects: %v", err)
	}
	if len(subs) != 2 {
		t.Errorf("subjects = %v", subs)
	}
}

func TestRawRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	detail, _, err := svc.Upload(ctx, "study", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatal(err)
	}

	data, filename, err := svc.Raw(ctx, detail.ID)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if string(data) != imagingTSV {
		t.Error("raw bytes differ from upload")
	}
	if filename != "study.imaging.tsv" {
		t.Errorf("filename = %q", filename)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	detail, _, err := svc.Upload(ctx, "study", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, detail.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, detail.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, _, err := svc.Raw(ctx, detail.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Raw after delete = %v, want ErrNotFound", err)
	}
}

func TestNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get = %v", err)
	}
	if _, err := svc.Matrix(ctx, "nope", digest.Filter{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Matrix = %v", err)
	}
	if err := svc.Delete(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete = %v", err)
	}
}

func TestUpload_RowCapEnforced(t *testing.T) {
	_, store := testutil.TestDataDir(t)
	svc := NewService(store, testutil.TestDB(t), testutil.TestRegistry(t), 2)

	_, violations, err := svc.Upload(context.Background(), "big", "imaging", []byte(imagingTSV))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(violations) != 1 || violations[0].Kind != digest.KindStructural {
		t.Errorf("violations = %v, want structural row-cap violation", violations)
	}
}
