package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/digest"
	"github.com/starford/dagaz/internal/digestservice"
	"github.com/starford/dagaz/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	svc            *digestservice.Service
	maxUploadBytes int64
}

// NewHandler creates a new Handler. maxUploadBytes caps multipart digest
// uploads.
func NewHandler(svc *digestservice.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// ListSchemas handles GET /api/schemas.
//
//	@Summary		List registered digest schemas
//	@Tags			schemas
//	@Produce		json
//	@Success		200	{object}	SchemaListResponse
//	@Security		BearerAuth
//	@Router			/schemas [get]
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	reg := h.svc.Registry()
	resp := SchemaListResponse{}
	for _, name := range reg.Names() {
		if s, ok := reg.Get(name); ok {
			resp.Schemas = append(resp.Schemas, s)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSchema handles GET /api/schemas/{name}.
//
//	@Summary		Get one digest schema with its column definitions and status legend
//	@Tags			schemas
//	@Produce		json
//	@Param			name	path		string	true	"Schema name"
//	@Success		200		{object}	schema.Schema
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{name} [get]
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, ok := h.svc.Registry().Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown schema"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UploadDigest handles POST /api/digests (multipart/form-data, field "file").
//
//	@Summary		Upload and validate a digest file
//	@Tags			digests
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Long-format TSV digest"
//	@Param			schema	formData	string	true	"Schema name"	Enums(imaging, phenotypic)
//	@Param			name	formData	string	false	"Dataset display name"
//	@Success		201		{object}	DatasetDetail
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	ViolationsResponse
//	@Security		BearerAuth
//	@Router			/digests [post]
func (h *Handler) UploadDigest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	schemaName := r.FormValue("schema")
	if schemaName == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("schema is required"))
		return
	}
	name := r.FormValue("name")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if name == "" {
		name = strings.TrimSuffix(header.Filename, ".tsv")
	}

	detail, violations, err := h.svc.Upload(r.Context(), name, schemaName, raw)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownSchema) {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown schema: "+schemaName))
			return
		}
		slog.Error("upload digest failed", slog.String("name", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if len(violations) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ViolationsResponse{
			Error:      "digest failed validation",
			Violations: violations,
		})
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// ListDigests handles GET /api/digests.
//
//	@Summary		List indexed datasets with optional pagination and filtering
//	@Tags			digests
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			schema	query		string	false	"Filter by schema"
//	@Param			sort	query		string	false	"Sort field"	Enums(uploaded_at, name, subjects)
//	@Success		200		{object}	DatasetListResponse
//	@Security		BearerAuth
//	@Router			/digests [get]
func (h *Handler) ListDigests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	schemaName := q.Get("schema")
	sort := q.Get("sort")

	items, total, err := h.svc.List(r.Context(), limit, offset, schemaName, sort)
	if err != nil {
		slog.Error("list digests failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []DatasetListItem{}
	}
	writeJSON(w, http.StatusOK, DatasetListResponse{Datasets: items, Total: total})
}

// GetDigest handles GET /api/digests/{id}.
//
//	@Summary		Get dataset detail and summary
//	@Tags			digests
//	@Produce		json
//	@Param			id	path		string	true	"Dataset id"
//	@Success		200	{object}	DatasetDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/digests/{id} [get]
func (h *Handler) GetDigest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get digest", id, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Matrix handles GET /api/digests/{id}/matrix.
//
//	@Summary		Derive the subject-by-variable availability matrix
//	@Tags			digests
//	@Produce		json
//	@Param			id			path		string	true	"Dataset id"
//	@Param			session		query		[]string	false	"Sessions to keep"
//	@Param			operator	query		string	false	"Session operator"	Enums(AND, OR)
//	@Param			status		query		[]string	false	"Per-variable status filter, variable=STATUS"
//	@Success		200			{object}	MatrixResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/digests/{id}/matrix [get]
func (h *Handler) Matrix(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := filterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	m, err := h.svc.Matrix(r.Context(), id, f)
	if err != nil {
		h.writeServiceError(w, "matrix", id, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// StatusCounts handles GET /api/digests/{id}/status-counts.
//
//	@Summary		Per-variable status counts for the status overview plots
//	@Tags			digests
//	@Produce		json
//	@Param			id	path		string	true	"Dataset id"
//	@Success		200	{object}	StatusCountsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/digests/{id}/status-counts [get]
func (h *Handler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	counts, err := h.svc.StatusCounts(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "status counts", id, err)
		return
	}
	if counts == nil {
		counts = []index.StatusCount{}
	}
	writeJSON(w, http.StatusOK, StatusCountsResponse{Counts: counts})
}

// Subjects handles GET /api/digests/{id}/subjects.
//
//	@Summary		Search subject ids within a dataset
//	@Tags			digests
//	@Produce		json
//	@Param			id		path		string	true	"Dataset id"
//	@Param			q		query		string	false	"Subject id substring"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SubjectsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/digests/{id}/subjects [get]
func (h *Handler) Subjects(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	subjects, err := h.svc.SearchSubjects(r.Context(), id, query, limit)
	if err != nil {
		h.writeServiceError(w, "search subjects", id, err)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, SubjectsResponse{Subjects: subjects})
}

// Raw handles GET /api/digests/{id}/raw.
//
//	@Summary		Download the original digest TSV
//	@Tags			digests
//	@Produce		text/tab-separated-values
//	@Param			id	path	string	true	"Dataset id"
//	@Success		200	"Raw digest file"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/digests/{id}/raw [get]
func (h *Handler) Raw(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, filename, err := h.svc.Raw(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "raw digest", id, err)
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteDigest handles DELETE /api/digests/{id}.
//
//	@Summary		Delete a dataset
//	@Tags			digests
//	@Param			id	path	string	true	"Dataset id"
//	@Success		204	"Dataset deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/digests/{id} [delete]
func (h *Handler) DeleteDigest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete digest", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(op+" failed", slog.String("id", id), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// filterFromQuery builds a matrix filter from query parameters: repeated
// "session", "operator" (AND default, OR), and repeated "status" entries of
// the form variable=STATUS.
func filterFromQuery(r *http.Request) (digest.Filter, error) {
	q := r.URL.Query()
	f := digest.Filter{Sessions: q["session"]}

	switch op := q.Get("operator"); op {
	case "", digest.OperatorAnd:
		f.Operator = digest.OperatorAnd
	case digest.OperatorOr:
		f.Operator = digest.OperatorOr
	default:
		return digest.Filter{}, errors.New("operator must be AND or OR")
	}

	for _, raw := range q["status"] {
		variable, status, ok := strings.Cut(raw, "=")
		if !ok || variable == "" || status == "" {
			return digest.Filter{}, errors.New("status filter must have the form variable=STATUS")
		}
		if f.Statuses == nil {
			f.Statuses = make(map[string]string)
		}
		f.Statuses[variable] = status
	}
	return f, nil
}
