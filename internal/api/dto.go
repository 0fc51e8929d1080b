package api

import (
	"github.com/starford/dagaz/internal/digest"
	"github.com/starford/dagaz/internal/digestservice"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/schema"
)

// DatasetDetail is the full dataset response type (aliased from the domain layer).
type DatasetDetail = digestservice.DatasetDetail

// DatasetListItem is a lightweight item in a list response (aliased from the domain layer).
type DatasetListItem = digestservice.DatasetListItem

// DatasetListResponse wraps paginated dataset listings.
type DatasetListResponse struct {
	Datasets []DatasetListItem `json:"datasets" validate:"required"`
	Total    int               `json:"total" example:"12" validate:"required"`
}

// SchemaListResponse wraps the registered digest schemas.
type SchemaListResponse struct {
	Schemas []*schema.Schema `json:"schemas" validate:"required"`
}

// ViolationsResponse is returned when an uploaded digest fails validation.
// The violation list is complete (not just the first failure) so the user
// can fix the whole file in one pass.
type ViolationsResponse struct {
	Error      string            `json:"error" validate:"required"`
	Violations digest.Violations `json:"violations" validate:"required"`
}

// MatrixResponse is the derived availability matrix.
type MatrixResponse = digest.AvailabilityMatrix

// StatusCountsResponse wraps per-variable status counts.
type StatusCountsResponse struct {
	Counts []index.StatusCount `json:"counts" validate:"required"`
}

// SubjectsResponse wraps a subject search result.
type SubjectsResponse struct {
	Subjects []string `json:"subjects" validate:"required"`
}
