package digest

import "fmt"

// Violation kinds.
const (
	KindSchema     = "schema"     // a required column is missing or an unknown column is present
	KindDomain     = "domain"     // a cell value is outside its column's declared domain
	KindStructural = "structural" // a row breaks the one-triple-per-row or uniqueness invariant
)

// Violation is one validation failure. Row is the 1-based data-row number
// and is zero for file-level (schema) violations.
type Violation struct {
	Kind    string `json:"kind"`
	Row     int    `json:"row,omitempty"`
	Column  string `json:"column,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Row == 0 {
		return fmt.Sprintf("%s: %s", v.Kind, v.Message)
	}
	return fmt.Sprintf("%s: row %d: %s", v.Kind, v.Row, v.Message)
}

// Violations is the complete set of failures from one validation pass.
type Violations []Violation

func schemaViolation(column, message string) Violation {
	return Violation{Kind: KindSchema, Column: column, Message: message}
}

func domainViolation(row int, column, value, message string) Violation {
	return Violation{Kind: KindDomain, Row: row, Column: column, Value: value, Message: message}
}

func structuralViolation(row int, column, message string) Violation {
	return Violation{Kind: KindStructural, Row: row, Column: column, Message: message}
}
