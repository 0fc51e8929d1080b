package digest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/starford/dagaz/internal/schema"
)

// Record is one normalized observation: exactly one subject, session, and
// variable, with the availability status and every other cell kept in Values
// by column name.
type Record struct {
	Subject  string            `json:"subject"`
	Session  string            `json:"session"`
	Variable string            `json:"variable"`
	Status   string            `json:"status"`
	Values   map[string]string `json:"values,omitempty"`
}

// Dataset is a fully validated digest file. Columns preserves the source
// header order so the dataset can be serialized back to an equivalent TSV.
type Dataset struct {
	SchemaName string   `json:"schema"`
	Columns    []string `json:"columns"`
	Records    []Record `json:"records"`
}

// Validate checks a raw table against a schema and returns the normalized
// Dataset, or the complete list of violations when any check fails.
//
// Checks run in order: required columns present (and no columns the schema
// does not define), then per row: cell count, non-empty identity cells,
// value domains, and (subject, session, variable) uniqueness. When required
// columns are missing the row-level checks cannot be evaluated and only the
// schema violations are returned; otherwise every row is checked and all
// violations are collected before returning.
//
// Normalization: text values are whitespace-trimmed, enum values take the
// domain's declared spelling (matched case-insensitively), numeric values
// must parse as floats, and bool-like flags become "true"/"false". Cells of
// optional columns may be empty; identity cells may not.
func Validate(t *RawTable, s *schema.Schema) (*Dataset, Violations) {
	var violations Violations

	colIdx := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		name = strings.TrimSpace(name)
		if _, ok := s.Column(name); !ok {
			violations = append(violations, schemaViolation(name,
				fmt.Sprintf("column %q is not defined by the %s schema", name, s.Name)))
			continue
		}
		colIdx[name] = i
	}
	missing := false
	for _, name := range s.RequiredColumns() {
		if _, ok := colIdx[name]; !ok {
			violations = append(violations, schemaViolation(name,
				fmt.Sprintf("required column %q is missing", name)))
			missing = true
		}
	}
	if missing {
		return nil, violations
	}

	subjectCol := s.SubjectColumn()
	sessionCol := s.SessionColumn()
	statusCol := s.StatusColumn()
	varCols := s.VariableColumns()

	ds := &Dataset{SchemaName: s.Name}
	for _, name := range t.Header {
		ds.Columns = append(ds.Columns, strings.TrimSpace(name))
	}

	seen := make(map[string]int, len(t.Rows)) // triple key → first row index
	for _, row := range t.Rows {
		rowOK := true

		if len(row.Cells) != len(t.Header) {
			violations = append(violations, structuralViolation(row.Index, "",
				fmt.Sprintf("expected %d cells, got %d", len(t.Header), len(row.Cells))))
			continue
		}

		values := make(map[string]string, len(colIdx))
		for name, i := range colIdx {
			col, _ := s.Column(name)
			norm, v := normalizeCell(row.Index, col, row.Cells[i])
			if v != nil {
				violations = append(violations, *v)
				rowOK = false
				continue
			}
			values[name] = norm
		}

		for _, name := range identityColumns(subjectCol, sessionCol, varCols) {
			if values[name] == "" {
				violations = append(violations, structuralViolation(row.Index, name,
					fmt.Sprintf("identity cell %q is empty; each row must reference exactly one subject, session, and variable", name)))
				rowOK = false
			}
		}
		if !rowOK {
			continue
		}

		varValues := make([]string, len(varCols))
		for i, name := range varCols {
			varValues[i] = values[name]
		}
		rec := Record{
			Subject:  values[subjectCol],
			Session:  values[sessionCol],
			Variable: s.VariableKey(varValues),
			Status:   values[statusCol],
			Values:   values,
		}

		key := rec.Subject + "\x00" + rec.Session + "\x00" + rec.Variable
		if first, dup := seen[key]; dup {
			violations = append(violations, structuralViolation(row.Index, "",
				fmt.Sprintf("duplicate (subject, session, variable) triple (%s, %s, %s), first seen at row %d",
					rec.Subject, rec.Session, rec.Variable, first)))
			continue
		}
		seen[key] = row.Index

		ds.Records = append(ds.Records, rec)
	}

	if len(violations) > 0 {
		return nil, violations
	}
	return ds, nil
}

// normalizeCell coerces one cell to its column's declared domain. The
// returned Violation is nil on success.
func normalizeCell(rowIdx int, col *schema.Column, raw string) (string, *Violation) {
	val := strings.TrimSpace(raw)

	switch col.DType {
	case schema.TypeEnum:
		norm, ok := col.InDomain(val)
		if !ok {
			v := domainViolation(rowIdx, col.Name, val,
				fmt.Sprintf("value %q is not in the domain of %q (%s)", val, col.Name, strings.Join(col.Domain, ", ")))
			return "", &v
		}
		return norm, nil

	case schema.TypeNumeric:
		if val == "" {
			return "", nil
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			v := domainViolation(rowIdx, col.Name, val,
				fmt.Sprintf("value %q in column %q is not numeric", val, col.Name))
			return "", &v
		}
		return val, nil

	case schema.TypeBool:
		if val == "" {
			return "", nil
		}
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return "true", nil
		case "false", "0", "no":
			return "false", nil
		}
		v := domainViolation(rowIdx, col.Name, val,
			fmt.Sprintf("value %q in column %q is not boolean", val, col.Name))
		return "", &v

	default:
		return val, nil
	}
}

func identityColumns(subjectCol, sessionCol string, varCols []string) []string {
	out := []string{subjectCol, sessionCol}
	return append(out, varCols...)
}

// WriteTSV serializes the dataset back to a TSV with the original column
// order. Validating the output again yields the same dataset and no
// violations (all values are already normalized).
func (d *Dataset) WriteTSV(w io.Writer) error {
	if _, err := io.WriteString(w, strings.Join(d.Columns, "\t")+"\n"); err != nil {
		return err
	}
	cells := make([]string, len(d.Columns))
	for _, rec := range d.Records {
		for i, name := range d.Columns {
			cells[i] = rec.Values[name]
		}
		if _, err := io.WriteString(w, strings.Join(cells, "\t")+"\n"); err != nil {
			return err
		}
	}
	return nil
}
