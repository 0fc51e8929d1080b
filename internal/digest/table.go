// Package digest implements parsing and validation of long-format digest
// files and derives subject-by-variable availability matrices from them.
//
// A digest file is a TSV with one row per (subject, session, variable)
// observation. Validation is a pure transform: raw table in, either a
// normalized Dataset or the complete list of violations out. Nothing is
// auto-corrected silently and a failed validation never yields a partial
// result.
package digest

// Row is one data row of a raw digest table. Index is the 1-based data-row
// number (the header line is not counted), which is what violations report.
type Row struct {
	Index int
	Cells []string
}

// RawTable is an uninterpreted digest file: a header plus data rows of
// string cells.
type RawTable struct {
	Header []string
	Rows   []Row
}
