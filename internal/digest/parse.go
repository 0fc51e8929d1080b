package digest

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ParseTSV reads a tab-separated digest file into a RawTable. The first
// line is the header. maxRows (when > 0) caps the number of data rows as a
// guard against resource exhaustion on arbitrarily large uploads.
//
// Ragged rows are not rejected here: the validator reports them as
// structural violations with a row index, which is more useful to the user
// than a parser error.
func ParseTSV(r io.Reader, maxRows int) (*RawTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("digest: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("digest: read header: %w", err)
	}

	t := &RawTable{Header: header}
	for i := 1; ; i++ {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("digest: read row %d: %w", i, err)
		}
		if maxRows > 0 && i > maxRows {
			return nil, fmt.Errorf("digest: more than %d rows", maxRows)
		}
		t.Rows = append(t.Rows, Row{Index: i, Cells: cells})
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("digest: no data rows")
	}
	return t, nil
}
