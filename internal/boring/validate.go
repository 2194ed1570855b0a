package boring

// PreviewRows is how many data rows Inspect trial-parses.
const PreviewRows = 20

// Validation reports a structural dry-run check of a field-log file. It is
// produced without touching the database.
type Validation struct {
	Columns            []string
	MissingRequired    []string
	MissingRecommended []string
	RowsChecked        int
	RowIssues          []RowIssue
}

// RowIssue ties a trial-parse failure to its 1-based line number, counting
// the header as line 1.
type RowIssue struct {
	Line   int
	Reason string
}

// OK reports whether an import may start. Missing recommended columns only
// mean SPT data will not be imported.
func (v *Validation) OK() bool { return len(v.MissingRequired) == 0 }

// Validate checks a header against the canonical columns and trial-parses up
// to limit preview records. Preview parsing is skipped while required
// columns are missing, since every row would fail for the same reason.
func Validate(header []string, preview [][]string, limit int) *Validation {
	v := &Validation{Columns: header}
	colIdx := mapColumns(header)

	for _, col := range RequiredColumns {
		if _, ok := colIdx[col]; !ok {
			v.MissingRequired = append(v.MissingRequired, col)
		}
	}
	for _, col := range RecommendedColumns {
		if _, ok := colIdx[col]; !ok {
			v.MissingRecommended = append(v.MissingRecommended, col)
		}
	}
	if len(v.MissingRequired) > 0 {
		return v
	}

	for i, record := range preview {
		if limit > 0 && i >= limit {
			break
		}
		v.RowsChecked++
		if _, err := ParseRow(record, colIdx); err != nil {
			v.RowIssues = append(v.RowIssues, RowIssue{Line: i + 2, Reason: err.Error()})
		}
	}
	return v
}
