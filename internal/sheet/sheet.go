// Package sheet reads uploaded result spreadsheets into rows and writes rendered
// rows back out as xlsx.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/LeventeLantos/result-messaging/internal/results"
)

// Canonical column names that detected header variants are renamed to.
const (
	ColGuardianPhone = "Guardian Phone No"
	ColStudentPhone  = "Student Phone No"
)

var (
	ErrMissingResultColumn = errors.New("excel must have a 'Result' column")
	ErrEmptyWorkbook       = errors.New("workbook has no data")
)

type Options struct {
	// RequireResult rejects sheets without a Result column. Uploads feeding the
	// template renderer do not have one yet.
	RequireResult bool
}

type Table struct {
	Columns []string      `json:"columns"`
	Rows    []results.Row `json:"data"`
}

// Parse reads the first sheet. The first row is the header; numeric cells
// become float64, text cells stay strings and blank cells are nil.
func Parse(r io.Reader, opts Options) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	name := sheets[0]

	grid, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(grid) == 0 {
		return nil, ErrEmptyWorkbook
	}

	columns := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		columns[i] = NormalizeHeader(h)
		if columns[i] == "" {
			columns[i] = fmt.Sprintf("Column %d", i+1)
		}
	}

	columns, hasResult := canonicalize(columns)
	if opts.RequireResult && !hasResult {
		return nil, fmt.Errorf("%w. Found: %v", ErrMissingResultColumn, columns)
	}

	table := &Table{Columns: columns, Rows: make([]results.Row, 0, len(grid)-1)}
	for ri, cells := range grid[1:] {
		if blank(cells) {
			continue
		}
		row := make(results.Row, len(columns))
		for ci, col := range columns {
			if ci >= len(cells) || strings.TrimSpace(cells[ci]) == "" {
				row[col] = nil
				continue
			}
			row[col] = cellValue(f, name, ci+1, ri+2, cells[ci])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// NormalizeHeader replaces non-breaking spaces and collapses runs of whitespace.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\u00a0", " ")
	return strings.Join(strings.Fields(h), " ")
}

// canonicalize renames the result and phone columns so downstream code can rely
// on fixed names.
func canonicalize(columns []string) ([]string, bool) {
	resultIdx, guardianIdx, studentIdx := -1, -1, -1
	for i, c := range columns {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "result") {
			resultIdx = i
		}
		if strings.Contains(lc, "guardian") && strings.Contains(lc, "phone") {
			guardianIdx = i
		}
		if strings.Contains(lc, "student") && strings.Contains(lc, "phone") {
			studentIdx = i
		}
	}

	out := append([]string(nil), columns...)
	if guardianIdx >= 0 {
		out[guardianIdx] = ColGuardianPhone
	}
	if studentIdx >= 0 {
		out[studentIdx] = ColStudentPhone
	}
	if resultIdx >= 0 {
		out[resultIdx] = results.ColResult
	}
	return out, resultIdx >= 0
}

func cellValue(f *excelize.File, sheetName string, col, row int, raw string) any {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheetName, axis)
	if err != nil {
		return raw
	}
	if typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber {
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return n
		}
	}
	return raw
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ColumnsOf returns the union of row keys, sorted, with the derived Position and
// Result columns last.
func ColumnsOf(rows []results.Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	var cols []string
	for k := range seen {
		if k == results.ColPosition || k == results.ColResult {
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	for _, k := range []string{results.ColPosition, results.ColResult} {
		if _, ok := seen[k]; ok {
			cols = append(cols, k)
		}
	}
	return cols
}

// Export writes rows as a single-sheet workbook. When columns is empty the
// order comes from ColumnsOf; derived columns missing from an explicit list are
// appended.
func Export(w io.Writer, rows []results.Row, columns []string) error {
	if len(columns) == 0 {
		columns = ColumnsOf(rows)
	} else {
		columns = withDerived(columns, rows)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	name := f.GetSheetName(f.GetActiveSheetIndex())

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		vals := make([]any, len(columns))
		for j, c := range columns {
			vals[j] = r[c]
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, axis, &vals); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func withDerived(columns []string, rows []results.Row) []string {
	have := map[string]bool{}
	for _, c := range columns {
		have[c] = true
	}
	out := append([]string(nil), columns...)
	for _, k := range []string{results.ColPosition, results.ColResult} {
		if have[k] {
			continue
		}
		for _, r := range rows {
			if _, ok := r[k]; ok {
				out = append(out, k)
				break
			}
		}
	}
	return out
}
