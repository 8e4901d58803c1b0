package bulk

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/ecolehub/backend/core"
)

var (
	ErrEmptyFile         = core.NewAppError(core.CodeValidation, "errors.import.emptyFile")
	ErrUnsupportedFormat = core.NewAppError(core.CodeValidation, "errors.import.unsupportedFormat")
)

// Table is a header row followed by data rows. Row numbers are 1-based and
// count the header, so the first data row is row 2.
type Table struct {
	Header []string
	Rows   [][]string
	// Lines holds the source row number of each data row. Blank rows are
	// dropped from Rows but still counted. Nil means consecutive from row 2.
	Lines []int
}

// Record is a data row keyed by canonical column name.
type Record struct {
	Row    int
	Values map[string]string
}

func (r Record) Get(col string) string { return r.Values[col] }

// ReadFile picks the reader from the file name extension.
func ReadFile(name string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	}
	return nil, ErrUnsupportedFormat
}

// ReadCSV parses comma (or semicolon) separated values with quoted fields.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	rdr := csv.NewReader(strings.NewReader(text))
	rdr.Comma = sniffDelimiter(text)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true

	var (
		rows  [][]string
		lines []int
	)
	for {
		row, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.NewAppError(core.CodeValidation, "errors.invalidInput").Wrap(err)
		}
		// the reader skips empty lines; FieldPos still counts them
		line, _ := rdr.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return newTable(rows, lines)
}

// sniffDelimiter picks ';' when the header has more semicolons than commas,
// as spreadsheets configured for French locales export them.
func sniffDelimiter(text string) rune {
	header := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		header = text[:i]
	}
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewAppError(core.CodeValidation, "errors.import.unsupportedFormat").Wrap(err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading sheet")
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return newTable(rows, lines)
}

// newTable drops blank rows. lines holds the source row number of each row.
func newTable(rows [][]string, lines []int) (*Table, error) {
	var (
		kept      [][]string
		keptLines []int
	)
	for i, row := range rows {
		if !blank(row) {
			kept = append(kept, row)
			keptLines = append(keptLines, lines[i])
		}
	}
	if len(kept) < 2 {
		return nil, ErrEmptyFile
	}
	return &Table{Header: kept[0], Rows: kept[1:], Lines: keptLines[1:]}, nil
}

// line returns the source row number of data row r.
func (t *Table) line(r int) int {
	if r < len(t.Lines) {
		return t.Lines[r]
	}
	return r + 2
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// NormalizeHeader lowers h and strips underscores, dashes and spaces: "First_Name" -> "firstname".
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if r == '_' || r == ' ' || r == '-' || r == utf8.RuneError {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Columns maps a canonical column name to the normalized header aliases that select it.
type Columns map[string][]string

// Records maps the table to records using cols. A header matches a column when it
// equals one of its aliases, or failing that contains one. It returns the canonical
// names of the required columns that no header matched.
func (t *Table) Records(cols Columns, required ...string) ([]Record, []string) {
	index := make(map[string]int, len(cols))
	normalized := make([]string, len(t.Header))
	for i, h := range t.Header {
		normalized[i] = NormalizeHeader(h)
	}

	// exact matches first
	for col, aliases := range cols {
		for i, h := range normalized {
			if core.StringInSlice(h, aliases) {
				index[col] = i
				break
			}
		}
	}
	// then containment, the longest matching alias wins
	for i, h := range normalized {
		if h == "" || indexUsed(index, i) {
			continue
		}
		best, bestLen := "", 0
		for col, aliases := range cols {
			if _, ok := index[col]; ok {
				continue
			}
			for _, alias := range aliases {
				if strings.Contains(h, alias) && (len(alias) > bestLen || (len(alias) == bestLen && col < best)) {
					best, bestLen = col, len(alias)
				}
			}
		}
		if best != "" {
			index[best] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}

	records := make([]Record, 0, len(t.Rows))
	for r, row := range t.Rows {
		rec := Record{Row: t.line(r), Values: make(map[string]string, len(index))}
		for col, i := range index {
			if i < len(row) {
				rec.Values[col] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, rec)
	}
	return records, missing
}

func indexUsed(index map[string]int, i int) bool {
	for _, j := range index {
		if j == i {
			return true
		}
	}
	return false
}
