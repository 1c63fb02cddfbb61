package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/marketviews/internal/contracts"
)

// Views columns, in export order
// ⭐ SSOT: the tabular schema of the source of record
var ViewColumns = []string{
	"data_referencia",
	"gestora",
	"classe_ativo",
	"sub_classe_ativo",
	"visao",
	"resumo_tese",
	"frase_justificativa",
}

// optional columns may be absent from a source header
var optionalViewColumns = map[string]bool{
	"frase_justificativa": true,
}

// ErrMissingSource is returned when a backing file does not exist
var ErrMissingSource = errors.New("tabular source not found")

// ReadViews parses a views table. Columns are matched by header name;
// the delimiter (',' or ';') is detected from the header line.
func ReadViews(r io.Reader) ([]contracts.RawRecord, error) {
	t, err := ReadViewsTable(r)
	if err != nil {
		return nil, err
	}
	return t.Records(), nil
}

// ReadViewsFile opens path and parses it; a missing file is ErrMissingSource
func ReadViewsFile(path string) ([]contracts.RawRecord, error) {
	f, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadViews(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// ViewsTable is a parsed views file that keeps the delimiter and column
// order it was read with, so rows added to it land in the same layout.
type ViewsTable struct {
	table
}

// NewViewsTable returns an empty table in the export layout
func NewViewsTable() *ViewsTable {
	return &ViewsTable{table: newTable(',', ViewColumns)}
}

// ReadViewsTable parses a views file; empty input yields NewViewsTable()
func ReadViewsTable(r io.Reader) (*ViewsTable, error) {
	t, err := readTable(r, ViewColumns, optionalViewColumns)
	if err != nil {
		return nil, err
	}
	if len(t.header) == 0 {
		return NewViewsTable(), nil
	}
	return &ViewsTable{table: *t}, nil
}

// Comma returns the field delimiter
func (t *ViewsTable) Comma() rune { return t.comma }

// Header returns the column names as written in the file
func (t *ViewsTable) Header() []string {
	out := make([]string, len(t.header))
	copy(out, t.header)
	return out
}

// Records returns every data row; Line is the physical line in the source
func (t *ViewsTable) Records() []contracts.RawRecord {
	records := make([]contracts.RawRecord, 0, len(t.rows))
	for i, row := range t.rows {
		get := cellGetter(row, t.index)
		records = append(records, contracts.RawRecord{
			ReferenceDate:      get("data_referencia"),
			Manager:            get("gestora"),
			AssetClass:         get("classe_ativo"),
			AssetSubclass:      get("sub_classe_ativo"),
			View:               get("visao"),
			ThesisSummary:      get("resumo_tese"),
			JustificationQuote: get("frase_justificativa"),
			Line:               t.lines[i],
		})
	}
	return records
}

// AppendViews adds one row per record in the table's column order.
// A view column the header lacks is added, padding the existing rows.
func (t *ViewsTable) AppendViews(records []contracts.ViewRecord) {
	for _, col := range ViewColumns {
		if _, ok := t.index[col]; !ok {
			t.addColumn(col)
		}
	}

	for _, rec := range records {
		raw := rec.ToRaw()
		row := make([]string, len(t.header))
		for _, col := range ViewColumns {
			row[t.index[col]] = viewCell(raw, col)
		}
		t.rows = append(t.rows, row)
		t.lines = append(t.lines, 0)
	}
}

// Write renders the header and every row with the table's delimiter
func (t *ViewsTable) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = t.comma

	if err := cw.Write(t.header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteViews writes a header followed by one row per record
func WriteViews(w io.Writer, records []contracts.ViewRecord) error {
	return writeViews(w, records, true)
}

// AppendRows writes rows without a header in export order
func AppendRows(w io.Writer, records []contracts.ViewRecord) error {
	return writeViews(w, records, false)
}

func writeViews(w io.Writer, records []contracts.ViewRecord, header bool) error {
	cw := csv.NewWriter(w)

	if header {
		if err := cw.Write(ViewColumns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, rec := range records {
		raw := rec.ToRaw()
		row := make([]string, len(ViewColumns))
		for j, col := range ViewColumns {
			row[j] = viewCell(raw, col)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func viewCell(raw contracts.RawRecord, col string) string {
	switch col {
	case "data_referencia":
		return raw.ReferenceDate
	case "gestora":
		return raw.Manager
	case "classe_ativo":
		return raw.AssetClass
	case "sub_classe_ativo":
		return raw.AssetSubclass
	case "visao":
		return raw.View
	case "resumo_tese":
		return raw.ThesisSummary
	case "frase_justificativa":
		return raw.JustificationQuote
	default:
		return ""
	}
}

// table is a delimited file: header as written, normalized column index,
// data rows and the physical line each row started on
type table struct {
	comma  rune
	header []string
	index  map[string]int
	rows   [][]string
	lines  []int
}

func newTable(comma rune, columns []string) table {
	t := table{comma: comma, index: make(map[string]int, len(columns))}
	for _, col := range columns {
		t.addColumn(col)
	}
	return t
}

func (t *table) addColumn(name string) {
	t.index[name] = len(t.header)
	t.header = append(t.header, name)
	for i := range t.rows {
		for len(t.rows[i]) < len(t.header) {
			t.rows[i] = append(t.rows[i], "")
		}
	}
}

// readTable reads a delimited table and maps each expected column to its index
func readTable(r io.Reader, columns []string, optional map[string]bool) (*table, error) {
	br := bufio.NewReader(r)

	comma, err := sniffDelimiter(br)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &table{comma: comma, index: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &table{comma: comma, index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		t.header = append(t.header, name)
		t.index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range columns {
		if _, ok := t.index[col]; !ok && !optional[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.rows)+1, err)
		}
		if isBlank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		for len(row) < len(t.header) {
			row = append(row, "")
		}
		t.rows = append(t.rows, row)
		t.lines = append(t.lines, line)
	}

	return t, nil
}

// sniffDelimiter peeks at the header line
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	peek, err := br.Peek(br.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return 0, fmt.Errorf("peek header: %w", err)
	}

	line := peek
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		line = peek[:i]
	}

	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';', nil
	}
	return ',', nil
}

func cellGetter(row []string, index map[string]int) func(string) string {
	return func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingSource)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
