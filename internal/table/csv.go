package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DecodeOptions controls how a CSV file becomes a table.
type DecodeOptions struct {
	// TextColumns are never parsed as numbers.
	TextColumns []string
	// KeepIdentity keeps identity-named columns as value columns instead of
	// lifting them into the row key.
	KeepIdentity bool
}

// ReadCSV decodes a CSV stream with a header row. Identity columns found in
// the file (srcid in pairwise tables, cfgid in parameter tables) are lifted
// into the row key as text, so case ids keep their leading zeros. A value
// column whose non-empty cells all parse as numbers becomes numeric; any
// other column is text. Empty cells are null.
func ReadCSV(r io.Reader, opts DecodeOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return New(), nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	body := records[1:]

	text := make(map[string]bool, len(opts.TextColumns))
	for _, c := range opts.TextColumns {
		text[c] = true
	}

	var valueCols []int
	var keyCols []int
	for j, name := range header {
		if !opts.KeepIdentity && IsIdentityColumn(name) {
			keyCols = append(keyCols, j)
			continue
		}
		valueCols = append(valueCols, j)
	}

	numeric := make(map[int]bool, len(valueCols))
	for _, j := range valueCols {
		numeric[j] = !text[header[j]] && columnIsNumeric(body, j)
	}

	names := make([]string, len(valueCols))
	for i, j := range valueCols {
		names[i] = header[j]
	}
	t := New(names...)
	if len(t.columns) != len(valueCols) {
		return nil, fmt.Errorf("duplicate column names in header %v", header)
	}

	for line, rec := range body {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line+2, len(rec), len(header))
		}
		var key Key
		for _, j := range keyCols {
			key.Set(header[j], rec[j])
		}
		cells := make([]Cell, len(valueCols))
		for i, j := range valueCols {
			cells[i] = parseCell(rec[j], numeric[j])
		}
		t.Append(key, cells...)
	}
	return t, nil
}

func columnIsNumeric(body [][]string, j int) bool {
	seen := false
	for _, rec := range body {
		if j >= len(rec) || rec[j] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(rec[j], 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func parseCell(s string, numeric bool) Cell {
	if s == "" {
		return Null()
	}
	if numeric {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Num(f)
		}
	}
	return Text(s)
}

// WriteCSV encodes t with its present identity columns first.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	idCols := t.PresentIdentityColumns()
	header := append(append([]string{}, idCols...), t.columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for _, r := range t.rows {
		for i, c := range idCols {
			rec[i] = r.Key.Get(c)
		}
		for j, c := range r.Cells {
			rec[len(idCols)+j] = c.String()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Records returns one map per row keyed by column name, for JSON output.
// Numbers that are not finite are reported as null.
func (t *Table) Records() []map[string]any {
	idCols := t.PresentIdentityColumns()
	out := make([]map[string]any, 0, len(t.rows))
	for _, r := range t.rows {
		rec := make(map[string]any, len(idCols)+len(t.columns))
		for _, c := range idCols {
			if c == ColCfgID && r.Key.CfgID != 0 {
				rec[c] = r.Key.CfgID
				continue
			}
			rec[c] = nullable(r.Key.Get(c))
		}
		for j, c := range t.columns {
			rec[c] = cellValue(r.Cells[j])
		}
		out = append(out, rec)
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func cellValue(c Cell) any {
	switch c.Kind {
	case KindNumber:
		if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) {
			return nil
		}
		return c.Num
	case KindText:
		return c.Str
	default:
		return nil
	}
}
