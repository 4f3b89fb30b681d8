// Package table provides the result tables assembled from measurement files.
//
// A Table holds one identity Key per row and an ordered list of value
// columns. Identity columns always precede value columns in the canonical
// order dataset, regid, toolkit, command, version, cfgid, tgtid, srcid, so
// tables produced by different query branches concatenate without any
// positional bookkeeping.
package table

import (
	"cmp"
	"strconv"
	"strings"
)

// Identity column names.
const (
	ColDataset = "dataset"
	ColRegID   = "regid"
	ColToolkit = "toolkit"
	ColCommand = "command"
	ColVersion = "version"
	ColCfgID   = "cfgid"
	ColTgtID   = "tgtid"
	ColSrcID   = "srcid"
)

// IdentityColumns lists the identity columns in canonical order.
var IdentityColumns = []string{ColDataset, ColRegID, ColToolkit, ColCommand, ColVersion, ColCfgID, ColTgtID, ColSrcID}

// IsIdentityColumn reports whether name is an identity column.
func IsIdentityColumn(name string) bool {
	for _, c := range IdentityColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Key holds the identity columns of one row. Empty strings and a zero
// CfgID mean the column is absent.
type Key struct {
	Dataset string `json:"dataset"`
	RegID   string `json:"regid"`
	Toolkit string `json:"toolkit"`
	Command string `json:"command,omitempty"`
	Version string `json:"version,omitempty"`
	CfgID   int    `json:"cfgid,omitempty"`
	TgtID   string `json:"tgtid,omitempty"`
	SrcID   string `json:"srcid,omitempty"`
}

// Get returns the identity column by name.
func (k Key) Get(col string) string {
	switch col {
	case ColDataset:
		return k.Dataset
	case ColRegID:
		return k.RegID
	case ColToolkit:
		return k.Toolkit
	case ColCommand:
		return k.Command
	case ColVersion:
		return k.Version
	case ColCfgID:
		if k.CfgID == 0 {
			return ""
		}
		return strconv.Itoa(k.CfgID)
	case ColTgtID:
		return k.TgtID
	case ColSrcID:
		return k.SrcID
	}
	return ""
}

// Set assigns the identity column by name. cfgid values that are not
// integers are ignored.
func (k *Key) Set(col, value string) {
	switch col {
	case ColDataset:
		k.Dataset = value
	case ColRegID:
		k.RegID = value
	case ColToolkit:
		k.Toolkit = value
	case ColCommand:
		k.Command = value
	case ColVersion:
		k.Version = value
	case ColCfgID:
		if n, err := strconv.Atoi(value); err == nil {
			k.CfgID = n
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			k.CfgID = int(f)
		}
	case ColTgtID:
		k.TgtID = value
	case ColSrcID:
		k.SrcID = value
	}
}

// Compare orders keys by dataset, regid, cfgid, tgtid and srcid.
func (k Key) Compare(o Key) int {
	return cmp.Or(
		cmp.Compare(k.Dataset, o.Dataset),
		cmp.Compare(k.RegID, o.RegID),
		cmp.Compare(k.CfgID, o.CfgID),
		cmp.Compare(k.TgtID, o.TgtID),
		cmp.Compare(k.SrcID, o.SrcID),
	)
}

// Row is one table row.
type Row struct {
	Key   Key
	Cells []Cell
}

// Table is an ordered set of rows sharing the same value columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New creates an empty table with the given value columns.
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	t.columns = append(t.columns, name)
	t.index[name] = len(t.columns) - 1
	for i := range t.rows {
		t.rows[i].Cells = append(t.rows[i].Cells, Null())
	}
	return len(t.columns) - 1
}

// Columns returns the value column names.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether a value column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows. A nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns the rows. Callers must not append to the returned slice.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	return t.rows
}

// Append adds a row. Missing trailing cells are null.
func (t *Table) Append(key Key, cells ...Cell) {
	row := Row{Key: key, Cells: make([]Cell, len(t.columns))}
	copy(row.Cells, cells)
	t.rows = append(t.rows, row)
}

// Value returns the cell of row i in column col, null when absent.
func (t *Table) Value(i int, col string) Cell {
	j, ok := t.index[col]
	if !ok {
		return Null()
	}
	return t.rows[i].Cells[j]
}

// Set assigns a cell, adding the column when needed.
func (t *Table) Set(i int, col string, c Cell) {
	j := t.addColumn(col)
	t.rows[i].Cells[j] = c
}

// SetKeys applies fn to every row key.
func (t *Table) SetKeys(fn func(*Key)) {
	for i := range t.rows {
		fn(&t.rows[i].Key)
	}
}

// AddColumn appends a column computed from each row index.
func (t *Table) AddColumn(name string, fn func(i int) Cell) {
	values := make([]Cell, len(t.rows))
	for i := range t.rows {
		values[i] = fn(i)
	}
	j := t.addColumn(name)
	for i := range t.rows {
		t.rows[i].Cells[j] = values[i]
	}
}

// DropColumn removes a value column.
func (t *Table) DropColumn(name string) {
	j, ok := t.index[name]
	if !ok {
		return
	}
	t.columns = append(t.columns[:j], t.columns[j+1:]...)
	for i := range t.rows {
		t.rows[i].Cells = append(t.rows[i].Cells[:j], t.rows[i].Cells[j+1:]...)
	}
	t.reindex()
}

// Rename renames value columns. Renaming onto an existing column is ignored.
func (t *Table) Rename(names map[string]string) {
	for from, to := range names {
		j, ok := t.index[from]
		if !ok || t.Has(to) {
			continue
		}
		t.columns[j] = to
	}
	t.reindex()
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.index[c] = i
	}
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(r Row) bool) *Table {
	out := New(t.columns...)
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, cloneRow(r))
		}
	}
	return out
}

// Distinct returns a new table without rows that repeat an earlier row in
// every identity and value column.
func (t *Table) Distinct() *Table {
	seen := make(map[string]bool, len(t.rows))
	var sb strings.Builder
	return t.Filter(func(r Row) bool {
		sb.Reset()
		for _, c := range IdentityColumns {
			sb.WriteString(r.Key.Get(c))
			sb.WriteByte(0)
		}
		for _, c := range r.Cells {
			sb.WriteByte(byte('0' + c.Kind))
			sb.WriteString(c.String())
			sb.WriteByte(0)
		}
		k := sb.String()
		if seen[k] {
			return false
		}
		seen[k] = true
		return true
	})
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return t.Filter(func(Row) bool { return true })
}

// Concat appends the rows of other. Columns are united in first-seen
// order; cells of columns a table lacks are null.
func (t *Table) Concat(other *Table) {
	if other == nil {
		return
	}
	for _, c := range other.columns {
		t.addColumn(c)
	}
	for _, r := range other.rows {
		row := Row{Key: r.Key, Cells: make([]Cell, len(t.columns))}
		for j, c := range other.columns {
			row.Cells[t.index[c]] = r.Cells[j]
		}
		t.rows = append(t.rows, row)
	}
}

// Concat concatenates tables in order. Nil tables are skipped.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		out.Concat(t)
	}
	return out
}

// HasIdentity reports whether any row carries a value for an identity column.
func (t *Table) HasIdentity(col string) bool {
	for _, r := range t.Rows() {
		if r.Key.Get(col) != "" {
			return true
		}
	}
	return false
}

// PresentIdentityColumns returns the identity columns written for t.
// toolkit, command and version accompany regid even when empty.
func (t *Table) PresentIdentityColumns() []string {
	var out []string
	hasRegID := t.HasIdentity(ColRegID)
	for _, c := range IdentityColumns {
		switch c {
		case ColToolkit, ColCommand, ColVersion:
			if hasRegID {
				out = append(out, c)
			}
		default:
			if t.HasIdentity(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func cloneRow(r Row) Row {
	cells := make([]Cell, len(r.Cells))
	copy(cells, r.Cells)
	return Row{Key: r.Key, Cells: cells}
}
