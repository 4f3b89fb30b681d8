package table

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// wireTable is the cache encoding of a table. Numbers travel as their CSV
// text so NaN and infinities survive.
type wireTable struct {
	Columns []string  `json:"columns"`
	Rows    []wireRow `json:"rows"`
}

type wireRow struct {
	Key   Key        `json:"key"`
	Cells []wireCell `json:"cells"`
}

type wireCell struct {
	K CellKind `json:"k"`
	V string   `json:"v,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *Table) MarshalJSON() ([]byte, error) {
	w := wireTable{Columns: t.columns, Rows: make([]wireRow, len(t.rows))}
	for i, r := range t.rows {
		cells := make([]wireCell, len(r.Cells))
		for j, c := range r.Cells {
			cells[j] = wireCell{K: c.Kind, V: c.String()}
		}
		w.Rows[i] = wireRow{Key: r.Key, Cells: cells}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Table) UnmarshalJSON(data []byte) error {
	var w wireTable
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = *New(w.Columns...)
	if len(t.columns) != len(w.Columns) {
		return fmt.Errorf("duplicate columns %v", w.Columns)
	}
	for i, r := range w.Rows {
		if len(r.Cells) != len(t.columns) {
			return fmt.Errorf("row %d: %d cells, want %d", i, len(r.Cells), len(t.columns))
		}
		cells := make([]Cell, len(r.Cells))
		for j, c := range r.Cells {
			switch c.K {
			case KindNumber:
				f, err := strconv.ParseFloat(c.V, 64)
				if err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
				cells[j] = Num(f)
			case KindText:
				cells[j] = Text(c.V)
			}
		}
		t.rows = append(t.rows, Row{Key: r.Key, Cells: cells})
	}
	return nil
}
