package evaluation

import (
	"math"
	"strconv"
	"strings"

	"github.com/repeateval/repeat/internal/reshape"
	"github.com/repeateval/repeat/internal/table"
)

// mean accumulates the arithmetic mean of one column. Nulls and NaN are
// skipped.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(c table.Cell) {
	f, ok := c.Float()
	if !ok || math.IsNaN(f) {
		return
	}
	m.sum += f
	m.n++
}

// cell returns the mean, null when no value was added.
func (m mean) cell() table.Cell {
	if m.n == 0 {
		return table.Null()
	}
	return table.Num(m.sum / float64(m.n))
}

// numericColumns returns the value columns that hold only numbers and
// nulls. The label and group columns are never averaged.
func numericColumns(t *table.Table) []string {
	var out []string
	for _, c := range t.Columns() {
		if c == reshape.LabelColumn || c == GroupColumn {
			continue
		}
		numeric := true
		for i := range t.Rows() {
			if t.Value(i, c).Kind == table.KindText {
				numeric = false
				break
			}
		}
		if numeric {
			out = append(out, c)
		}
	}
	return out
}

// labelID reads an integer label id from a numeric or text cell.
func labelID(c table.Cell) (int, bool) {
	f, ok := c.Float()
	if !ok {
		if c.Kind != table.KindText {
			return 0, false
		}
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(c.Str), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
