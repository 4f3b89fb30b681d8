package table

// InnerJoin joins two tables on the value column on. Rows follow the order
// of left, and for each left row the matching right rows in their order.
// Value columns present in both tables (other than on) are renamed with
// suffixes[0] on the left and suffixes[1] on the right. Row keys come from
// left. Rows with a null join cell never match.
func InnerJoin(left, right *Table, on string, suffixes [2]string) *Table {
	lj, lok := left.index[on]
	rj, rok := right.index[on]

	var cols []string
	for _, c := range left.columns {
		if c != on && right.Has(c) {
			c += suffixes[0]
		}
		cols = append(cols, c)
	}
	var rightCols []int
	for j, c := range right.columns {
		if c == on {
			continue
		}
		if left.Has(c) {
			c += suffixes[1]
		}
		cols = append(cols, c)
		rightCols = append(rightCols, j)
	}
	out := New(cols...)
	if !lok || !rok {
		return out
	}

	matches := make(map[string][]int, len(right.rows))
	for i, r := range right.rows {
		if c := r.Cells[rj]; !c.IsNull() {
			k := joinKey(c)
			matches[k] = append(matches[k], i)
		}
	}

	for _, l := range left.rows {
		c := l.Cells[lj]
		if c.IsNull() {
			continue
		}
		for _, i := range matches[joinKey(c)] {
			cells := make([]Cell, 0, len(cols))
			cells = append(cells, l.Cells...)
			for _, j := range rightCols {
				cells = append(cells, right.rows[i].Cells[j])
			}
			out.rows = append(out.rows, Row{Key: l.Key, Cells: cells})
		}
	}
	return out
}

func joinKey(c Cell) string {
	return string(rune('0'+c.Kind)) + c.String()
}

// Melt reshapes every value column of t into rows: one output row per
// (column, input row) pair, columns outermost. The output has a text column
// varName holding the source column name and a column valueName holding its
// cell. Row keys are preserved.
func Melt(t *Table, varName, valueName string) *Table {
	out := New(varName, valueName)
	out.rows = make([]Row, 0, len(t.columns)*len(t.rows))
	for j, c := range t.columns {
		for _, r := range t.rows {
			out.rows = append(out.rows, Row{Key: r.Key, Cells: []Cell{Text(c), r.Cells[j]}})
		}
	}
	return out
}
