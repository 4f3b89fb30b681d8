package table

import (
	"math"
	"strconv"
)

// CellKind is the type of a cell.
type CellKind uint8

const (
	KindNull CellKind = iota
	KindNumber
	KindText
)

// Cell is one value of a non-identity column.
type Cell struct {
	Kind CellKind
	Num  float64
	Str  string
}

// Num returns a numeric cell.
func Num(f float64) Cell { return Cell{Kind: KindNumber, Num: f} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{Kind: KindText, Str: s} }

// Null returns an empty cell.
func Null() Cell { return Cell{} }

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool { return c.Kind == KindNull }

// Float returns the numeric value. NaN is a valid numeric value.
func (c Cell) Float() (float64, bool) {
	if c.Kind != KindNumber {
		return math.NaN(), false
	}
	return c.Num, true
}

// String renders the cell as written to CSV.
func (c Cell) String() string {
	switch c.Kind {
	case KindNumber:
		return formatFloat(c.Num)
	case KindText:
		return c.Str
	default:
		return ""
	}
}

// Equal compares cells by kind and value; NaN equals NaN.
func (c Cell) Equal(o Cell) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case KindNumber:
		return c.Num == o.Num || (math.IsNaN(c.Num) && math.IsNaN(o.Num))
	case KindText:
		return c.Str == o.Str
	default:
		return true
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
