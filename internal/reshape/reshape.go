// Package reshape applies the measure-specific post-processing to loaded
// measurement tables.
package reshape

import (
	"math"
	"strings"

	"github.com/repeateval/repeat/internal/table"
)

// Measure names.
const (
	MeasureVox    = "vox"
	MeasureDSC    = "dsc"
	MeasureJSC    = "jsc"
	MeasureJac    = "jac"
	MeasureLogJac = "logjac"
	MeasureTime   = "time"
)

// LabelColumn holds the label id of long-form overlap tables.
const LabelColumn = "label"

// IsOverlap reports whether measure is a per-label segmentation overlap.
func IsOverlap(measure string) bool {
	return measure == MeasureDSC || measure == MeasureJSC
}

// FileMeasure returns the file suffix a measure is stored under.
func FileMeasure(measure string) string {
	if measure == MeasureJac {
		return MeasureLogJac
	}
	return measure
}

// legacyTimeColumns maps legacy timing column names to the canonical ones.
var legacyTimeColumns = map[string]string{
	"cpu_time":  "user",
	"wall_time": "real",
}

// RenameTime renames legacy cpu_time/wall_time columns to user/real.
func RenameTime(t *table.Table) {
	names := make(map[string]string)
	for from, to := range legacyTimeColumns {
		if t.Has(from) {
			names[from] = to
		}
	}
	if len(names) > 0 {
		t.Rename(names)
	}
}

// DerivePctExcl adds pctexcl = 100 * nexcl / (n + nexcl) when n and nexcl
// are present and pctexcl is not. A zero denominator yields NaN.
func DerivePctExcl(t *table.Table) {
	if !t.Has("n") || !t.Has("nexcl") || t.Has("pctexcl") {
		return
	}
	t.AddColumn("pctexcl", func(i int) table.Cell {
		n, nok := t.Value(i, "n").Float()
		nexcl, eok := t.Value(i, "nexcl").Float()
		if !nok || !eok {
			return table.Null()
		}
		return table.Num(pctExcl(n, nexcl))
	})
}

func pctExcl(n, nexcl float64) float64 {
	total := n + nexcl
	if total == 0 {
		return math.NaN()
	}
	return 100 * nexcl / total
}

// StripSrcID cuts every srcid at its first separator, dropping run-variant
// suffixes such as "07-2" -> "07".
func StripSrcID(t *table.Table) {
	t.SetKeys(func(k *table.Key) {
		k.SrcID, _, _ = strings.Cut(k.SrcID, "-")
	})
}

// MeltOverlap reshapes a wide per-label overlap table into one row per
// case and label, with the overlap value in a column named after measure.
func MeltOverlap(t *table.Table, measure string) *table.Table {
	StripSrcID(t)
	return table.Melt(t, LabelColumn, measure)
}

// DropSelfComparisons removes rows comparing a case with itself. Tables
// without srcid are returned unchanged.
func DropSelfComparisons(t *table.Table) *table.Table {
	if !t.HasIdentity(table.ColSrcID) || !t.HasIdentity(table.ColTgtID) {
		return t
	}
	return t.Filter(func(r table.Row) bool {
		return r.Key.TgtID != r.Key.SrcID
	})
}

// Apply runs the derive stage for measure on a table loaded from its file.
func Apply(measure string, t *table.Table) *table.Table {
	switch measure {
	case MeasureJac, MeasureLogJac:
		DerivePctExcl(t)
	case MeasureDSC, MeasureJSC:
		t = MeltOverlap(t, measure)
	case MeasureTime:
		RenameTime(t)
	}
	return DropSelfComparisons(t)
}
