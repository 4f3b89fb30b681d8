package reshape

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/repeateval/repeat/internal/table"
)

func read(t *testing.T, data string) *table.Table {
	t.Helper()
	tbl, err := table.ReadCSV(strings.NewReader(data), table.DecodeOptions{})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	return tbl
}

func TestDerivePctExcl(t *testing.T) {
	tbl := read(t, "n,nexcl\n90,10\n0,0\n,5\n")
	DerivePctExcl(tbl)

	if got := tbl.Value(0, "pctexcl").Num; got != 10.0 {
		t.Errorf("pctexcl(90, 10) = %v, want 10", got)
	}
	if got := tbl.Value(1, "pctexcl"); got.Kind != table.KindNumber || !math.IsNaN(got.Num) {
		t.Errorf("pctexcl(0, 0) = %+v, want NaN", got)
	}
	if got := tbl.Value(2, "pctexcl"); !got.IsNull() {
		t.Errorf("pctexcl(null, 5) = %+v, want null", got)
	}
}

func TestDerivePctExcl_KeepsExisting(t *testing.T) {
	tbl := read(t, "n,nexcl,pctexcl\n90,10,42\n")
	DerivePctExcl(tbl)
	if got := tbl.Value(0, "pctexcl").Num; got != 42 {
		t.Errorf("pctexcl = %v, want 42", got)
	}
}

func TestRenameTime(t *testing.T) {
	tbl := read(t, "srcid,cpu_time,wall_time,threads\n02,1,2,4\n")
	RenameTime(tbl)
	if diff := cmp.Diff([]string{"user", "real", "threads"}, tbl.Columns()); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_Overlap(t *testing.T) {
	for _, measure := range []string{MeasureDSC, MeasureJSC} {
		t.Run(measure, func(t *testing.T) {
			tbl := read(t, "srcid,10,11,12\n02-1,0.1,0.2,0.3\n03,0.4,0.5,0.6\n")
			tbl.SetKeys(func(k *table.Key) { k.TgtID = "01" })

			got := Apply(measure, tbl)

			if got.Len() != 6 {
				t.Fatalf("Len() = %d, want 6", got.Len())
			}
			if diff := cmp.Diff([]string{LabelColumn, measure}, got.Columns()); diff != "" {
				t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
			}
			perCase := map[string][]string{}
			for i, r := range got.Rows() {
				perCase[r.Key.SrcID] = append(perCase[r.Key.SrcID], got.Value(i, LabelColumn).String()+"="+got.Value(i, measure).String())
			}
			want := map[string][]string{
				"02": {"10=0.1", "11=0.2", "12=0.3"},
				"03": {"10=0.4", "11=0.5", "12=0.6"},
			}
			if diff := cmp.Diff(want, perCase); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_DropsSelfComparisons(t *testing.T) {
	tests := []struct {
		measure string
		data    string
		want    int
	}{
		{MeasureTime, "srcid,user\n01,1\n02,2\n", 1},
		{MeasureLogJac, "srcid,n,nexcl\n01,1,0\n02,1,0\n03,1,0\n", 2},
		{MeasureDSC, "srcid,1,2\n01-a,1,1\n02,1,1\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.measure, func(t *testing.T) {
			tbl := read(t, tt.data)
			tbl.SetKeys(func(k *table.Key) { k.TgtID = "01" })
			got := Apply(tt.measure, tbl)
			if got.Len() != tt.want {
				t.Errorf("Len() = %d, want %d", got.Len(), tt.want)
			}
			for _, r := range got.Rows() {
				if r.Key.SrcID == r.Key.TgtID {
					t.Errorf("self comparison row %+v kept", r.Key)
				}
			}
		})
	}
}

func TestDropSelfComparisons_NoSrcID(t *testing.T) {
	tbl := read(t, "roi,x\nseg=1,1\n")
	tbl.SetKeys(func(k *table.Key) { k.TgtID = "01" })
	if got := DropSelfComparisons(tbl); got.Len() != 1 {
		t.Errorf("Len() = %d, want 1", got.Len())
	}
}

func TestFileMeasure(t *testing.T) {
	if got := FileMeasure(MeasureJac); got != MeasureLogJac {
		t.Errorf("FileMeasure(jac) = %s, want logjac", got)
	}
	if got := FileMeasure(MeasureDSC); got != MeasureDSC {
		t.Errorf("FileMeasure(dsc) = %s, want dsc", got)
	}
	if !IsOverlap(MeasureJSC) || IsOverlap(MeasureVox) {
		t.Error("IsOverlap mismatch")
	}
}
