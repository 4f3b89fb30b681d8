package query

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/repeateval/repeat/internal/cache"
	"github.com/repeateval/repeat/internal/metrics"
	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
	"github.com/repeateval/repeat/internal/pkg/logger"
	"github.com/repeateval/repeat/internal/selector"
	"github.com/repeateval/repeat/internal/store"
	"github.com/repeateval/repeat/internal/table"
)

var fixtureFiles = map[string]string{
	"var/table/oasis/affine/01-dsc.csv":    "srcid,10,11,12\n01,1,1,1\n02-1,0.5,0.6,0.7\n03,0.8,0.85,0.9\n",
	"var/table/oasis/affine/02-dsc.csv":    "srcid,10,11,12\n01,0.5,0.6,0.7\n02,1,1,1\n",
	"var/table/oasis/affine/01-time.csv":   "srcid,cpu_time,wall_time\n02,1.5,2.5\n03,1.6,2.6\n",
	"var/table/oasis/affine/01-logjac.csv": "srcid,n,nexcl\n02,90,10\n03,0,0\n",
	"var/table/oasis/affine/01-mean.csv":   "roi,jac\nall,1.05\nseg=1,1.0\nseg=2,1.1\n",
	"var/table/oasis/affine/01-sdev.csv":   "roi,jac\nall,0.1\nseg=1,0.2\nseg=2,0.3\n",
	"var/table/oasis/affine/01-size.csv":   "roi,n\nall,150\nseg=1,100\nseg=2,50\n",
	"var/table/oasis/affine/03-time.csv":   "srcid,user,real\n",

	"var/table/oasis/mirtk-ireg-2.0/0001/01-dsc.csv": "srcid,10,11,12\n02,0.7,0.7,0.7\n",
	"var/table/oasis/mirtk-ireg-2.0/0002/01-dsc.csv": "srcid,10,11,12\n02,0.9,0.9,0.9\n",

	"var/table/oasis/niftyreg-f3d/02-dsc.csv": "srcid,10\n01,0.4\n",

	"etc/params/oasis/mirtk-ireg.csv": "cfgid,be,ds\n1,0.001,2.5\n2,0.01,2.5\n3,0.1,2.5\n2,0.01,2.5\n",
}

func newFixture(t *testing.T) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range fixtureFiles {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	svc := NewService(store.NewFileStorage(root), nil, logger.Discard(), DefaultConfig())
	return svc, root
}

func render(t *testing.T, tbl *table.Table) string {
	t.Helper()
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	return buf.String()
}

func TestValidation(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"no dataset", Query{RegID: selector.One("affine"), Measure: selector.One("dsc")}, apperrors.CodeInvalidSelector},
		{"empty dataset list", Query{Dataset: selector.Many[string](), RegID: selector.One("affine"), Measure: selector.One("dsc")}, apperrors.CodeInvalidSelector},
		{"no registration", Query{Dataset: selector.One("oasis"), Measure: selector.One("dsc")}, apperrors.CodeInvalidSelector},
		{"no measure", Query{Dataset: selector.One("oasis"), RegID: selector.One("affine")}, apperrors.CodeInvalidSelector},
		{"empty measure list", Query{Dataset: selector.One("oasis"), RegID: selector.One("affine"), Measure: selector.Many[string]()}, apperrors.CodeInvalidSelector},
		{"malformed regid", Query{Dataset: selector.One("oasis"), RegID: selector.One("-ireg"), Measure: selector.One("dsc")}, apperrors.CodeMalformedIdentity},
		{"dataset path", Query{Dataset: selector.One("../x"), RegID: selector.One("affine"), Measure: selector.One("dsc")}, apperrors.CodeInvalidSelector},
		{"tgtid path", Query{Dataset: selector.One("oasis"), RegID: selector.One("affine"), TgtID: selector.Many("01", ".."), Measure: selector.One("dsc")}, apperrors.CodeInvalidSelector},
		{"version outside grammar", Query{Dataset: selector.One("oasis"), Toolkit: selector.One("mirtk"), Command: selector.One("ireg"), Version: selector.One("foo"), Measure: selector.One("dsc")}, apperrors.CodeMalformedIdentity},
		{"toolkit with separator", Query{Dataset: selector.One("oasis"), Toolkit: selector.One("mirtk-ireg"), Measure: selector.One("dsc")}, apperrors.CodeMalformedIdentity},
		{"tree version outside grammar", Query{Dataset: selector.One("oasis"), RegTree: selector.Hierarchy{{Toolkit: "mirtk", ByCommand: []selector.CommandNode{{Command: "ireg", Versions: selector.One("foo")}}}}, Measure: selector.One("dsc")}, apperrors.CodeMalformedIdentity},
		{"zero cfgid", Query{Dataset: selector.One("oasis"), RegID: selector.One("mirtk-ireg"), CfgID: selector.One(0), Measure: selector.One("dsc")}, apperrors.CodeInvalidSelector},
		{"zero scoped cfgid", Query{Dataset: selector.One("oasis"), RegID: selector.One("mirtk-ireg"), ScopedCfgIDs: selector.ScopedCfgIDs{"mirtk-ireg": {selector.AnyDataset: {2, 0}}}, Measure: selector.One("dsc")}, apperrors.CodeInvalidSelector},
		{"measure path", Query{Dataset: selector.One("oasis"), RegID: selector.One("affine"), Measure: selector.One("dsc/../x")}, apperrors.CodeInvalidSelector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReadMeasurements(ctx, tt.q)
			if got := apperrors.CodeOf(err); got != tt.want {
				t.Errorf("ReadMeasurements() code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}

	_, err := svc.ReadResults(ctx, Query{Dataset: selector.One("oasis")})
	if !apperrors.IsInvalidSelector(err) {
		t.Errorf("ReadResults() error = %v, want InvalidSelector", err)
	}
}

func TestReadMeasurements_DefaultTgtIDs(t *testing.T) {
	svc, _ := newFixture(t)

	got, err := svc.ReadMeasurements(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("affine"),
		Measure: selector.One("dsc"),
	})
	if err != nil {
		t.Fatalf("ReadMeasurements() error = %v", err)
	}

	// 01 against 02 and 03, 02 against 01, three labels each.
	if got.Len() != 9 {
		t.Fatalf("Len() = %d, want 9", got.Len())
	}
	for _, r := range got.Rows() {
		if r.Key.TgtID == r.Key.SrcID {
			t.Errorf("self comparison %+v", r.Key)
		}
		if r.Key.Dataset != "oasis" || r.Key.RegID != "affine" || r.Key.Toolkit != "affine" {
			t.Errorf("identity = %+v", r.Key)
		}
		if r.Key.SrcID == "02-1" {
			t.Error("srcid suffix not stripped")
		}
	}
	if diff := cmp.Diff([]string{"label", "dsc"}, got.Columns()); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectionIsConcatenationOfScalars(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	base := Query{Dataset: selector.One("oasis"), Measure: selector.One("dsc")}

	tests := []struct {
		name  string
		many  func(Query) Query
		one   []func(Query) Query
		nrows int
	}{
		{
			name: "tgtid",
			many: func(q Query) Query {
				q.RegID = selector.One("affine")
				q.TgtID = selector.Many("02", "01")
				return q
			},
			one: []func(Query) Query{
				func(q Query) Query { q.RegID = selector.One("affine"); q.TgtID = selector.One("02"); return q },
				func(q Query) Query { q.RegID = selector.One("affine"); q.TgtID = selector.One("01"); return q },
			},
			nrows: 9,
		},
		{
			name: "regid",
			many: func(q Query) Query {
				q.RegID = selector.Many("niftyreg-f3d", "affine")
				return q
			},
			one: []func(Query) Query{
				func(q Query) Query { q.RegID = selector.One("niftyreg-f3d"); return q },
				func(q Query) Query { q.RegID = selector.One("affine"); return q },
			},
			nrows: 10,
		},
		{
			name: "cfgid",
			many: func(q Query) Query {
				q.RegID = selector.One("mirtk-ireg-2.0")
				q.CfgID = selector.Many(2, 1)
				return q
			},
			one: []func(Query) Query{
				func(q Query) Query { q.RegID = selector.One("mirtk-ireg-2.0"); q.CfgID = selector.One(2); return q },
				func(q Query) Query { q.RegID = selector.One("mirtk-ireg-2.0"); q.CfgID = selector.One(1); return q },
			},
			nrows: 6,
		},
		{
			name: "measure",
			many: func(q Query) Query {
				q.RegID = selector.One("affine")
				q.TgtID = selector.One("01")
				q.Measure = selector.Many("time", "dsc")
				return q
			},
			one: []func(Query) Query{
				func(q Query) Query { q.RegID = selector.One("affine"); q.TgtID = selector.One("01"); q.Measure = selector.One("time"); return q },
				func(q Query) Query { q.RegID = selector.One("affine"); q.TgtID = selector.One("01"); q.Measure = selector.One("dsc"); return q },
			},
			nrows: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ReadMeasurements(ctx, tt.many(base))
			if err != nil {
				t.Fatalf("ReadMeasurements(many) error = %v", err)
			}

			var parts []*table.Table
			for _, one := range tt.one {
				p, err := svc.ReadMeasurements(ctx, one(base))
				if err != nil {
					t.Fatalf("ReadMeasurements(one) error = %v", err)
				}
				parts = append(parts, p)
			}
			want := table.Concat(parts...)

			if got.Len() != tt.nrows {
				t.Errorf("Len() = %d, want %d", got.Len(), tt.nrows)
			}
			if diff := cmp.Diff(render(t, want), render(t, got)); diff != "" {
				t.Errorf("collection result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadMeasurements_MissingFiles(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	scalar := Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("affine"),
		TgtID:   selector.One("99"),
		Measure: selector.One("dsc"),
	}
	if _, err := svc.ReadMeasurements(ctx, scalar); !apperrors.IsMissingMeasurementFile(err) {
		t.Errorf("scalar lookup error = %v, want MissingMeasurementFile", err)
	}

	broad := scalar
	broad.TgtID = selector.Many("99", "02")
	got, err := svc.ReadMeasurements(ctx, broad)
	if err != nil {
		t.Fatalf("broad lookup error = %v", err)
	}
	if got.Len() != 3 {
		t.Errorf("Len() = %d, want 3", got.Len())
	}

	// A dataset without results contributes nothing.
	multi := Query{
		Dataset: selector.Many("adni", "oasis"),
		RegID:   selector.One("niftyreg-f3d"),
		Measure: selector.One("dsc"),
	}
	got, err = svc.ReadMeasurements(ctx, multi)
	if err != nil {
		t.Fatalf("multi-dataset lookup error = %v", err)
	}
	if got.Len() != 1 || got.Rows()[0].Key.Dataset != "oasis" {
		t.Errorf("rows = %d, want the single oasis row", got.Len())
	}
}

func TestReadMeasurements_ToolkitParts(t *testing.T) {
	svc, _ := newFixture(t)

	got, err := svc.ReadMeasurements(context.Background(), Query{
		Dataset: selector.One("oasis"),
		Toolkit: selector.One("mirtk"),
		Command: selector.One("ireg"),
		Version: selector.One("2.0"),
		CfgID:   selector.One(1),
		Measure: selector.One("dsc"),
	})
	if err != nil {
		t.Fatalf("ReadMeasurements() error = %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", got.Len())
	}
	k := got.Rows()[0].Key
	want := table.Key{Dataset: "oasis", RegID: "mirtk-ireg-2.0", Toolkit: "mirtk", Command: "ireg", Version: "2.0", CfgID: 1, TgtID: "01", SrcID: "02"}
	if k != want {
		t.Errorf("Key = %+v, want %+v", k, want)
	}
}

func TestReadMeasurements_RegIDWinsOverParts(t *testing.T) {
	svc, _ := newFixture(t)

	got, err := svc.ReadMeasurements(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("affine"),
		Toolkit: selector.Many("mirtk", "niftyreg"),
		TgtID:   selector.One("02"),
		Measure: selector.One("dsc"),
	})
	if err != nil {
		t.Fatalf("ReadMeasurements() error = %v", err)
	}
	if got.Len() != 3 {
		t.Errorf("Len() = %d, want 3", got.Len())
	}
}

func TestReadMeasurements_Hierarchy(t *testing.T) {
	svc, _ := newFixture(t)

	tree, err := selector.ParseHierarchyYAML([]byte("mirtk:\n  ireg: [\"2.0\"]\nniftyreg: f3d\n"))
	if err != nil {
		t.Fatalf("ParseHierarchyYAML() error = %v", err)
	}

	got, err := svc.ReadMeasurements(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegTree: tree,
		CfgID:   selector.One(2),
		Measure: selector.One("dsc"),
	})
	if err != nil {
		t.Fatalf("ReadMeasurements() error = %v", err)
	}

	var regids []string
	for _, r := range got.Rows() {
		if len(regids) == 0 || regids[len(regids)-1] != r.Key.RegID {
			regids = append(regids, r.Key.RegID)
		}
	}
	// niftyreg-f3d has no 0002 directory, so only mirtk contributes.
	if diff := cmp.Diff([]string{"mirtk-ireg-2.0"}, regids); diff != "" {
		t.Errorf("regids mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMeasurements_ScopedCfgIDs(t *testing.T) {
	svc, _ := newFixture(t)

	scoped := selector.ScopedCfgIDs{}
	scoped.Set("mirtk-ireg-2.0", "oasis", 2)

	got, err := svc.ReadMeasurements(context.Background(), Query{
		Dataset:      selector.One("oasis"),
		RegID:        selector.Many("mirtk-ireg-2.0", "affine"),
		ScopedCfgIDs: scoped,
		TgtID:        selector.One("01"),
		Measure:      selector.One("dsc"),
	})
	if err != nil {
		t.Fatalf("ReadMeasurements() error = %v", err)
	}
	counts := map[string]int{}
	for _, r := range got.Rows() {
		counts[r.Key.RegID+"/"+table.Key{CfgID: r.Key.CfgID}.Get(table.ColCfgID)]++
	}
	want := map[string]int{"mirtk-ireg-2.0/2": 3, "affine/": 6}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("rows per registration mismatch (-want +got):\n%s", diff)
	}
}

func TestReadAverageMeasures(t *testing.T) {
	svc, _ := newFixture(t)

	got, err := svc.ReadAverageMeasures(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("affine"),
	})
	if err != nil {
		t.Fatalf("ReadAverageMeasures() error = %v", err)
	}
	if diff := cmp.Diff([]string{"roi", "jac_mean", "jac_sdev", "n"}, got.Columns()); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}
	if got.Len() != 3 {
		t.Errorf("Len() = %d, want 3", got.Len())
	}
	if got.Value(1, "jac_sdev").Num != 0.2 {
		t.Errorf("jac_sdev = %v, want 0.2", got.Value(1, "jac_sdev"))
	}

	_, err = svc.ReadAverageMeasures(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("affine"),
		TgtID:   selector.One("02"),
	})
	if !apperrors.IsMissingMeasurementFile(err) {
		t.Errorf("scalar lookup error = %v, want MissingMeasurementFile", err)
	}
}

func TestReadResults_Affine(t *testing.T) {
	svc, root := newFixture(t)

	// Any attempt to read parameters would fail on this unreadable table.
	bad := filepath.Join(root, "etc", "params", "affine.csv")
	if err := os.WriteFile(bad, []byte("cfgid,\"x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ReadResults(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("affine"),
	})
	if err != nil {
		t.Fatalf("ReadResults() error = %v", err)
	}

	sizes := map[string]int{}
	for m, tbl := range got {
		sizes[m] = tbl.Len()
	}
	want := map[string]int{"vox": 3, "dsc": 9, "jac": 2, "time": 2}
	if diff := cmp.Diff(want, sizes); diff != "" {
		t.Errorf("result sizes mismatch (-want +got):\n%s", diff)
	}

	jac := got["jac"]
	if v := jac.Value(0, "pctexcl").Num; v != 10 {
		t.Errorf("pctexcl = %v, want 10", v)
	}
	if v := jac.Value(1, "pctexcl").Num; !math.IsNaN(v) {
		t.Errorf("pctexcl = %v, want NaN", v)
	}
	if diff := cmp.Diff([]string{"user", "real"}, got["time"].Columns()); diff != "" {
		t.Errorf("time columns mismatch (-want +got):\n%s", diff)
	}
	for _, r := range got["dsc"].Rows() {
		if r.Key.CfgID != 0 {
			t.Errorf("affine row has cfgid %d", r.Key.CfgID)
		}
	}
}

func TestReadResults_DerivesCfgIDs(t *testing.T) {
	svc, _ := newFixture(t)

	got, err := svc.ReadResults(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("mirtk-ireg-2.0"),
		Measure: selector.One("dsc"),
	})
	if err != nil {
		t.Fatalf("ReadResults() error = %v", err)
	}

	var cfgids []int
	for _, r := range got["dsc"].Rows() {
		if len(cfgids) == 0 || cfgids[len(cfgids)-1] != r.Key.CfgID {
			cfgids = append(cfgids, r.Key.CfgID)
		}
	}
	if diff := cmp.Diff([]int{1, 2}, cfgids); diff != "" {
		t.Errorf("cfgids mismatch (-want +got):\n%s", diff)
	}
}

func TestReadResults_ParameterSetNotFound(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.ReadResults(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("niftyreg-f3d"),
		Measure: selector.One("dsc"),
	})
	if !apperrors.IsParameterSetNotFound(err) {
		t.Errorf("ReadResults() error = %v, want ParameterSetNotFound", err)
	}

	// An explicit cfgid selector needs no parameter table.
	got, err := svc.ReadResults(context.Background(), Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("niftyreg-f3d"),
		CfgID:   selector.Many[int](),
		Measure: selector.One("dsc"),
	})
	if err != nil {
		t.Fatalf("ReadResults() error = %v", err)
	}
	if got["dsc"].Len() != 1 {
		t.Errorf("Len() = %d, want 1", got["dsc"].Len())
	}
}

func TestGetParams(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	got, err := svc.GetParams(ctx, Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("mirtk-ireg-2.0"),
	})
	if err != nil {
		t.Fatalf("GetParams() error = %v", err)
	}
	want := "dataset,regid,toolkit,command,version,cfgid,be,ds\n" +
		"oasis,mirtk-ireg-2.0,mirtk,ireg,2.0,1,0.001,2.5\n" +
		"oasis,mirtk-ireg-2.0,mirtk,ireg,2.0,2,0.01,2.5\n" +
		"oasis,mirtk-ireg-2.0,mirtk,ireg,2.0,3,0.1,2.5\n"
	if diff := cmp.Diff(want, render(t, got)); diff != "" {
		t.Errorf("GetParams() mismatch (-want +got):\n%s", diff)
	}

	filtered, err := svc.GetParams(ctx, Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("mirtk-ireg-2.0"),
		CfgID:   selector.Many(3, 1),
	})
	if err != nil {
		t.Fatalf("GetParams(cfgid) error = %v", err)
	}
	if filtered.Len() != 2 {
		t.Errorf("filtered Len() = %d, want 2", filtered.Len())
	}

	def, err := svc.GetParams(ctx, Query{
		Dataset: selector.One("oasis"),
		Toolkit: selector.One("elastix"),
	})
	if err != nil {
		t.Fatalf("GetParams(default) error = %v", err)
	}
	if def.Len() != 1 || def.Rows()[0].Key.CfgID != 1 || def.Rows()[0].Key.Toolkit != "elastix" {
		t.Errorf("default params = %s", render(t, def))
	}

	strict := NewService(svc.storage, nil, logger.Discard(), Config{StrictParams: true})
	_, err = strict.GetParams(ctx, Query{Dataset: selector.One("oasis"), Toolkit: selector.One("elastix")})
	if !apperrors.IsParameterSetNotFound(err) {
		t.Errorf("strict GetParams() error = %v, want ParameterSetNotFound", err)
	}
}

func TestListOperations(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	tgtids, err := svc.ListTgtIDs(ctx, "oasis", "affine", 0)
	if err != nil {
		t.Fatalf("ListTgtIDs() error = %v", err)
	}
	if diff := cmp.Diff([]string{"01", "02", "03"}, tgtids); diff != "" {
		t.Errorf("ListTgtIDs() mismatch (-want +got):\n%s", diff)
	}

	missing, err := svc.ListTgtIDs(ctx, "adni", "affine", 0)
	if err != nil || len(missing) != 0 {
		t.Errorf("ListTgtIDs(missing) = %v, %v, want empty", missing, err)
	}

	cfgids, err := svc.ListCfgIDs(ctx, "oasis", "mirtk-ireg-2.0")
	if err != nil {
		t.Fatalf("ListCfgIDs() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, cfgids); diff != "" {
		t.Errorf("ListCfgIDs() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadSrcIDs(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	got, err := svc.ReadSrcIDs(ctx, "dsc", "oasis", "affine", 0, "01")
	if err != nil {
		t.Fatalf("ReadSrcIDs() error = %v", err)
	}
	if diff := cmp.Diff([]string{"01", "02-1", "03"}, got); diff != "" {
		t.Errorf("ReadSrcIDs() mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.ReadSrcIDs(ctx, "time", "oasis", "affine", 0, "03"); !apperrors.IsMissingMeasurementFile(err) {
		t.Errorf("ReadSrcIDs(empty) error = %v, want MissingMeasurementFile", err)
	}
	if _, err := svc.ReadSrcIDs(ctx, "dsc", "oasis", "affine", 0, "77"); !apperrors.IsMissingMeasurementFile(err) {
		t.Errorf("ReadSrcIDs(missing) error = %v, want MissingMeasurementFile", err)
	}
}

func TestReadLabelVolumes(t *testing.T) {
	svc, _ := newFixture(t)

	got, err := svc.ReadLabelVolumes(context.Background(), "oasis", "affine", 0, "01", 0.5)
	if err != nil {
		t.Fatalf("ReadLabelVolumes() error = %v", err)
	}
	want := "dataset,regid,toolkit,command,version,tgtid,label,n,vol\n" +
		"oasis,affine,affine,,,01,1,100,50\n" +
		"oasis,affine,affine,,,01,2,50,25\n"
	if diff := cmp.Diff(want, render(t, got)); diff != "" {
		t.Errorf("ReadLabelVolumes() mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheAndMetrics(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "var", "table", "oasis", "affine", "01-dsc.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("srcid,10\n02,0.5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	loader := cache.NewLoader(cache.NewMemory(time.Minute, 0), cache.KindMemory)
	svc := NewService(store.NewFileStorage(root), loader, logger.Discard(), DefaultConfig())
	m := metrics.New("test")
	svc.SetMetrics(m)

	q := Query{
		Dataset: selector.One("oasis"),
		RegID:   selector.One("affine"),
		TgtID:   selector.Many("01", "02"),
		Measure: selector.One("dsc"),
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := svc.ReadMeasurements(ctx, q)
		if err != nil {
			t.Fatalf("ReadMeasurements() error = %v", err)
		}
		if got.Len() != 1 {
			t.Errorf("Len() = %d, want 1", got.Len())
		}
	}

	// A rewritten file is read again without a purge.
	if err := os.WriteFile(path, []byte("srcid,10\n02,0.5\n03,0.6\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got, _ := svc.ReadMeasurements(ctx, q); got.Len() != 2 {
		t.Errorf("rewritten Len() = %d, want 2", got.Len())
	}
	if err := svc.Purge(ctx); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if got, _ := svc.ReadMeasurements(ctx, q); got.Len() != 2 {
		t.Errorf("purged Len() = %d, want 2", got.Len())
	}

	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	for _, want := range []string{
		`test_fragments_loaded_total{measure="dsc"} 3`,
		`test_missing_files_total{measure="dsc"} 4`,
		`test_cache_hits_total{backend="memory"} 1`,
		`test_queries_total{op="measurements"} 4`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestGetParams_ReadsRewrittenTable(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "etc", "params", "mirtk-ireg.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("cfgid,be\n1,0.1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	loader := cache.NewLoader(cache.NewMemory(time.Minute, 0), cache.KindMemory)
	svc := NewService(store.NewFileStorage(root), loader, logger.Discard(), DefaultConfig())
	q := Query{Dataset: selector.One("oasis"), RegID: selector.One("mirtk-ireg")}
	ctx := context.Background()

	got, err := svc.GetParams(ctx, q)
	if err != nil {
		t.Fatalf("GetParams() error = %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", got.Len())
	}

	if err := os.WriteFile(path, []byte("cfgid,be\n1,0.1\n2,0.01\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = svc.GetParams(ctx, q)
	if err != nil {
		t.Fatalf("GetParams() error = %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("Len() after rewrite = %d, want 2", got.Len())
	}

	// A dataset-specific table takes over from the shared one.
	dsPath := filepath.Join(root, "etc", "params", "oasis", "mirtk-ireg.csv")
	if err := os.MkdirAll(filepath.Dir(dsPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dsPath, []byte("cfgid,be\n7,0.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = svc.GetParams(ctx, q)
	if err != nil {
		t.Fatalf("GetParams() error = %v", err)
	}
	if got.Len() != 1 || got.Rows()[0].Key.CfgID != 7 {
		t.Errorf("GetParams() = %s, want the oasis table", render(t, got))
	}
}
