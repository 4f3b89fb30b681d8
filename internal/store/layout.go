package store

import (
	"path/filepath"

	"github.com/repeateval/repeat/internal/identity"
)

// Directory names below the store root.
const (
	ResultsDir  = "var/table"
	ParamsDir   = "etc/params"
	DatasetsDir = "etc/dataset"
)

// DefaultLabelsSuffix is appended to a dataset name to form its label
// taxonomy file name.
const DefaultLabelsSuffix = "-labels"

// Layout maps evaluation coordinates onto paths below a store root.
type Layout struct {
	Root         string
	LabelsSuffix string
}

// NewLayout creates a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root, LabelsSuffix: DefaultLabelsSuffix}
}

// RegDir is the results directory of one registration on one dataset.
func (l Layout) RegDir(dataset, regid string) string {
	return filepath.Join(l.Root, ResultsDir, dataset, regid)
}

// CaseDir is the directory holding per-case tables. A cfgid of zero means
// the registration has no parameter sets.
func (l Layout) CaseDir(dataset, regid string, cfgid int) string {
	dir := l.RegDir(dataset, regid)
	if cfgid > 0 {
		dir = filepath.Join(dir, identity.FormatCfgID(cfgid))
	}
	return dir
}

// CasePath is the path of the <tgtid>-<suffix>.csv table.
func (l Layout) CasePath(dataset, regid string, cfgid int, tgtid, suffix string) string {
	return filepath.Join(l.CaseDir(dataset, regid, cfgid), tgtid+"-"+suffix+".csv")
}

// ParamCandidates lists the parameter table paths tried for names, in
// order: for each name the dataset-specific directory first, then the
// shared one.
func (l Layout) ParamCandidates(dataset string, names ...string) []string {
	base := filepath.Join(l.Root, ParamsDir)
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out,
			filepath.Join(base, dataset, name+".csv"),
			filepath.Join(base, name+".csv"),
		)
	}
	return out
}

// TaxonomyCandidates lists the label taxonomy paths tried for dataset. The
// bare <dataset>.csv name is the older convention.
func (l Layout) TaxonomyCandidates(dataset string) []string {
	base := filepath.Join(l.Root, DatasetsDir)
	suffix := l.LabelsSuffix
	if suffix == "" {
		suffix = DefaultLabelsSuffix
	}
	return []string{
		filepath.Join(base, dataset+suffix+".csv"),
		filepath.Join(base, dataset+".csv"),
	}
}
