package evaluation

import (
	"context"

	"github.com/repeateval/repeat/internal/query"
	"github.com/repeateval/repeat/internal/selector"
	"github.com/repeateval/repeat/internal/table"
)

// paramKey matches result rows with parameter rows.
type paramKey struct {
	Dataset string
	RegID   string
	CfgID   int
}

// SetParams joins the rows of t with their parameter set on dataset,
// regid and cfgid, adding the parameter columns t does not already have.
// Rows without a matching parameter row are dropped. When params is nil
// the parameter table of every registration in t is loaded. Output rows
// are ordered by registration, then dataset, then their order in t.
func (a *Aggregator) SetParams(ctx context.Context, t *table.Table, params *table.Table) (*table.Table, error) {
	var regids, datasets []string
	seenReg := make(map[string]bool)
	seenDataset := make(map[string]bool)
	for _, r := range t.Rows() {
		if !seenReg[r.Key.RegID] {
			seenReg[r.Key.RegID] = true
			regids = append(regids, r.Key.RegID)
		}
		if !seenDataset[r.Key.Dataset] {
			seenDataset[r.Key.Dataset] = true
			datasets = append(datasets, r.Key.Dataset)
		}
	}

	if params == nil {
		params = table.New()
		for _, regid := range regids {
			for _, dataset := range datasets {
				p, err := a.params.GetParams(ctx, query.Query{
					Dataset: selector.One(dataset),
					RegID:   selector.One(regid),
				})
				if err != nil {
					return nil, err
				}
				params.Concat(p)
			}
		}
	}

	byCfgID := t.HasIdentity(table.ColCfgID)
	keyOf := func(k table.Key) paramKey {
		pk := paramKey{Dataset: k.Dataset, RegID: k.RegID}
		if byCfgID {
			pk.CfgID = k.CfgID
		}
		return pk
	}

	var added []string
	for _, c := range params.Columns() {
		if !t.Has(c) {
			added = append(added, c)
		}
	}
	matches := make(map[paramKey][]int)
	for i, r := range params.Rows() {
		pk := keyOf(r.Key)
		matches[pk] = append(matches[pk], i)
	}

	out := table.New(append(t.Columns(), added...)...)
	for _, regid := range regids {
		for _, dataset := range datasets {
			for _, r := range t.Rows() {
				if r.Key.RegID != regid || r.Key.Dataset != dataset {
					continue
				}
				for _, p := range matches[keyOf(r.Key)] {
					cells := append([]table.Cell(nil), r.Cells...)
					for _, c := range added {
						cells = append(cells, params.Value(p, c))
					}
					out.Append(r.Key, cells...)
				}
			}
		}
	}
	return out, nil
}
