// Package evaluation aggregates assembled result tables by label group.
package evaluation

import (
	"cmp"
	"context"
	"slices"
	"sort"

	"github.com/repeateval/repeat/internal/pkg/logger"
	"github.com/repeateval/repeat/internal/query"
	"github.com/repeateval/repeat/internal/reshape"
	"github.com/repeateval/repeat/internal/store"
	"github.com/repeateval/repeat/internal/table"
)

// Aggregator computes label group averages of result tables.
type Aggregator struct {
	storage store.Storage
	params  ParamsSource
	log     *logger.Logger
}

// NewAggregator creates an aggregator reading taxonomies from storage.
// params is used by SetParams when no parameter table is given.
func NewAggregator(storage store.Storage, params ParamsSource, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Discard()
	}
	return &Aggregator{storage: storage, params: params, log: log}
}

type grouping int

const (
	// byGroup keeps one row per label group, with a null group for
	// labels outside every group.
	byGroup grouping = iota
	// inAnyGroup keeps a single row per case for the labels of any group.
	inAnyGroup
)

// groupKey identifies one output row.
type groupKey struct {
	Dataset string
	RegID   string
	CfgID   int
	TgtID   string
	SrcID   string
	Group   string
	Grouped bool
}

func (k groupKey) key() table.Key {
	return table.Key{Dataset: k.Dataset, RegID: k.RegID, CfgID: k.CfgID, TgtID: k.TgtID, SrcID: k.SrcID}
}

func (k groupKey) compare(o groupKey) int {
	if c := k.key().Compare(o.key()); c != 0 {
		return c
	}
	switch {
	case k.Grouped && o.Grouped:
		return cmp.Compare(k.Group, o.Group)
	case k.Grouped:
		return -1
	case o.Grouped:
		return 1
	}
	return 0
}

type bucket struct {
	key   groupKey
	means []mean
}

// GroupedAverage averages the numeric columns of t per case and label
// group. A dataset without a taxonomy contributes its rows under the null
// group. Rows are ordered by case, named groups before the null group.
func (a *Aggregator) GroupedAverage(ctx context.Context, t *table.Table) (*table.Table, error) {
	return a.average(ctx, t, byGroup)
}

// InGroupAverage averages the numeric columns of t per case over the
// labels that belong to any group. Labels outside every group, and every
// row of a dataset without a taxonomy, are excluded.
func (a *Aggregator) InGroupAverage(ctx context.Context, t *table.Table) (*table.Table, error) {
	return a.average(ctx, t, inAnyGroup)
}

func (a *Aggregator) average(ctx context.Context, t *table.Table, mode grouping) (*table.Table, error) {
	taxonomies, err := a.taxonomies(ctx, t)
	if err != nil {
		return nil, err
	}
	cols := numericColumns(t)

	// toolkit, command and version follow from regid.
	regInfo := make(map[string]table.Key)
	index := make(map[groupKey]*bucket)
	var buckets []*bucket

	for i, r := range t.Rows() {
		if _, ok := regInfo[r.Key.RegID]; !ok {
			regInfo[r.Key.RegID] = r.Key
		}

		var group string
		var grouped bool
		if tax := taxonomies[r.Key.Dataset]; tax != nil {
			if label, ok := labelID(t.Value(i, reshape.LabelColumn)); ok {
				group, grouped = tax[label]
			}
		}
		if mode == inAnyGroup {
			if !grouped {
				continue
			}
			group = ""
		}

		k := groupKey{
			Dataset: r.Key.Dataset,
			RegID:   r.Key.RegID,
			CfgID:   r.Key.CfgID,
			TgtID:   r.Key.TgtID,
			SrcID:   r.Key.SrcID,
			Group:   group,
			Grouped: grouped,
		}
		b, ok := index[k]
		if !ok {
			b = &bucket{key: k, means: make([]mean, len(cols))}
			index[k] = b
			buckets = append(buckets, b)
		}
		for j, c := range cols {
			b.means[j].add(t.Value(i, c))
		}
	}

	slices.SortStableFunc(buckets, func(x, y *bucket) int { return x.key.compare(y.key) })

	outCols := cols
	if mode == byGroup {
		outCols = append([]string{GroupColumn}, cols...)
	}
	out := table.New(outCols...)
	for _, b := range buckets {
		key := b.key.key()
		info := regInfo[key.RegID]
		key.Toolkit, key.Command, key.Version = info.Toolkit, info.Command, info.Version

		cells := make([]table.Cell, 0, len(outCols))
		if mode == byGroup {
			if b.key.Grouped {
				cells = append(cells, table.Text(b.key.Group))
			} else {
				cells = append(cells, table.Null())
			}
		}
		for _, m := range b.means {
			cells = append(cells, m.cell())
		}
		out.Append(key, cells...)
	}
	return out, nil
}

// GroupedAverages applies GroupedAverage to every table of results named
// in measures and to every overlap measure.
func (a *Aggregator) GroupedAverages(ctx context.Context, results query.Results, measures ...string) (query.Results, error) {
	return a.averages(ctx, results, measures, byGroup)
}

// InGroupAverages applies InGroupAverage to every table of results named
// in measures and to every overlap measure.
func (a *Aggregator) InGroupAverages(ctx context.Context, results query.Results, measures ...string) (query.Results, error) {
	return a.averages(ctx, results, measures, inAnyGroup)
}

func (a *Aggregator) averages(ctx context.Context, results query.Results, measures []string, mode grouping) (query.Results, error) {
	names := make([]string, 0, len(results))
	for m := range results {
		if slices.Contains(measures, m) || reshape.IsOverlap(m) {
			names = append(names, m)
		}
	}
	sort.Strings(names)

	out := make(query.Results, len(names))
	for _, m := range names {
		avg, err := a.average(ctx, results[m], mode)
		if err != nil {
			return nil, err
		}
		out[m] = avg
	}
	return out, nil
}
