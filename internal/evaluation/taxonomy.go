package evaluation

import (
	"context"
	"strings"

	"github.com/repeateval/repeat/internal/store"
	"github.com/repeateval/repeat/internal/table"
)

// LoadTaxonomy reads the label taxonomy of dataset. The first column holds
// the label id; every "Label Group: <name>" column marks members with "+".
// A label marked in several groups belongs to the right-most one. A
// dataset without a taxonomy yields a nil Taxonomy and no error.
func (a *Aggregator) LoadTaxonomy(ctx context.Context, dataset string) (Taxonomy, error) {
	candidates := a.storage.Layout().TaxonomyCandidates(dataset)
	path, ok := store.FirstExisting(a.storage, candidates)
	if !ok {
		a.log.WithContext(ctx).WithDataset(dataset).Warn("label taxonomy missing, labels left ungrouped",
			"path", candidates[0])
		return nil, nil
	}

	t, err := a.storage.ReadTable(path, table.DecodeOptions{KeepIdentity: true})
	if err != nil {
		return nil, err
	}

	cols := t.Columns()
	tax := Taxonomy{}
	if len(cols) == 0 {
		return tax, nil
	}
	for i := range t.Rows() {
		label, ok := labelID(t.Value(i, cols[0]))
		if !ok {
			continue
		}
		for _, c := range cols[1:] {
			name, ok := strings.CutPrefix(c, GroupColumnPrefix)
			if !ok {
				continue
			}
			if strings.TrimSpace(t.Value(i, c).String()) == member {
				tax[label] = name
			}
		}
	}
	a.log.WithContext(ctx).WithDataset(dataset).Debug("loaded label taxonomy", "path", path, "labels", len(tax))
	return tax, nil
}

// taxonomies loads the taxonomy of every dataset present in t once.
func (a *Aggregator) taxonomies(ctx context.Context, t *table.Table) (map[string]Taxonomy, error) {
	out := make(map[string]Taxonomy)
	for _, r := range t.Rows() {
		if _, ok := out[r.Key.Dataset]; ok {
			continue
		}
		tax, err := a.LoadTaxonomy(ctx, r.Key.Dataset)
		if err != nil {
			return nil, err
		}
		out[r.Key.Dataset] = tax
	}
	return out, nil
}
