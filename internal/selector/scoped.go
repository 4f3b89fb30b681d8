package selector

// AnyDataset is the dataset key of a ScopedCfgIDs entry that applies to
// every dataset.
const AnyDataset = ""

// ScopedCfgIDs selects parameter set ids per registration identity and,
// optionally, per dataset: regid -> dataset -> ids.
type ScopedCfgIDs map[string]map[string][]int

// Set records ids for regid on dataset (AnyDataset for all datasets).
func (s ScopedCfgIDs) Set(regid, dataset string, ids ...int) {
	if s[regid] == nil {
		s[regid] = make(map[string][]int)
	}
	s[regid][dataset] = append([]int(nil), ids...)
}

// Lookup returns the cfgid selector for (dataset, regid), falling back to
// the regid-wide entry. A missing entry is absent.
func (s ScopedCfgIDs) Lookup(dataset, regid string) Selector[int] {
	byDataset, ok := s[regid]
	if !ok {
		return Absent[int]()
	}
	if ids, ok := byDataset[dataset]; ok {
		return Many(ids...)
	}
	if ids, ok := byDataset[AnyDataset]; ok {
		return Many(ids...)
	}
	return Absent[int]()
}
