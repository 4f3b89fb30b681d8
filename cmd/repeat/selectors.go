package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repeateval/repeat/internal/identity"
	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
	"github.com/repeateval/repeat/internal/query"
	"github.com/repeateval/repeat/internal/selector"
)

// addSelectorFlags registers the selector flags of the query commands.
func addSelectorFlags(cmd *cobra.Command, withMeasure bool) {
	f := cmd.Flags()
	f.StringP("dataset", "d", "", "evaluation dataset(s)")
	f.StringP("regid", "r", "", "registration identity(ies), toolkit[-command][-version]")
	f.String("toolkit", "", "registration toolkit(s), used when --regid is not given")
	f.String("command", "", "toolkit command(s)")
	f.String("version", "", "toolkit version(s)")
	f.String("tree", "", "YAML file mapping toolkit -> command(s) or command -> version(s)")
	f.String("cfgid", "", "parameter set id(s)")
	f.StringArray("scoped-cfgid", nil, "parameter set ids of one registration, regid[@dataset]=id,id (repeatable)")
	f.StringP("tgtid", "t", "", "target case id(s)")
	if withMeasure {
		f.StringP("measure", "m", "", "evaluation measure(s)")
	}
}

// splitSelector turns a flag value into a selector: a single value is a
// scalar, a comma-separated list a collection.
func splitSelector(v string) selector.Selector[string] {
	v = strings.TrimSpace(v)
	if v == "" {
		return selector.Absent[string]()
	}
	if !strings.Contains(v, ",") {
		return selector.One(v)
	}
	var values []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return selector.Many(values...)
}

// splitCfgIDs parses a cfgid flag value like splitSelector.
func splitCfgIDs(v string) (selector.Selector[int], error) {
	s := splitSelector(v)
	if s.IsAbsent() {
		return selector.Absent[int](), nil
	}
	ids := make([]int, 0, s.Len())
	for _, p := range s.Values() {
		id, err := identity.ParseCfgID(p)
		if err != nil {
			return selector.Selector[int]{}, apperrors.InvalidSelectorError(err.Error()).
				WithDetail("dimension", selector.CfgID.String())
		}
		ids = append(ids, id)
	}
	if s.IsScalar() {
		return selector.One(ids[0]), nil
	}
	return selector.Many(ids...), nil
}

// parseScopedCfgIDs parses regid[@dataset]=id,id entries.
func parseScopedCfgIDs(entries []string) (selector.ScopedCfgIDs, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	scoped := selector.ScopedCfgIDs{}
	for _, e := range entries {
		target, list, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(target) == "" {
			return nil, apperrors.InvalidSelectorError(fmt.Sprintf("invalid scoped cfgid %q, want regid[@dataset]=id,id", e))
		}
		regid, dataset, _ := strings.Cut(strings.TrimSpace(target), "@")
		ids, err := splitCfgIDs(list)
		if err != nil {
			return nil, err
		}
		scoped.Set(regid, dataset, ids.Values()...)
	}
	return scoped, nil
}

// querySelectors builds a query from the selector flags of cmd.
func querySelectors(cmd *cobra.Command) (query.Query, error) {
	f := cmd.Flags()
	get := func(name string) string {
		v, _ := f.GetString(name)
		return v
	}

	q := query.Query{
		Dataset: splitSelector(get("dataset")),
		RegID:   splitSelector(get("regid")),
		Toolkit: splitSelector(get("toolkit")),
		Command: splitSelector(get("command")),
		Version: splitSelector(get("version")),
		TgtID:   splitSelector(get("tgtid")),
	}
	if f.Lookup("measure") != nil {
		q.Measure = splitSelector(get("measure"))
	}

	cfgids, err := splitCfgIDs(get("cfgid"))
	if err != nil {
		return query.Query{}, err
	}
	q.CfgID = cfgids

	entries, _ := f.GetStringArray("scoped-cfgid")
	if q.ScopedCfgIDs, err = parseScopedCfgIDs(entries); err != nil {
		return query.Query{}, err
	}

	if path := get("tree"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return query.Query{}, fmt.Errorf("reading registration tree: %w", err)
		}
		tree, err := selector.ParseHierarchyYAML(data)
		if err != nil {
			return query.Query{}, apperrors.InvalidSelectorError(err.Error()).
				WithDetail("dimension", selector.RegID.String())
		}
		q.RegTree = tree
	}
	return q, nil
}

// scalarFlags reads the single-valued flags of the listing commands.
type scalarFlags struct {
	dataset string
	regid   string
	cfgid   int
	tgtid   string
	measure string
}

func addScalarFlags(cmd *cobra.Command, tgtid, measure bool) {
	f := cmd.Flags()
	f.StringP("dataset", "d", "", "evaluation dataset")
	f.StringP("regid", "r", "", "registration identity")
	f.Int("cfgid", 0, "parameter set id (0 for none)")
	if tgtid {
		f.StringP("tgtid", "t", "", "target case id")
	}
	if measure {
		f.StringP("measure", "m", "", "evaluation measure")
	}
}

func readScalarFlags(cmd *cobra.Command) scalarFlags {
	f := cmd.Flags()
	var s scalarFlags
	s.dataset, _ = f.GetString("dataset")
	s.regid, _ = f.GetString("regid")
	s.cfgid, _ = f.GetInt("cfgid")
	if f.Lookup("tgtid") != nil {
		s.tgtid, _ = f.GetString("tgtid")
	}
	if f.Lookup("measure") != nil {
		s.measure, _ = f.GetString("measure")
	}
	return s
}
