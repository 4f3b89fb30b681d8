package query

import (
	"fmt"
	"strings"

	"github.com/repeateval/repeat/internal/identity"
	"github.com/repeateval/repeat/internal/selector"
)

// Query selects results along every dimension. Any dimension may be
// absent, a scalar or a collection. RegTree, when set, replaces RegID with
// a toolkit -> command -> version mapping.
type Query struct {
	Dataset selector.Selector[string]
	RegID   selector.Selector[string]
	RegTree selector.Hierarchy
	Toolkit selector.Selector[string]
	Command selector.Selector[string]
	Version selector.Selector[string]
	CfgID   selector.Selector[int]
	TgtID   selector.Selector[string]
	Measure selector.Selector[string]

	// ScopedCfgIDs selects parameter sets per registration (and dataset).
	// It is consulted once the registration is scalar and CfgID is absent.
	ScopedCfgIDs selector.ScopedCfgIDs
}

// String renders the non-absent dimensions for diagnostics.
func (q Query) String() string {
	var parts []string
	add := func(name string, s fmt.Stringer, absent bool) {
		if !absent {
			parts = append(parts, name+"="+s.String())
		}
	}
	add("dataset", q.Dataset, q.Dataset.IsAbsent())
	add("regid", q.RegID, q.RegID.IsAbsent())
	if len(q.RegTree) > 0 {
		parts = append(parts, fmt.Sprintf("tree=%d", len(q.RegTree)))
	}
	add("toolkit", q.Toolkit, q.Toolkit.IsAbsent())
	add("command", q.Command, q.Command.IsAbsent())
	add("version", q.Version, q.Version.IsAbsent())
	add("cfgid", q.CfgID, q.CfgID.IsAbsent())
	add("tgtid", q.TgtID, q.TgtID.IsAbsent())
	add("measure", q.Measure, q.Measure.IsAbsent())
	return strings.Join(parts, " ")
}

// regid returns the scalar registration identity of q, decoding or
// composing as needed. ok is false while registration dimensions are
// still collections.
func (q Query) regid() (id identity.Identity, regid string, ok bool, err error) {
	if len(q.RegTree) > 0 {
		return identity.Identity{}, "", false, nil
	}
	if q.RegID.IsScalar() && q.RegID.Value() != "" {
		id, err = identity.Parse(q.RegID.Value())
		if err != nil {
			return identity.Identity{}, "", false, err
		}
		return id, q.RegID.Value(), true, nil
	}
	if q.RegID.IsIterable() || !q.Toolkit.IsScalar() || q.Command.IsIterable() || q.Version.IsIterable() {
		return identity.Identity{}, "", false, nil
	}
	regid = identity.Compose(q.Toolkit.Value(), q.Command.Value(), q.Version.Value())
	id, err = identity.Parse(regid)
	if err != nil {
		return identity.Identity{}, "", false, err
	}
	return id, regid, true, nil
}

// Leaf is one fully scalar combination handed to the table loader.
type Leaf struct {
	Dataset  string
	Identity identity.Identity
	RegID    string
	CfgID    int
	TgtID    string
	Measure  string

	// CfgIDs is the parameter set selector left for operations that filter
	// by cfgid instead of walking it.
	CfgIDs selector.Selector[int]
}

// Config configures the query service.
type Config struct {
	// DefaultMeasures is the measure set of ReadResults when none is given.
	DefaultMeasures []string

	// StrictParams makes a missing parameter table an error in GetParams
	// instead of yielding the single default configuration.
	StrictParams bool
}

// DefaultConfig returns the query defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMeasures: []string{"vox", "dsc", "jac", "time"},
	}
}
