package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/repeateval/repeat/internal/identity"
	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
	"github.com/repeateval/repeat/internal/pkg/security"
	"github.com/repeateval/repeat/internal/selector"
)

// frame holds what one public operation plugs into the resolver.
type frame[R any] struct {
	s     *Service
	dims  []selector.Dimension
	empty func() R
	merge func(acc, next R) R
	leaf  func(ctx context.Context, l Leaf) (R, error)
}

func (f *frame[R]) walks(d selector.Dimension) bool {
	for _, x := range f.dims {
		if x == d {
			return true
		}
	}
	return false
}

// resolve expands the first non-scalar dimension of q in dimension order,
// recursing once per value and concatenating the results in order. When
// every walked dimension is scalar or absent, q is handed to the leaf.
func resolve[R any](ctx context.Context, f *frame[R], q Query) (R, error) {
	if err := ctx.Err(); err != nil {
		var zero R
		return zero, err
	}

	for _, d := range f.dims {
		switch d {
		case selector.Dataset:
			if q.Dataset.IsIterable() {
				return each(ctx, f, d, q.Dataset.Values(), func(v string) Query {
					sub := q
					sub.Dataset = selector.One(v)
					return sub
				})
			}

		case selector.RegID:
			if len(q.RegTree) > 0 {
				return each(ctx, f, d, selector.ExpandHierarchy(q.RegTree), func(e selector.Expansion) Query {
					sub := q
					sub.RegTree = nil
					sub.RegID = selector.Absent[string]()
					sub.Toolkit = selector.One(e.Toolkit)
					sub.Command = e.Command
					sub.Version = e.Version
					return sub
				})
			}
			if q.RegID.IsIterable() {
				return each(ctx, f, d, q.RegID.Values(), func(v string) Query {
					sub := q
					sub.RegID = selector.One(v)
					return sub
				})
			}

		// regid is authoritative: its parts are only walked when it is absent.
		case selector.Toolkit:
			if q.RegID.IsAbsent() && q.Toolkit.IsIterable() {
				return each(ctx, f, d, q.Toolkit.Values(), func(v string) Query {
					sub := q
					sub.Toolkit = selector.One(v)
					return sub
				})
			}
		case selector.Command:
			if q.RegID.IsAbsent() && q.Command.IsIterable() {
				return each(ctx, f, d, q.Command.Values(), func(v string) Query {
					sub := q
					sub.Command = selector.One(v)
					return sub
				})
			}
		case selector.Version:
			if q.RegID.IsAbsent() && q.Version.IsIterable() {
				return each(ctx, f, d, q.Version.Values(), func(v string) Query {
					sub := q
					sub.Version = selector.One(v)
					return sub
				})
			}

		case selector.CfgID:
			q = applyScopedCfgIDs(q)
			if q.CfgID.IsIterable() && q.CfgID.Len() == 0 {
				q.CfgID = selector.Absent[int]()
			}
			if q.CfgID.IsIterable() {
				return each(ctx, f, d, q.CfgID.Values(), func(v int) Query {
					sub := q
					sub.CfgID = selector.One(v)
					return sub
				})
			}

		case selector.TgtID:
			if q.TgtID.IsIterable() && q.TgtID.Len() == 0 {
				q.TgtID = selector.Absent[string]()
			}
			if q.TgtID.IsAbsent() {
				ids, err := f.s.defaultTgtIDs(ctx, q)
				if err != nil {
					var zero R
					return zero, err
				}
				q.TgtID = selector.Many(ids...)
			}
			if q.TgtID.IsIterable() {
				return each(ctx, f, d, q.TgtID.Values(), func(v string) Query {
					sub := q
					sub.TgtID = selector.One(v)
					return sub
				})
			}

		case selector.Measure:
			if q.Measure.IsIterable() {
				return each(ctx, f, d, q.Measure.Values(), func(v string) Query {
					sub := q
					sub.Measure = selector.One(v)
					return sub
				})
			}
		}
	}

	l, err := leafOf(q)
	if err != nil {
		var zero R
		return zero, err
	}
	return f.leaf(ctx, l)
}

func each[R, V any](ctx context.Context, f *frame[R], d selector.Dimension, values []V, sub func(V) Query) (R, error) {
	f.s.log.WithContext(ctx).Debug("expanding selector", "dimension", d.String(), "values", len(values))

	acc := f.empty()
	for _, v := range values {
		r, err := resolve(ctx, f, sub(v))
		if err != nil {
			return acc, err
		}
		acc = f.merge(acc, r)
	}
	return acc, nil
}

// applyScopedCfgIDs resolves a per-registration cfgid mapping once the
// registration and dataset are scalar.
func applyScopedCfgIDs(q Query) Query {
	if q.ScopedCfgIDs == nil || !q.CfgID.IsAbsent() || !q.Dataset.IsScalar() {
		return q
	}
	_, regid, ok, err := q.regid()
	if err != nil || !ok {
		return q
	}
	q.CfgID = q.ScopedCfgIDs.Lookup(q.Dataset.Value(), regid)
	q.ScopedCfgIDs = nil
	return q
}

// leafOf derives the scalar combination of q. regid wins over its parts.
func leafOf(q Query) (Leaf, error) {
	q = applyScopedCfgIDs(q)
	id, regid, ok, err := q.regid()
	if err != nil {
		return Leaf{}, err
	}
	if !ok || !q.Dataset.IsScalar() {
		return Leaf{}, apperrors.InvalidSelectorError("selector does not resolve to a single registration: " + q.String())
	}
	return Leaf{
		Dataset:  q.Dataset.Value(),
		Identity: id,
		RegID:    regid,
		CfgID:    q.CfgID.Value(),
		CfgIDs:   q.CfgID,
		TgtID:    q.TgtID.Value(),
		Measure:  q.Measure.Value(),
	}, nil
}

// validate checks the required dimensions before any file is touched.
func validate(q Query, needMeasure bool) error {
	if q.Dataset.IsEmpty() {
		return apperrors.InvalidSelectorError("need to specify at least one evaluation dataset").
			WithDetail("dimension", selector.Dataset.String())
	}
	for _, ds := range q.Dataset.Values() {
		if err := security.ValidateName(ds); err != nil {
			return apperrors.InvalidSelectorError(fmt.Sprintf("invalid dataset name: %v", err)).
				WithDetail("dimension", selector.Dataset.String())
		}
	}

	if len(q.RegTree) == 0 && q.RegID.IsEmpty() && q.Toolkit.IsEmpty() {
		return apperrors.InvalidSelectorError("either regid or at least toolkit must be specified").
			WithDetail("dimension", selector.RegID.String())
	}
	for _, r := range q.RegID.Values() {
		if _, err := identity.Parse(r); err != nil {
			return err
		}
		if security.ValidateName(r) != nil {
			return apperrors.MalformedIdentityError(security.SanitizeForLog(r))
		}
	}
	for _, tk := range q.RegTree {
		if strings.Contains(tk.Toolkit, identity.Separator) || security.ValidateName(tk.Toolkit) != nil {
			return apperrors.MalformedIdentityError(security.SanitizeForLog(tk.Toolkit))
		}
		parts := tk.Commands.Values()
		for _, c := range tk.ByCommand {
			parts = append(append(parts, c.Command), c.Versions.Values()...)
			if err := checkVersions(tk.Toolkit+identity.Separator+c.Command, c.Versions.Values()); err != nil {
				return err
			}
		}
		for _, p := range parts {
			if security.ValidateName(p) != nil {
				return apperrors.MalformedIdentityError(security.SanitizeForLog(tk.Toolkit + identity.Separator + p))
			}
		}
	}
	for _, tk := range q.Toolkit.Values() {
		if strings.Contains(tk, identity.Separator) {
			return apperrors.MalformedIdentityError(security.SanitizeForLog(tk))
		}
	}
	if err := checkVersions(q.Toolkit.Value()+identity.Separator+q.Command.Value(), q.Version.Values()); err != nil {
		return err
	}

	if needMeasure && q.Measure.IsEmpty() {
		return apperrors.InvalidSelectorError("need to specify at least one evaluation measure").
			WithDetail("dimension", selector.Measure.String())
	}

	names := []struct {
		dim    selector.Dimension
		values []string
	}{
		{selector.Toolkit, q.Toolkit.Values()},
		{selector.Command, q.Command.Values()},
		{selector.Version, q.Version.Values()},
		{selector.TgtID, q.TgtID.Values()},
		{selector.Measure, q.Measure.Values()},
	}
	for _, n := range names {
		for _, v := range n.values {
			if err := security.ValidateName(v); err != nil {
				return apperrors.InvalidSelectorError(fmt.Sprintf("invalid %s: %v", n.dim, err)).
					WithDetail("dimension", n.dim.String())
			}
		}
	}

	cfgids := q.CfgID.Values()
	for _, byDataset := range q.ScopedCfgIDs {
		for _, ids := range byDataset {
			cfgids = append(cfgids, ids...)
		}
	}
	for _, id := range cfgids {
		if id < 1 {
			return apperrors.InvalidSelectorError(fmt.Sprintf("invalid cfgid %d, parameter set ids start at 1", id)).
				WithDetail("dimension", selector.CfgID.String())
		}
	}
	return nil
}

// checkVersions rejects version selectors outside the version grammar,
// which would otherwise decode as part of the command.
func checkVersions(base string, versions []string) error {
	for _, v := range versions {
		if !identity.IsVersion(v) {
			return apperrors.MalformedIdentityError(security.SanitizeForLog(base + identity.Separator + v)).
				WithDetail("version", security.SanitizeForLog(v))
		}
	}
	return nil
}

// fullyScalar reports whether every dimension walked by an operation was
// given as a single value, which makes a missing file an error.
func fullyScalar(q Query, dims []selector.Dimension) bool {
	if len(q.RegTree) > 0 {
		return false
	}
	for _, d := range dims {
		switch d {
		case selector.Dataset:
			if !q.Dataset.IsScalar() {
				return false
			}
		case selector.RegID:
			if q.RegID.IsAbsent() && !q.Toolkit.IsScalar() {
				return false
			}
			if !q.RegID.IsAbsent() && !q.RegID.IsScalar() {
				return false
			}
		case selector.Command:
			if q.RegID.IsAbsent() && q.Command.IsIterable() {
				return false
			}
		case selector.Version:
			if q.RegID.IsAbsent() && q.Version.IsIterable() {
				return false
			}
		case selector.CfgID:
			if q.CfgID.IsIterable() || q.ScopedCfgIDs != nil {
				return false
			}
		case selector.TgtID:
			if !q.TgtID.IsScalar() {
				return false
			}
		case selector.Measure:
			if !q.Measure.IsScalar() {
				return false
			}
		}
	}
	return true
}
