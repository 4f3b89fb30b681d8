package query

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/repeateval/repeat/internal/cache"
	"github.com/repeateval/repeat/internal/identity"
	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
	"github.com/repeateval/repeat/internal/reshape"
	"github.com/repeateval/repeat/internal/selector"
	"github.com/repeateval/repeat/internal/store"
	"github.com/repeateval/repeat/internal/table"
)

// Averaged measures are stored as three sibling tables joined on roi.
var (
	averageSuffixes = []string{"mean", "sdev", "size"}
	averageJoin     = [2]string{"_mean", "_sdev"}
)

const (
	roiColumn     = "roi"
	paramsMeasure = "params"
)

func fileMeasure(measure string) string {
	return reshape.FileMeasure(measure)
}

// fragment reads one case table through the cache.
func (s *Service) fragment(ctx context.Context, l Leaf, suffix string, opts table.DecodeOptions) (*table.Table, error) {
	path := s.layout.CasePath(l.Dataset, l.RegID, l.CfgID, l.TgtID, suffix)
	key := cache.Key{
		Dataset:  l.Dataset,
		RegID:    l.RegID,
		CfgID:    l.CfgID,
		TgtID:    l.TgtID,
		Measure:  l.Measure,
		Suffix:   suffix,
		Revision: s.storage.Revision(path),
	}

	return s.loader.Load(ctx, key, func() (*table.Table, error) {
		start := time.Now()
		t, err := s.storage.ReadTable(path, opts)
		if err != nil {
			if apperrors.IsMissingMeasurementFile(err) {
				s.metrics.RecordMissingFile(l.Measure)
			}
			return nil, err
		}
		s.metrics.RecordFragment(l.Measure, t.Len(), time.Since(start))
		return t, nil
	})
}

// absorb turns a missing file into an empty fragment unless the caller
// asked for exactly this case.
func (s *Service) absorb(ctx context.Context, l Leaf, err error, strict bool) (*table.Table, error) {
	if strict || !apperrors.IsMissingMeasurementFile(err) {
		return nil, err
	}
	path := ""
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		path = appErr.Details["path"]
	}
	s.diagnostic(ctx, "measurement file missing, case skipped", l, "path", path)
	return table.New(), nil
}

// diagnostic reports an absorbed failure.
func (s *Service) diagnostic(ctx context.Context, msg string, l Leaf, args ...any) {
	attrs := []any{"dataset", l.Dataset, "regid", l.RegID}
	if l.CfgID > 0 {
		attrs = append(attrs, "cfgid", l.CfgID)
	}
	if l.TgtID != "" {
		attrs = append(attrs, "tgtid", l.TgtID)
	}
	if l.Measure != "" {
		attrs = append(attrs, "measure", l.Measure)
	}
	s.log.WithContext(ctx).Warn(msg, append(attrs, args...)...)
}

// stamp sets the identity columns of every row from l. cfgid and tgtid
// are only set when l carries them.
func stamp(t *table.Table, l Leaf) {
	t.SetKeys(func(k *table.Key) {
		k.Dataset = l.Dataset
		k.RegID = l.RegID
		k.Toolkit = l.Identity.Toolkit
		k.Command = l.Identity.Command
		k.Version = l.Identity.Version
		if l.CfgID > 0 {
			k.CfgID = l.CfgID
		}
		if l.TgtID != "" {
			k.TgtID = l.TgtID
		}
	})
}

func (s *Service) listTgtIDs(ctx context.Context, l Leaf) ([]string, error) {
	dir := s.layout.CaseDir(l.Dataset, l.RegID, l.CfgID)
	ids, err := s.storage.ListTgtIDs(dir)
	if errors.Is(err, fs.ErrNotExist) {
		s.diagnostic(ctx, "results directory missing", l, "path", dir)
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.InternalError("listing target ids", err)
	}
	return ids, nil
}

// defaultTgtIDs lists the targets of q's scalar registration and cfgid.
func (s *Service) defaultTgtIDs(ctx context.Context, q Query) ([]string, error) {
	l, err := leafOf(q)
	if err != nil {
		return nil, err
	}
	return s.listTgtIDs(ctx, l)
}

// averages loads the mean, sdev and size tables of one case.
func (s *Service) averages(ctx context.Context, l Leaf, strict bool) (*table.Table, error) {
	l.Measure = reshape.MeasureVox
	opts := table.DecodeOptions{TextColumns: []string{roiColumn}}

	parts := make([]*table.Table, len(averageSuffixes))
	for i, suffix := range averageSuffixes {
		t, err := s.fragment(ctx, l, suffix, opts)
		if err != nil {
			return s.absorb(ctx, l, err, strict)
		}
		parts[i] = t
	}

	t := table.InnerJoin(parts[0], parts[1], roiColumn, averageJoin)
	t = table.InnerJoin(t, parts[2], roiColumn, averageJoin)
	stamp(t, l)
	return t, nil
}

// measurement loads and reshapes one case table.
func (s *Service) measurement(ctx context.Context, l Leaf, strict bool) (*table.Table, error) {
	if l.Measure == reshape.MeasureVox {
		return s.averages(ctx, l, strict)
	}
	t, err := s.fragment(ctx, l, fileMeasure(l.Measure), table.DecodeOptions{})
	if err != nil {
		return s.absorb(ctx, l, err, strict)
	}
	stamp(t, l)
	return reshape.Apply(l.Measure, t), nil
}

// params loads the parameter table of one registration. When no table
// exists and required is false, the registration has the single default
// configuration 1.
func (s *Service) params(ctx context.Context, l Leaf, required bool) (*table.Table, error) {
	names := []string{l.RegID, identity.Compose(l.Identity.Toolkit, l.Identity.Command, "")}
	candidates := s.layout.ParamCandidates(l.Dataset, names...)

	var t *table.Table
	path, ok := store.FirstExisting(s.storage, candidates)
	if !ok {
		if required {
			return nil, apperrors.ParameterSetNotFoundError(l.Dataset, l.RegID)
		}
		s.diagnostic(ctx, "parameter table missing, using default configuration", l)
		t = table.New()
		t.Append(table.Key{CfgID: 1})
	} else {
		key := cache.Key{
			Dataset:  l.Dataset,
			RegID:    l.RegID,
			Measure:  paramsMeasure,
			Suffix:   path,
			Revision: s.storage.Revision(path),
		}
		loaded, err := s.loader.Load(ctx, key, func() (*table.Table, error) {
			return s.storage.ReadTable(path, table.DecodeOptions{})
		})
		if apperrors.IsMissingMeasurementFile(err) {
			return nil, apperrors.ParameterSetNotFoundError(l.Dataset, l.RegID)
		}
		if err != nil {
			return nil, err
		}
		t = loaded.Distinct()
	}

	if ids := l.CfgIDs; !ids.IsAbsent() {
		t = t.Filter(func(r table.Row) bool {
			return ids.Contains(r.Key.CfgID)
		})
	}
	stamp(t, Leaf{Dataset: l.Dataset, RegID: l.RegID, Identity: l.Identity})
	return t, nil
}

// resultCfgIDs returns the parameter sets ReadResults reads for l.
func (s *Service) resultCfgIDs(ctx context.Context, l Leaf) ([]int, error) {
	if l.RegID == identity.Affine {
		return nil, nil
	}
	if !l.CfgIDs.IsAbsent() {
		return l.CfgIDs.Values(), nil
	}

	params, err := s.params(ctx, Leaf{Dataset: l.Dataset, RegID: l.RegID, Identity: l.Identity}, true)
	if err != nil {
		return nil, err
	}
	var ids []int
	seen := make(map[int]bool)
	for _, r := range params.Rows() {
		id := r.Key.CfgID
		if seen[id] {
			continue
		}
		seen[id] = true
		if dir := s.layout.CaseDir(l.Dataset, l.RegID, id); s.storage.IsDir(dir) {
			ids = append(ids, id)
		} else {
			s.log.WithContext(ctx).Debug("parameter set has no results", "dataset", l.Dataset, "regid", l.RegID, "cfgid", id)
		}
	}
	return ids, nil
}

// results reads every measure of one registration.
func (s *Service) results(ctx context.Context, l Leaf, measures []string) (Results, error) {
	cfgids, err := s.resultCfgIDs(ctx, l)
	if err != nil {
		return nil, err
	}

	out := make(Results, len(measures))
	for _, m := range measures {
		q := Query{
			Dataset: selector.One(l.Dataset),
			RegID:   selector.One(l.RegID),
			CfgID:   selector.Many(cfgids...),
			Measure: selector.One(m),
		}
		t, err := s.readMeasurements(ctx, q, false)
		if err != nil {
			return nil, err
		}
		if acc, ok := out[m]; ok {
			acc.Concat(t)
			continue
		}
		out[m] = t
	}
	return out, nil
}
