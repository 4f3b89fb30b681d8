// Package query resolves result selectors into tables assembled from the
// results store.
//
// Every public operation walks the selector dimensions in a fixed order,
// dataset, regid, toolkit, command, version, cfgid, tgtid and measure,
// expanding the first one that holds several values and concatenating the
// sub-results. Once every dimension is a single value the matching files
// are loaded, tagged with their identity columns and reshaped.
package query

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/repeateval/repeat/internal/cache"
	"github.com/repeateval/repeat/internal/metrics"
	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
	"github.com/repeateval/repeat/internal/pkg/logger"
	"github.com/repeateval/repeat/internal/selector"
	"github.com/repeateval/repeat/internal/store"
	"github.com/repeateval/repeat/internal/table"
)

// Results maps measure names to their result tables.
type Results map[string]*table.Table

// Concat appends the tables of other measure by measure.
func (r Results) Concat(other Results) Results {
	for m, t := range other {
		if acc, ok := r[m]; ok {
			acc.Concat(t)
			continue
		}
		r[m] = t
	}
	return r
}

// Service answers result queries against one store.
type Service struct {
	storage store.Storage
	layout  store.Layout
	loader  *cache.Loader
	log     *logger.Logger
	metrics *metrics.Metrics
	cfg     Config
}

// NewService creates a query service. A nil loader disables caching.
func NewService(storage store.Storage, loader *cache.Loader, log *logger.Logger, cfg Config) *Service {
	if len(cfg.DefaultMeasures) == 0 {
		cfg.DefaultMeasures = DefaultConfig().DefaultMeasures
	}
	if loader == nil {
		loader = cache.NewLoader(nil, cache.KindNone)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		storage: storage,
		layout:  storage.Layout(),
		loader:  loader,
		log:     log,
		cfg:     cfg,
	}
}

// SetMetrics sets the metrics recorder for this service and its cache.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
	if m != nil {
		s.loader.SetMetrics(m)
	}
}

// Purge drops every cached fragment.
func (s *Service) Purge(ctx context.Context) error {
	return s.loader.Purge(ctx)
}

func (s *Service) observe(op string, start time.Time, err error) {
	code := ""
	if err != nil {
		code = apperrors.CodeOf(err)
	}
	s.metrics.RecordQuery(op, time.Since(start), code)
}

var (
	registrationDims = selector.Subset(selector.Dataset, selector.RegID, selector.Toolkit, selector.Command, selector.Version)
	averageDims      = selector.Subset(selector.Dataset, selector.RegID, selector.Toolkit, selector.Command, selector.Version, selector.CfgID, selector.TgtID)
	measurementDims  = selector.Order
)

func tableFrame(s *Service, dims []selector.Dimension, leaf func(context.Context, Leaf) (*table.Table, error)) *frame[*table.Table] {
	return &frame[*table.Table]{
		s:     s,
		dims:  dims,
		empty: func() *table.Table { return table.New() },
		merge: func(acc, next *table.Table) *table.Table {
			acc.Concat(next)
			return acc
		},
		leaf: leaf,
	}
}

// GetParams returns the parameter sets of the selected registrations. A
// cfgid selector filters the rows.
func (s *Service) GetParams(ctx context.Context, q Query) (_ *table.Table, err error) {
	defer func(start time.Time) { s.observe("params", start, err) }(time.Now())

	if err := validate(q, false); err != nil {
		return nil, err
	}
	f := tableFrame(s, registrationDims, func(ctx context.Context, l Leaf) (*table.Table, error) {
		return s.params(ctx, l, s.cfg.StrictParams)
	})
	return resolve(ctx, f, q)
}

// ReadAverageMeasures returns the joined mean, sdev and size tables of the
// selected cases.
func (s *Service) ReadAverageMeasures(ctx context.Context, q Query) (_ *table.Table, err error) {
	defer func(start time.Time) { s.observe("averages", start, err) }(time.Now())

	if err := validate(q, false); err != nil {
		return nil, err
	}
	strict := fullyScalar(q, averageDims)
	f := tableFrame(s, averageDims, func(ctx context.Context, l Leaf) (*table.Table, error) {
		return s.averages(ctx, l, strict)
	})
	return resolve(ctx, f, q)
}

// ReadMeasurements returns the pairwise measurements of the selected cases.
func (s *Service) ReadMeasurements(ctx context.Context, q Query) (_ *table.Table, err error) {
	defer func(start time.Time) { s.observe("measurements", start, err) }(time.Now())

	if err := validate(q, true); err != nil {
		return nil, err
	}
	return s.readMeasurements(ctx, q, fullyScalar(q, measurementDims))
}

func (s *Service) readMeasurements(ctx context.Context, q Query, strict bool) (*table.Table, error) {
	f := tableFrame(s, measurementDims, func(ctx context.Context, l Leaf) (*table.Table, error) {
		return s.measurement(ctx, l, strict)
	})
	return resolve(ctx, f, q)
}

// ReadResults returns one table per measure for the selected
// registrations. Without a measure selector the configured default set
// is read. Without a cfgid selector every parameter set with a results
// directory is read.
func (s *Service) ReadResults(ctx context.Context, q Query) (_ Results, err error) {
	defer func(start time.Time) { s.observe("results", start, err) }(time.Now())

	if q.Measure.IsAbsent() {
		q.Measure = selector.Many(s.cfg.DefaultMeasures...)
	}
	if err := validate(q, true); err != nil {
		return nil, err
	}
	measures := q.Measure.Values()

	f := &frame[Results]{
		s:     s,
		dims:  registrationDims,
		empty: func() Results { return Results{} },
		merge: func(acc, next Results) Results { return acc.Concat(next) },
		leaf: func(ctx context.Context, l Leaf) (Results, error) {
			return s.results(ctx, l, measures)
		},
	}
	return resolve(ctx, f, q)
}

// ListTgtIDs returns the target ids with results for one registration and
// parameter set (zero for none). A missing directory yields no ids.
func (s *Service) ListTgtIDs(ctx context.Context, dataset, regid string, cfgid int) (_ []string, err error) {
	defer func(start time.Time) { s.observe("tgtids", start, err) }(time.Now())

	l, err := scalarLeaf(dataset, regid, cfgid, "")
	if err != nil {
		return nil, err
	}
	return s.listTgtIDs(ctx, l)
}

// ListCfgIDs returns the parameter set ids with a results directory.
func (s *Service) ListCfgIDs(ctx context.Context, dataset, regid string) (_ []int, err error) {
	defer func(start time.Time) { s.observe("cfgids", start, err) }(time.Now())

	l, err := scalarLeaf(dataset, regid, 0, "")
	if err != nil {
		return nil, err
	}
	dir := s.layout.RegDir(l.Dataset, l.RegID)
	ids, err := s.storage.ListCfgIDs(dir)
	if errors.Is(err, fs.ErrNotExist) {
		s.diagnostic(ctx, "results directory missing", l, "path", dir)
		return nil, nil
	}
	return ids, err
}

// ReadSrcIDs returns the distinct source ids of one case table in file
// order. A missing or empty table is an error.
func (s *Service) ReadSrcIDs(ctx context.Context, measure, dataset, regid string, cfgid int, tgtid string) (_ []string, err error) {
	defer func(start time.Time) { s.observe("srcids", start, err) }(time.Now())

	if measure == "" {
		return nil, apperrors.InvalidSelectorError("need to specify an evaluation measure")
	}
	l, err := scalarLeaf(dataset, regid, cfgid, tgtid)
	if err != nil {
		return nil, err
	}
	if tgtid == "" {
		return nil, apperrors.InvalidSelectorError("need to specify a target id")
	}
	l.Measure = measure

	path := s.layout.CasePath(l.Dataset, l.RegID, l.CfgID, l.TgtID, fileMeasure(measure))
	t, err := s.fragment(ctx, l, fileMeasure(measure), table.DecodeOptions{})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, r := range t.Rows() {
		if r.Key.SrcID == "" || seen[r.Key.SrcID] {
			continue
		}
		seen[r.Key.SrcID] = true
		ids = append(ids, r.Key.SrcID)
	}
	if len(ids) == 0 {
		return nil, apperrors.MissingMeasurementFileError(path).WithDetail("reason", "no source ids")
	}
	return ids, nil
}

func scalarLeaf(dataset, regid string, cfgid int, tgtid string) (Leaf, error) {
	q := Query{Dataset: selector.One(dataset), RegID: selector.One(regid), CfgID: selector.Absent[int]()}
	if cfgid > 0 {
		q.CfgID = selector.One(cfgid)
	}
	if tgtid != "" {
		q.TgtID = selector.One(tgtid)
	}
	if err := validate(q, false); err != nil {
		return Leaf{}, err
	}
	return leafOf(q)
}
