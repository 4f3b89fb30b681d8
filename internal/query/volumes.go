package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
	"github.com/repeateval/repeat/internal/reshape"
	"github.com/repeateval/repeat/internal/table"
)

// segPrefix marks rows of a size table that count the voxels of one
// segmentation label.
const segPrefix = "seg="

// ReadLabelVolumes returns the volume of every segmentation label of one
// target from its size table: label, the size columns, and
// vol = n * voxelVolume.
func (s *Service) ReadLabelVolumes(ctx context.Context, dataset, regid string, cfgid int, tgtid string, voxelVolume float64) (_ *table.Table, err error) {
	defer func(start time.Time) { s.observe("volumes", start, err) }(time.Now())

	if tgtid == "" {
		return nil, apperrors.InvalidSelectorError("need to specify a target id")
	}
	l, err := scalarLeaf(dataset, regid, cfgid, tgtid)
	if err != nil {
		return nil, err
	}
	l.Measure = reshape.MeasureVox

	size, err := s.fragment(ctx, l, "size", table.DecodeOptions{TextColumns: []string{roiColumn}})
	if err != nil {
		return nil, err
	}
	if !size.Has("n") {
		path := s.layout.CasePath(l.Dataset, l.RegID, l.CfgID, l.TgtID, "size")
		return nil, apperrors.MalformedTableError(path, fmt.Errorf("missing column %q", "n"))
	}

	var src []int
	out := table.New(reshape.LabelColumn)
	for i, r := range size.Rows() {
		roi := size.Value(i, roiColumn).String()
		if !strings.HasPrefix(roi, segPrefix) {
			continue
		}
		label, err := strconv.Atoi(strings.TrimPrefix(roi, segPrefix))
		if err != nil {
			continue
		}
		src = append(src, i)
		out.Append(r.Key, table.Num(float64(label)))
	}

	for _, c := range size.Columns() {
		if c == roiColumn {
			continue
		}
		out.AddColumn(c, func(i int) table.Cell { return size.Value(src[i], c) })
	}
	out.AddColumn("vol", func(i int) table.Cell {
		n, ok := out.Value(i, "n").Float()
		if !ok {
			return table.Null()
		}
		return table.Num(n * voxelVolume)
	})
	stamp(out, l)
	return out, nil
}
