package evaluation

import (
	"context"

	"github.com/repeateval/repeat/internal/query"
	"github.com/repeateval/repeat/internal/table"
)

// GroupColumnPrefix marks the label group membership columns of a taxonomy.
const GroupColumnPrefix = "Label Group: "

// GroupColumn holds the label group of a grouped average row. Rows of
// labels outside every group have a null group.
const GroupColumn = "group"

// member is the taxonomy cell value that puts a label into a group.
const member = "+"

// Taxonomy maps label ids to the name of their label group.
type Taxonomy map[int]string

// ParamsSource loads parameter tables for SetParams.
type ParamsSource interface {
	GetParams(ctx context.Context, q query.Query) (*table.Table, error)
}
