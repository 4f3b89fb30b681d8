package selector

// Dimension is one axis of a result query.
type Dimension int

const (
	Dataset Dimension = iota
	RegID
	Toolkit
	Command
	Version
	CfgID
	TgtID
	Measure
)

// Order is the fixed expansion order. Later dimensions may default from
// earlier ones (tgtid from a resolved regid and cfgid), so expansion always
// proceeds outer to inner in this sequence.
var Order = []Dimension{Dataset, RegID, Toolkit, Command, Version, CfgID, TgtID, Measure}

var dimensionNames = [...]string{"dataset", "regid", "toolkit", "command", "version", "cfgid", "tgtid", "measure"}

func (d Dimension) String() string {
	if d < 0 || int(d) >= len(dimensionNames) {
		return "unknown"
	}
	return dimensionNames[d]
}

// Subset returns the dimensions of Order that are in dims, in Order.
func Subset(dims ...Dimension) []Dimension {
	want := make(map[Dimension]bool, len(dims))
	for _, d := range dims {
		want[d] = true
	}
	out := make([]Dimension, 0, len(dims))
	for _, d := range Order {
		if want[d] {
			out = append(out, d)
		}
	}
	return out
}
