package storage

import (
	"github.com/san-kum/dyncouple/internal/dynamo"
)

// TimeDim is the unlimited record dimension every output variable shares.
const TimeDim = "time"

// Descriptor declares one output variable and the dimensions it spans.
type Descriptor struct {
	Name dynamo.QualifiedName `json:"name"`
	Dims []string             `json:"dims"`
	Size int                  `json:"size"`
}

// Snapshot is one output record.
type Snapshot struct {
	Time   float64
	Values map[dynamo.QualifiedName]dynamo.Value
}

// OutputSink receives the coupled run's output. Init is called once before
// the first record, Append once per written round and Close at shutdown.
type OutputSink interface {
	Init(dims map[string]int, vars []Descriptor, attrs map[string]string) error
	Append(index int, snap Snapshot) error
	Close() error
}

// Describe builds descriptors and dimensions from a first sample of each
// variable. Scalars only span time; vectors get a dimension of their own.
func Describe(names []dynamo.QualifiedName, sample map[dynamo.QualifiedName]dynamo.Value) (map[string]int, []Descriptor) {
	dims := map[string]int{TimeDim: 0}
	vars := make([]Descriptor, 0, len(names))
	for _, q := range names {
		size := len(sample[q])
		if size == 0 {
			size = 1
		}
		d := Descriptor{Name: q, Dims: []string{TimeDim}, Size: size}
		if size > 1 {
			dim := q.String() + "_n"
			dims[dim] = size
			d.Dims = append(d.Dims, dim)
		}
		vars = append(vars, d)
	}
	return dims, vars
}

// Discard is a sink that drops everything.
type Discard struct{}

func (Discard) Init(map[string]int, []Descriptor, map[string]string) error { return nil }
func (Discard) Append(int, Snapshot) error                                { return nil }
func (Discard) Close() error                                              { return nil }
