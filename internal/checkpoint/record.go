package checkpoint

import (
	"time"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

// Record is everything needed to resume a run at a checkpoint boundary.
type Record struct {
	RunID       string                             `json:"run_id"`
	Time        float64                            `json:"time"`
	Boundary    float64                            `json:"boundary"`
	OutputIndex int                                `json:"output_index"`
	Iteration   int                                `json:"iteration"`
	LastOutput  float64                            `json:"last_output"`
	Engines     map[string]map[string]dynamo.Value `json:"engines"`
	EngineTimes map[string]float64                 `json:"engine_times,omitempty"`
	CreatedAt   time.Time                          `json:"created_at"`
}

// Value returns the recorded value of q, if present.
func (r *Record) Value(q dynamo.QualifiedName) (dynamo.Value, bool) {
	vars, ok := r.Engines[q.Engine]
	if !ok {
		return nil, false
	}
	v, ok := vars[q.Var]
	return v, ok
}

func (r *Record) set(q dynamo.QualifiedName, v dynamo.Value) {
	if r.Engines == nil {
		r.Engines = make(map[string]map[string]dynamo.Value)
	}
	vars, ok := r.Engines[q.Engine]
	if !ok {
		vars = make(map[string]dynamo.Value)
		r.Engines[q.Engine] = vars
	}
	vars[q.Var] = v
}
