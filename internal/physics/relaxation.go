package physics

import (
	"fmt"

	"github.com/san-kum/dyncouple/internal/integrators"
)

// Relaxation is a first-order lag: x relaxes towards gain*target with time
// constant tau. Useful as a slow morphological component in a coupling.
type Relaxation struct {
	Tau  float64
	Gain float64
}

func NewRelaxation() *Relaxation {
	return &Relaxation{Tau: 10.0, Gain: 1.0}
}

func (r *Relaxation) StateNames() []string { return []string{"x"} }
func (r *Relaxation) InputNames() []string { return []string{"target"} }

func (r *Relaxation) DefaultState() integrators.State { return integrators.State{0} }

func (r *Relaxation) Derive(x integrators.State, u []float64, _ float64) integrators.State {
	target := 0.0
	if len(u) > 0 {
		target = u[0]
	}
	return integrators.State{(r.Gain*target - x[0]) / r.Tau}
}

func (r *Relaxation) GetParams() map[string]float64 {
	return map[string]float64{"tau": r.Tau, "gain": r.Gain}
}

func (r *Relaxation) SetParam(name string, value float64) error {
	switch name {
	case "tau":
		if value <= 0 {
			return fmt.Errorf("tau must be positive, got %f", value)
		}
		r.Tau = value
	case "gain":
		r.Gain = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
