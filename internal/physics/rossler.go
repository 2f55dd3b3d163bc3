package physics

import (
	"fmt"

	"github.com/san-kum/dyncouple/internal/integrators"
)

type Rossler struct{ a, b, c float64 }

func NewRossler() *Rossler { return &Rossler{0.2, 0.2, 5.7} }

func (r *Rossler) StateNames() []string { return []string{"x", "y", "z"} }
func (r *Rossler) InputNames() []string { return []string{"forcing"} }

func (r *Rossler) DefaultState() integrators.State { return integrators.State{1.0, 1.0, 1.0} }

// Derive adds the forcing input to dx/dt.
func (r *Rossler) Derive(s integrators.State, u []float64, _ float64) integrators.State {
	f := 0.0
	if len(u) > 0 {
		f = u[0]
	}
	return integrators.State{-s[1] - s[2] + f, s[0] + r.a*s[1], r.b + s[2]*(s[0]-r.c)}
}

func (r *Rossler) GetParams() map[string]float64 {
	return map[string]float64{"a": r.a, "b": r.b, "c": r.c}
}

func (r *Rossler) SetParam(n string, v float64) error {
	switch n {
	case "a":
		r.a = v
	case "b":
		r.b = v
	case "c":
		r.c = v
	default:
		return fmt.Errorf("unknown param: %s", n)
	}
	return nil
}
