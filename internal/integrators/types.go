package integrators

import "fmt"

// State is the continuous state vector of an ODE model.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// System is an ODE right-hand side dx/dt = f(x, u, t) where u carries the
// externally supplied inputs.
type System interface {
	Derive(x State, u []float64, t float64) State
}

type Integrator interface {
	Step(sys System, x State, u []float64, t, dt float64) State
}

// New returns the integrator registered under name.
func New(name string) (Integrator, error) {
	switch name {
	case "", "rk4":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	case "heun":
		return NewHeun(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
}

func Names() []string {
	return []string{"euler", "heun", "rk4"}
}
