package physics

import (
	"fmt"

	"github.com/san-kum/dyncouple/internal/integrators"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass is a damped oscillator driven by an external force.
type SpringMass struct {
	Mass      float64
	Stiffness float64
	Damping   float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		Mass:      DefaultMass,
		Stiffness: DefaultStiffness,
		Damping:   DefaultDamping,
	}
}

func (s *SpringMass) StateNames() []string { return []string{"pos", "vel"} }
func (s *SpringMass) InputNames() []string { return []string{"force"} }

func (s *SpringMass) DefaultState() integrators.State { return integrators.State{1.0, 0.0} }

func (s *SpringMass) Derive(x integrators.State, u []float64, t float64) integrators.State {
	pos, vel := x[0], x[1]
	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}
	acc := (-s.Stiffness*pos - s.Damping*vel + force) / s.Mass
	return integrators.State{vel, acc}
}

func (s *SpringMass) Energy(x integrators.State) float64 {
	return 0.5*s.Mass*x[1]*x[1] + 0.5*s.Stiffness*x[0]*x[0]
}

func (s *SpringMass) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      s.Mass,
		"stiffness": s.Stiffness,
		"damping":   s.Damping,
	}
}

func (s *SpringMass) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if value <= 0 {
			return fmt.Errorf("mass must be positive, got %f", value)
		}
		s.Mass = value
	case "stiffness":
		s.Stiffness = value
	case "damping":
		s.Damping = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
