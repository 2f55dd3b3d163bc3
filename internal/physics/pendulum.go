package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dyncouple/internal/integrators"
)

// Pendulum is a damped rigid pendulum on a pivot that may be shaken
// horizontally. Inputs: torque at the pivot and the pivot's horizontal
// acceleration.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateNames() []string { return []string{"theta", "omega"} }
func (p *Pendulum) InputNames() []string { return []string{"torque", "pivot_accel"} }

func (p *Pendulum) DefaultState() integrators.State { return integrators.State{0.5, 0.0} }

func (p *Pendulum) Derive(x integrators.State, u []float64, _ float64) integrators.State {
	theta, omega := x[0], x[1]

	var torque, accel float64
	if len(u) > 1 {
		torque, accel = u[0], u[1]
	}
	inertia := p.Mass * p.Length * p.Length
	restoring := p.Mass * p.Length * (p.Gravity*math.Sin(theta) + accel*math.Cos(theta))
	alpha := (torque - p.Damping*omega - restoring) / inertia

	return integrators.State{omega, alpha}
}

// Energy is kinetic plus potential energy relative to the hanging rest
// position.
func (p *Pendulum) Energy(x integrators.State) float64 {
	v := p.Length * x[1]
	return 0.5*p.Mass*v*v + p.Mass*p.Gravity*p.Length*(1.0-math.Cos(x[0]))
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass", "length":
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %g", name, value)
		}
		if name == "mass" {
			p.Mass = value
		} else {
			p.Length = value
		}
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
