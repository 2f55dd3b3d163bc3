package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dyncouple/internal/integrators"
)

// Duffing is a periodically driven nonlinear oscillator. The drive phase is
// carried as a state component so restarts reproduce it.
type Duffing struct {
	Alpha, Beta, Delta, Gamma, Omega float64
}

func NewDuffing() *Duffing {
	return &Duffing{-1.0, 1.0, 0.3, 0.5, 1.2}
}

func (d *Duffing) StateNames() []string { return []string{"x", "v", "phase"} }
func (d *Duffing) InputNames() []string { return []string{"force"} }

func (d *Duffing) DefaultState() integrators.State { return integrators.State{1.0, 0.0, 0.0} }

func (d *Duffing) Derive(s integrators.State, u []float64, _ float64) integrators.State {
	f := 0.0
	if len(u) > 0 {
		f = u[0]
	}
	x, v, phi := s[0], s[1], s[2]
	return integrators.State{
		v,
		-d.Delta*v - d.Alpha*x - d.Beta*x*x*x + d.Gamma*math.Cos(phi) + f,
		d.Omega,
	}
}

func (d *Duffing) Energy(s integrators.State) float64 {
	x, v := s[0], s[1]
	return 0.5*v*v + 0.5*d.Alpha*x*x + 0.25*d.Beta*x*x*x*x
}

func (d *Duffing) GetParams() map[string]float64 {
	return map[string]float64{"alpha": d.Alpha, "beta": d.Beta, "delta": d.Delta, "gamma": d.Gamma, "omega": d.Omega}
}

func (d *Duffing) SetParam(n string, v float64) error {
	switch n {
	case "alpha":
		d.Alpha = v
	case "beta":
		d.Beta = v
	case "delta":
		d.Delta = v
	case "gamma":
		d.Gamma = v
	case "omega":
		d.Omega = v
	default:
		return fmt.Errorf("unknown param: %s", n)
	}
	return nil
}
