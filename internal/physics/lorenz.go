package physics

import (
	"fmt"

	"github.com/san-kum/dyncouple/internal/integrators"
)

// Lorenz is the classic chaotic attractor with an additive forcing on x.
type Lorenz struct{ sigma, rho, beta float64 }

func NewLorenz() *Lorenz { return &Lorenz{10.0, 28.0, 8.0 / 3.0} }

func (l *Lorenz) StateNames() []string { return []string{"x", "y", "z"} }
func (l *Lorenz) InputNames() []string { return []string{"forcing"} }

func (l *Lorenz) DefaultState() integrators.State { return integrators.State{1.0, 1.0, 1.0} }

func (l *Lorenz) Derive(s integrators.State, u []float64, _ float64) integrators.State {
	f := 0.0
	if len(u) > 0 {
		f = u[0]
	}
	return integrators.State{l.sigma*(s[1]-s[0]) + f, s[0]*(l.rho-s[2]) - s[1], s[0]*s[1] - l.beta*s[2]}
}

func (l *Lorenz) GetParams() map[string]float64 {
	return map[string]float64{"sigma": l.sigma, "rho": l.rho, "beta": l.beta}
}

func (l *Lorenz) SetParam(n string, v float64) error {
	switch n {
	case "sigma":
		l.sigma = v
	case "rho":
		l.rho = v
	case "beta":
		l.beta = v
	default:
		return fmt.Errorf("unknown param: %s", n)
	}
	return nil
}
