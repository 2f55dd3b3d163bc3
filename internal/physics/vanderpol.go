package physics

import (
	"fmt"

	"github.com/san-kum/dyncouple/internal/integrators"
)

// VanDerPol is the self-excited oscillator
//
//	dx/dt = y
//	dy/dt = mu(1 - x²)y - x + forcing
type VanDerPol struct {
	mu float64
}

func NewVanDerPol() *VanDerPol { return &VanDerPol{mu: 1.0} }

func (v *VanDerPol) StateNames() []string { return []string{"x", "y"} }
func (v *VanDerPol) InputNames() []string { return []string{"forcing"} }

func (v *VanDerPol) DefaultState() integrators.State { return integrators.State{2.0, 0.0} }

func (v *VanDerPol) Derive(s integrators.State, u []float64, _ float64) integrators.State {
	f := 0.0
	if len(u) > 0 {
		f = u[0]
	}
	x, y := s[0], s[1]
	return integrators.State{y, v.mu*(1-x*x)*y - x + f}
}

func (v *VanDerPol) GetParams() map[string]float64 {
	return map[string]float64{"mu": v.mu}
}

func (v *VanDerPol) SetParam(name string, value float64) error {
	if name != "mu" {
		return fmt.Errorf("unknown param: %s", name)
	}
	v.mu = value
	return nil
}
