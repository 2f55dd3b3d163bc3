package integrators

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys System, x State, u []float64, t, dt float64) State {
	dx := sys.Derive(x, u, t)
	result := make(State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

// Heun is the explicit trapezoidal (improved Euler) method.
type Heun struct {
	scratch State
}

func NewHeun() *Heun {
	return &Heun{}
}

func (h *Heun) Step(sys System, x State, u []float64, t, dt float64) State {
	n := len(x)
	if len(h.scratch) != n {
		h.scratch = make(State, n)
	}

	k1 := sys.Derive(x, u, t)
	for i := 0; i < n; i++ {
		h.scratch[i] = x[i] + dt*k1[i]
	}
	k2 := sys.Derive(h.scratch, u, t+dt)

	result := make(State, n)
	for i := 0; i < n; i++ {
		result[i] = x[i] + 0.5*dt*(k1[i]+k2[i])
	}
	return result
}
