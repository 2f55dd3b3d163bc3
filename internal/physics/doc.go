// Package physics provides reference engines for coupled runs.
//
// Each ODE model implements [Model] and is driven by an [ODEEngine], which
// exposes it through the [dynamo.Engine] stepping contract:
//
//   - [SpringMass]: damped oscillator (pos, vel; input force)
//   - [Pendulum]: damped pendulum (theta, omega; inputs torque, pivot_accel)
//   - [Lorenz]: chaotic attractor (x, y, z; input forcing)
//   - [Relaxation]: first-order lag (x; input target)
//   - [VanDerPol]: limit cycle oscillator (x, y; input forcing)
//   - [Duffing]: driven nonlinear oscillator (x, v, phase; input force)
//   - [Rossler]: chaotic attractor (x, y, z; input forcing)
//
// [Forcing] replays a CSV time series and is typically the source side of
// exchange rules.
//
// Engine sub-configurations are YAML documents:
//
//	dt: 0.05
//	integrator: rk4
//	params: {stiffness: 4.0}
//	state: {pos: 0.2}
//	inputs: {force: 0}
package physics
