package physics

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/integrators"
)

const DefaultDt = 0.01

// Model is an ODE system with named state components, tunable parameters
// and externally driven inputs.
type Model interface {
	integrators.System
	StateNames() []string
	DefaultState() integrators.State
	InputNames() []string
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// EngineConfig is the YAML sub-configuration read by Initialize.
type EngineConfig struct {
	Dt         float64            `yaml:"dt"`
	Integrator string             `yaml:"integrator"`
	StartTime  float64            `yaml:"start_time"`
	Params     map[string]float64 `yaml:"params"`
	State      map[string]float64 `yaml:"state"`
	Inputs     map[string]float64 `yaml:"inputs"`
}

func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg := &EngineConfig{Dt: DefaultDt, Integrator: "rk4"}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ODEEngine drives a Model with a fixed internal step, exposing it through
// the standard stepping contract.
type ODEEngine struct {
	model      Model
	integrator integrators.Integrator
	dt         float64
	t          float64
	x          integrators.State
	u          []float64

	initialized bool
	finalized   bool
}

var (
	_ dynamo.Engine     = (*ODEEngine)(nil)
	_ dynamo.TimeSetter = (*ODEEngine)(nil)
	_ dynamo.VarLister  = (*ODEEngine)(nil)
)

func NewODEEngine(m Model) *ODEEngine {
	return &ODEEngine{model: m}
}

func (e *ODEEngine) Model() Model { return e.model }

func (e *ODEEngine) Initialize(configFile string) error {
	cfg, err := LoadEngineConfig(configFile)
	if err != nil {
		return err
	}
	return e.InitializeWith(cfg)
}

// InitializeWith initializes the engine from an already parsed config.
func (e *ODEEngine) InitializeWith(cfg *EngineConfig) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}

	for _, name := range sortedKeys(cfg.Params) {
		if err := e.model.SetParam(name, cfg.Params[name]); err != nil {
			return err
		}
	}

	e.x = e.model.DefaultState().Clone()
	for _, name := range sortedKeys(cfg.State) {
		i := indexOf(e.model.StateNames(), name)
		if i < 0 {
			return fmt.Errorf("%w: state %s", dynamo.ErrUnknownVar, name)
		}
		e.x[i] = cfg.State[name]
	}

	e.u = make([]float64, len(e.model.InputNames()))
	for _, name := range sortedKeys(cfg.Inputs) {
		i := indexOf(e.model.InputNames(), name)
		if i < 0 {
			return fmt.Errorf("%w: input %s", dynamo.ErrUnknownVar, name)
		}
		e.u[i] = cfg.Inputs[name]
	}

	e.integrator = integ
	e.dt = cfg.Dt
	e.t = cfg.StartTime
	e.initialized = true
	e.finalized = false
	return nil
}

func (e *ODEEngine) Update(dt float64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if dt <= 0 {
		dt = e.dt
	}

	next := e.integrator.Step(e.model, e.x, e.u, e.t, dt)
	if !dynamo.Value(next).IsValid() {
		return fmt.Errorf("%w: state diverged at t=%.4f", dynamo.ErrInvalidValue, e.t)
	}
	e.x = next
	e.t += dt
	return nil
}

func (e *ODEEngine) CurrentTime() float64 { return e.t }

func (e *ODEEngine) SetCurrentTime(t float64) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.t = t
	return nil
}

func (e *ODEEngine) GetVar(name string) (dynamo.Value, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if i := indexOf(e.model.StateNames(), name); i >= 0 {
		return dynamo.Scalar(e.x[i]), nil
	}
	if i := indexOf(e.model.InputNames(), name); i >= 0 {
		return dynamo.Scalar(e.u[i]), nil
	}
	if v, ok := e.model.GetParams()[name]; ok {
		return dynamo.Scalar(v), nil
	}
	return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownVar, name)
}

func (e *ODEEngine) SetVar(name string, value dynamo.Value) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(value) != 1 || !value.IsValid() {
		return fmt.Errorf("%w: %s expects one finite scalar, got %v", dynamo.ErrInvalidValue, name, value)
	}
	v := value[0]

	if i := indexOf(e.model.StateNames(), name); i >= 0 {
		e.x[i] = v
		return nil
	}
	if i := indexOf(e.model.InputNames(), name); i >= 0 {
		e.u[i] = v
		return nil
	}
	if _, ok := e.model.GetParams()[name]; ok {
		return e.model.SetParam(name, v)
	}
	return fmt.Errorf("%w: %s", dynamo.ErrUnknownVar, name)
}

func (e *ODEEngine) VarNames() []string {
	names := append([]string{}, e.model.StateNames()...)
	names = append(names, e.model.InputNames()...)
	return append(names, sortedKeys(e.model.GetParams())...)
}

func (e *ODEEngine) Finalize() error {
	if e.finalized {
		return dynamo.ErrFinalized
	}
	e.finalized = true
	return nil
}

func (e *ODEEngine) ready() error {
	if !e.initialized {
		return dynamo.ErrNotInitialized
	}
	if e.finalized {
		return dynamo.ErrFinalized
	}
	return nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
