package coordinator_test

import (
	"errors"
	"fmt"

	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/engine"
	"github.com/san-kum/dyncouple/internal/storage"
)

var errBoom = errors.New("boom")

// stub advances by a fixed dt and exposes x = local time. Every value it
// sees on "in" at step time is recorded.
type stub struct {
	dt   float64
	t    float64
	vars map[string]dynamo.Value

	seen      []float64
	sets      []string
	failStep  func(n int) bool
	failInit  bool
	steps     int
	finalized int
}

func newStub(dt float64) *stub {
	return &stub{dt: dt, vars: map[string]dynamo.Value{"in": dynamo.Scalar(0), "k": dynamo.Scalar(1)}}
}

func (s *stub) Initialize(string) error {
	if s.failInit {
		return errBoom
	}
	return nil
}

func (s *stub) Update(float64) error {
	s.steps++
	if s.failStep != nil && s.failStep(s.steps) {
		return errBoom
	}
	s.seen = append(s.seen, s.vars["in"].Float())
	s.t += s.dt
	return nil
}

func (s *stub) CurrentTime() float64 { return s.t }

func (s *stub) GetVar(name string) (dynamo.Value, error) {
	if name == "x" {
		return dynamo.Scalar(s.t), nil
	}
	v, ok := s.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownVar, name)
	}
	return v, nil
}

func (s *stub) SetVar(name string, v dynamo.Value) error {
	if _, ok := s.vars[name]; !ok {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownVar, name)
	}
	s.sets = append(s.sets, fmt.Sprintf("%s=%g", name, v.Float()))
	s.vars[name] = v
	return nil
}

func (s *stub) Finalize() error {
	s.finalized++
	return nil
}

type stubSet struct {
	names   []string
	engines map[string]*stub
}

func stubs(spec ...any) stubSet {
	set := stubSet{engines: make(map[string]*stub)}
	for i := 0; i+1 < len(spec); i += 2 {
		name := spec[i].(string)
		set.names = append(set.names, name)
		set.engines[name] = newStub(spec[i+1].(float64))
	}
	return set
}

func (s stubSet) registry() *engine.Registry {
	reg := engine.NewRegistry()
	for name, st := range s.engines {
		st := st
		reg.Register("stub-"+name, func(string) (dynamo.Engine, error) { return st, nil })
	}
	return reg
}

func (s stubSet) config(start, stop float64) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Time = config.TimeConfig{Start: start, Stop: stop}
	for _, name := range s.names {
		cfg.Engines = append(cfg.Engines, config.EngineSpec{Name: name, Reference: "stub-" + name})
	}
	return cfg
}

// memSink keeps every appended snapshot in memory.
type memSink struct {
	inits  int
	closed int
	vars   []storage.Descriptor
	attrs  map[string]string
	rows   []storage.Snapshot
	index  []int
}

func (m *memSink) Init(_ map[string]int, vars []storage.Descriptor, attrs map[string]string) error {
	m.inits++
	m.vars = vars
	m.attrs = attrs
	return nil
}

func (m *memSink) Append(index int, snap storage.Snapshot) error {
	m.index = append(m.index, index)
	m.rows = append(m.rows, snap)
	return nil
}

func (m *memSink) Close() error {
	m.closed++
	return nil
}

func (m *memSink) times() []float64 {
	out := make([]float64, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Time
	}
	return out
}
