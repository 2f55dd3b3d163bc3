package physics

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

func TestODEEngineAutoStep(t *testing.T) {
	e := NewODEEngine(NewSpringMass())
	if err := e.InitializeWith(&EngineConfig{Dt: 0.1, Integrator: "rk4"}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := e.Update(dynamo.AutoStep); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	if math.Abs(e.CurrentTime()-1.0) > 1e-9 {
		t.Errorf("expected t=1.0, got %f", e.CurrentTime())
	}

	if err := e.Update(0.25); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if math.Abs(e.CurrentTime()-1.25) > 1e-9 {
		t.Errorf("expected t=1.25, got %f", e.CurrentTime())
	}
}

func TestODEEngineConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waves.yaml")
	doc := "dt: 0.5\nintegrator: euler\nstart_time: 2\nparams: {stiffness: 4}\nstate: {pos: 0.2}\ninputs: {force: 1.5}\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	e := NewODEEngine(NewSpringMass())
	if err := e.Initialize(path); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	checks := map[string]float64{"pos": 0.2, "force": 1.5, "stiffness": 4}
	for name, want := range checks {
		v, err := e.GetVar(name)
		if err != nil {
			t.Fatalf("GetVar(%s): %v", name, err)
		}
		if v.Float() != want {
			t.Errorf("%s: expected %f, got %f", name, want, v.Float())
		}
	}
	if e.CurrentTime() != 2 {
		t.Errorf("expected start time 2, got %f", e.CurrentTime())
	}
}

func TestODEEngineVars(t *testing.T) {
	e := NewODEEngine(NewPendulum())
	if _, err := e.GetVar("theta"); !errors.Is(err, dynamo.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := e.Initialize(""); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if err := e.SetVar("gravity", dynamo.Scalar(1.62)); err != nil {
		t.Fatalf("set param: %v", err)
	}
	if e.Model().GetParams()["gravity"] != 1.62 {
		t.Error("param not applied")
	}

	if err := e.SetVar("nope", dynamo.Scalar(1)); !errors.Is(err, dynamo.ErrUnknownVar) {
		t.Errorf("expected ErrUnknownVar, got %v", err)
	}
	if err := e.SetVar("theta", dynamo.Value{1, 2}); !errors.Is(err, dynamo.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if err := e.SetVar("theta", dynamo.Scalar(math.NaN())); !errors.Is(err, dynamo.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for NaN, got %v", err)
	}

	names := e.VarNames()
	if len(names) != 7 {
		t.Errorf("expected 7 names, got %v", names)
	}
}

func TestODEEngineFinalize(t *testing.T) {
	e := NewODEEngine(NewRelaxation())
	_ = e.Initialize("")
	if err := e.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if err := e.Finalize(); !errors.Is(err, dynamo.ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
	if err := e.Update(dynamo.AutoStep); !errors.Is(err, dynamo.ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
}

func TestRelaxationApproachesTarget(t *testing.T) {
	e := NewODEEngine(NewRelaxation())
	_ = e.InitializeWith(&EngineConfig{Dt: 0.1, Params: map[string]float64{"tau": 1}, Inputs: map[string]float64{"target": 2}})

	for i := 0; i < 100; i++ {
		_ = e.Update(dynamo.AutoStep)
	}
	x, _ := e.GetVar("x")
	if math.Abs(x.Float()-2) > 1e-3 {
		t.Errorf("expected x ~2, got %f", x.Float())
	}
}

func TestSpringMassEnergyDecays(t *testing.T) {
	m := NewSpringMass()
	e := NewODEEngine(m)
	_ = e.InitializeWith(&EngineConfig{Dt: 0.01})

	e0 := m.Energy(e.x)
	for i := 0; i < 500; i++ {
		_ = e.Update(dynamo.AutoStep)
	}
	if m.Energy(e.x) >= e0 {
		t.Errorf("damped oscillator should lose energy: %f -> %f", e0, m.Energy(e.x))
	}
}

func TestInvalidEngineConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  EngineConfig
	}{
		{"zero dt", EngineConfig{Dt: 0}},
		{"bad integrator", EngineConfig{Dt: 0.1, Integrator: "magic"}},
		{"bad state", EngineConfig{Dt: 0.1, State: map[string]float64{"q": 1}}},
		{"bad param", EngineConfig{Dt: 0.1, Params: map[string]float64{"mass": -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewODEEngine(NewSpringMass())
			if err := e.InitializeWith(&tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestModelsExposeNamedVars(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		input string
		param string
	}{
		{"vanderpol", NewVanDerPol(), "forcing", "mu"},
		{"duffing", NewDuffing(), "force", "gamma"},
		{"rossler", NewRossler(), "forcing", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewODEEngine(tt.model)
			if err := e.InitializeWith(&EngineConfig{Dt: 0.01, Integrator: "rk4"}); err != nil {
				t.Fatalf("init failed: %v", err)
			}
			if err := e.SetVar(tt.input, dynamo.Scalar(0.5)); err != nil {
				t.Fatalf("SetVar(%s): %v", tt.input, err)
			}
			if err := e.SetVar(tt.param, dynamo.Scalar(2)); err != nil {
				t.Fatalf("SetVar(%s): %v", tt.param, err)
			}
			if v, _ := e.GetVar(tt.param); v.Float() != 2 {
				t.Errorf("%s: expected 2, got %f", tt.param, v.Float())
			}
			for i := 0; i < 100; i++ {
				if err := e.Update(dynamo.AutoStep); err != nil {
					t.Fatalf("update failed: %v", err)
				}
			}
			for _, n := range tt.model.StateNames() {
				v, err := e.GetVar(n)
				if err != nil {
					t.Fatalf("GetVar(%s): %v", n, err)
				}
				if !v.IsValid() {
					t.Errorf("%s diverged: %v", n, v)
				}
			}
			if err := tt.model.SetParam("nope", 1); err == nil {
				t.Error("expected error for unknown param")
			}
		})
	}
}
