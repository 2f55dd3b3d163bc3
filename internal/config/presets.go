package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Preset is a ready-made coupling: the document plus the engine
// sub-configuration files it references.
type Preset struct {
	Description string
	Config      func() *Config
	Files       map[string]string
}

var Presets = map[string]Preset{
	"calm-storm": {
		Description: "fast oscillator forcing a slow relaxation, storm regime after t=50",
		Config: func() *Config {
			cfg := DefaultConfig()
			cfg.Time = TimeConfig{Start: 0, Stop: 120}
			cfg.Engines = EngineSet{
				{Name: "waves", Reference: "spring_mass", ConfigFile: "waves.yaml"},
				{Name: "dunes", Reference: "relaxation", ConfigFile: "dunes.yaml"},
			}
			cfg.Exchange = []ExchangeRule{
				{FromName: "waves.pos", ToName: "dunes.target"},
				{FromName: "dunes.x", ToName: "waves.force"},
			}
			cfg.Regimes = map[string]map[string]map[string]float64{
				"calm":  {"waves": {"stiffness": 4, "damping": 0.2}},
				"storm": {"waves": {"stiffness": 16, "damping": 0.05}, "dunes": {"tau": 2}},
			}
			cfg.Scenario = Scenario{At(0, "calm"), At(50, "storm")}
			cfg.Restart = RestartConfig{
				CheckpointTimes: []float64{60},
				Variables:       []string{"waves.pos", "waves.vel", "dunes.x"},
				Store:           DefaultCheckpointStore,
			}
			cfg.Output = OutputConfig{
				Target:     DefaultDataDir,
				Variables:  []string{"waves.pos", "dunes.x"},
				Attributes: map[string]string{"title": "calm-storm coupling"},
				Interval:   1,
			}
			return cfg
		},
		Files: map[string]string{
			"waves.yaml": "dt: 0.05\nintegrator: rk4\nstate: {pos: 1.0, vel: 0.0}\n",
			"dunes.yaml": "dt: 1.0\nintegrator: euler\nparams: {tau: 20}\n",
		},
	},
	"pendulum-pair": {
		Description: "two pendulums with different steps coupled through torque",
		Config: func() *Config {
			cfg := DefaultConfig()
			cfg.Time = TimeConfig{Start: 0, Stop: 30}
			cfg.Engines = EngineSet{
				{Name: "left", Reference: "pendulum", ConfigFile: "left.yaml"},
				{Name: "right", Reference: "pendulum", ConfigFile: "right.yaml"},
			}
			cfg.Exchange = []ExchangeRule{
				{FromEngine: "left", FromVar: "theta", ToEngine: "right", ToVar: "torque"},
				{FromEngine: "right", FromVar: "theta", ToEngine: "left", ToVar: "torque"},
			}
			cfg.Output = OutputConfig{
				Target:    DefaultDataDir,
				Variables: []string{"left.theta", "right.theta"},
				Interval:  0.1,
			}
			return cfg
		},
		Files: map[string]string{
			"left.yaml":  "dt: 0.01\nstate: {theta: 0.8}\n",
			"right.yaml": "dt: 0.025\nstate: {theta: 0.0}\nparams: {length: 1.5}\n",
		},
	},
	"lorenz-driven": {
		Description: "chaotic lorenz signal driving a damped oscillator, duration-based scenario",
		Config: func() *Config {
			cfg := DefaultConfig()
			cfg.Time = TimeConfig{Start: 0, Stop: 40}
			cfg.Engines = EngineSet{
				{Name: "driver", Reference: "lorenz", ConfigFile: "driver.yaml"},
				{Name: "body", Reference: "spring_mass", ConfigFile: "body.yaml"},
			}
			cfg.Defaults = map[string]string{"x": "driver", "pos": "body"}
			cfg.Exchange = []ExchangeRule{{FromName: "x", ToName: "body.force"}}
			cfg.Regimes = map[string]map[string]map[string]float64{
				"laminar": {"driver": {"rho": 14}},
				"chaotic": {"driver": {"rho": 28}},
			}
			cfg.Scenario = Scenario{For(20, "laminar"), For(20, "chaotic")}
			cfg.Output = OutputConfig{
				Target:    DefaultDataDir,
				Variables: []string{"x", "pos"},
				Interval:  0.5,
			}
			return cfg
		},
		Files: map[string]string{
			"driver.yaml": "dt: 0.005\n",
			"body.yaml":   "dt: 0.02\nstate: {pos: 0}\n",
		},
	},
}

func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WritePreset writes the coupling document as coupling.yaml together with
// the preset's engine files into dir, and returns the document path.
func WritePreset(name, dir string) (string, error) {
	p, ok := GetPreset(name)
	if !ok {
		return "", fmt.Errorf("unknown preset: %s (available: %v)", name, ListPresets())
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	for file, content := range p.Files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0644); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, "coupling.yaml")
	if err := Save(path, p.Config()); err != nil {
		return "", err
	}
	return path, nil
}
