package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

const (
	DefaultMaxSubsteps      = 100000
	DefaultMaxStalledRounds = 10
	DefaultCheckpointStore  = "file://.dyncouple/checkpoints"
	DefaultDataDir          = ".dyncouple/runs"
)

// Config is the parsed coupling document. It is read-only once Load has
// returned.
type Config struct {
	Time        TimeConfig                              `yaml:"time"`
	Engines     EngineSet                               `yaml:"engines"`
	Exchange    []ExchangeRule                          `yaml:"exchange,omitempty"`
	Regimes     map[string]map[string]map[string]float64 `yaml:"regimes,omitempty"`
	Scenario    Scenario                                `yaml:"scenario,omitempty"`
	Defaults    map[string]string                       `yaml:"defaults,omitempty"`
	Restart     RestartConfig                           `yaml:"restart,omitempty"`
	Output      OutputConfig                            `yaml:"output,omitempty"`
	Coordinator CoordinatorConfig                       `yaml:"coordinator,omitempty"`

	// Legacy key layout.
	Models EngineSet     `yaml:"models,omitempty"`
	NetCDF *OutputConfig `yaml:"netcdf,omitempty"`

	dir      string
	resolver *dynamo.Resolver
}

type TimeConfig struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
}

type RestartConfig struct {
	CheckpointTimes []float64 `yaml:"checkpoint_times,omitempty"`
	Variables       []string  `yaml:"variables,omitempty"`
	Backup          bool      `yaml:"backup,omitempty"`
	Store           string    `yaml:"store,omitempty"`

	Resolved []dynamo.QualifiedName `yaml:"-"`
}

type OutputConfig struct {
	Target              string            `yaml:"target,omitempty"`
	Variables           []string          `yaml:"variables,omitempty"`
	Attributes          map[string]string `yaml:"attributes,omitempty"`
	CoordinateReference string            `yaml:"coordinate_reference,omitempty"`
	Interval            float64           `yaml:"interval,omitempty"`

	Resolved []dynamo.QualifiedName `yaml:"-"`
}

type CoordinatorConfig struct {
	MaxSubsteps      int `yaml:"max_substeps,omitempty"`
	MaxStalledRounds int `yaml:"max_stalled_rounds,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Restart: RestartConfig{Store: DefaultCheckpointStore},
		Coordinator: CoordinatorConfig{
			MaxSubsteps:      DefaultMaxSubsteps,
			MaxStalledRounds: DefaultMaxStalledRounds,
		},
	}
}

// Load reads, normalizes and validates a coupling document. YAML and JSON
// documents are both accepted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErr(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a document without validating it.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, configErr(err)
	}
	cfg.normalize()
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) normalize() {
	if len(c.Engines) == 0 && len(c.Models) > 0 {
		c.Engines = c.Models
	}
	c.Models = nil
	if c.NetCDF != nil && c.Output.Target == "" && len(c.Output.Variables) == 0 {
		c.Output = *c.NetCDF
	}
	c.NetCDF = nil
	if c.Restart.Store == "" {
		c.Restart.Store = DefaultCheckpointStore
	}
	if c.Coordinator.MaxSubsteps <= 0 {
		c.Coordinator.MaxSubsteps = DefaultMaxSubsteps
	}
	if c.Coordinator.MaxStalledRounds <= 0 {
		c.Coordinator.MaxStalledRounds = DefaultMaxStalledRounds
	}
}

// SetDir sets the directory relative engine paths are resolved against.
func (c *Config) SetDir(dir string) { c.dir = dir }

func (c *Config) Dir() string { return c.dir }

// Resolver returns the variable-name resolver built during validation.
func (c *Config) Resolver() *dynamo.Resolver { return c.resolver }

// EngineConfigPath returns the sub-configuration path handed to an engine's
// Initialize. Relative paths resolve against engine_path, then against the
// coupling document's directory.
func (c *Config) EngineConfigPath(e EngineSpec) string {
	if e.ConfigFile == "" || filepath.IsAbs(e.ConfigFile) {
		return e.ConfigFile
	}
	base := c.dir
	if e.EnginePath != "" {
		if filepath.IsAbs(e.EnginePath) {
			base = e.EnginePath
		} else {
			base = filepath.Join(c.dir, e.EnginePath)
		}
	}
	return filepath.Join(base, e.ConfigFile)
}

// OutputTarget resolves the output target against the document directory.
func (c *Config) OutputTarget() string {
	if c.Output.Target == "" || filepath.IsAbs(c.Output.Target) {
		return c.Output.Target
	}
	return filepath.Join(c.dir, c.Output.Target)
}

func configErr(err error) error {
	return &dynamo.Error{Kind: dynamo.KindConfig, Err: err}
}

func configErrf(format string, args ...any) error {
	return configErr(fmt.Errorf(format, args...))
}
