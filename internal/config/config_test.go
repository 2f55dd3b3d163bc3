package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/dynamo"
)

const coupling = `
time: {start: 0, stop: 3600}
engines:
  xbeach: {engine: spring_mass, configfile: params.yaml}
  aeolis: {engine: relaxation, engine_path: lib, configfile: aeolis.yaml}
defaults:
  zb: aeolis
exchange:
  - {from: xbeach.pos, to: aeolis.target}
  - {from_engine: aeolis, from_var: x, to_engine: xbeach, to_var: force}
  - {var_from: zb, var_to: xbeach.damping}
regimes:
  calm: {xbeach: {stiffness: 1}}
  storm: {xbeach: {stiffness: 8}, aeolis: {tau: 2}}
scenario:
  - [0, calm]
  - {time: 100, regime: storm}
restart:
  checkpoint_times: [500, 1000]
  variables: [xbeach.pos, zb]
  backup: true
output:
  target: out
  variables: [xbeach.pos]
  attributes: {title: test}
  interval: 60
`

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coupling.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeDoc(t, coupling)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"xbeach", "aeolis"}, cfg.Engines.Names())
	assert.Equal(t, 3600.0, cfg.Time.Stop)

	require.Len(t, cfg.Exchange, 3)
	assert.Equal(t, dynamo.QualifiedName{Engine: "xbeach", Var: "pos"}, cfg.Exchange[0].From)
	assert.Equal(t, dynamo.QualifiedName{Engine: "aeolis", Var: "target"}, cfg.Exchange[0].To)
	assert.Equal(t, dynamo.QualifiedName{Engine: "aeolis", Var: "x"}, cfg.Exchange[1].From)
	assert.Equal(t, dynamo.QualifiedName{Engine: "aeolis", Var: "zb"}, cfg.Exchange[2].From)

	assert.Equal(t, []dynamo.QualifiedName{
		{Engine: "xbeach", Var: "pos"},
		{Engine: "aeolis", Var: "zb"},
	}, cfg.Restart.Resolved)
	assert.True(t, cfg.Restart.Backup)
	assert.Equal(t, config.DefaultCheckpointStore, cfg.Restart.Store)

	spans := cfg.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, config.Span{Start: 0, End: 100, Regime: "calm"}, spans[0])
	assert.Equal(t, config.Span{Start: 100, End: 3600, Regime: "storm"}, spans[1])

	dir := filepath.Dir(path)
	xbeach, _ := cfg.Engines.Get("xbeach")
	aeolis, _ := cfg.Engines.Get("aeolis")
	assert.Equal(t, filepath.Join(dir, "params.yaml"), cfg.EngineConfigPath(xbeach))
	assert.Equal(t, filepath.Join(dir, "lib", "aeolis.yaml"), cfg.EngineConfigPath(aeolis))
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputTarget())
}

func TestLoadJSONLegacyKeys(t *testing.T) {
	doc := `{
		"time": {"start": 0, "stop": 10},
		"models": {
			"xbeach": {"engine": "spring_mass", "engine_path": "", "configfile": ""},
			"aeolis": {"engine_reference": "relaxation"}
		},
		"exchange": [{"var_from": "xbeach.pos", "var_to": "aeolis.target"}],
		"netcdf": {"target": "out", "variables": ["aeolis.x"]}
	}`
	cfg, err := config.Load(writeDoc(t, doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"xbeach", "aeolis"}, cfg.Engines.Names())
	aeolis, _ := cfg.Engines.Get("aeolis")
	assert.Equal(t, "relaxation", aeolis.Reference)
	assert.Equal(t, "out", cfg.Output.Target)
	assert.Equal(t, []dynamo.QualifiedName{{Engine: "aeolis", Var: "x"}}, cfg.Output.Resolved)
}

func TestDurationScenario(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Time = config.TimeConfig{Start: 10, Stop: 100}
	cfg.Engines = config.EngineSet{{Name: "a", Reference: "pendulum"}}
	cfg.Regimes = map[string]map[string]map[string]float64{"calm": {}, "storm": {}}
	cfg.Scenario = config.Scenario{config.For(30, "calm"), config.For(20, "storm")}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []config.Span{
		{Start: 10, End: 40, Regime: "calm"},
		{Start: 40, End: 60, Regime: "storm"},
	}, cfg.Spans())
}

func TestValidationErrors(t *testing.T) {
	base := func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.Time = config.TimeConfig{Start: 0, Stop: 100}
		cfg.Engines = config.EngineSet{
			{Name: "a", Reference: "spring_mass"},
			{Name: "b", Reference: "relaxation"},
		}
		cfg.Regimes = map[string]map[string]map[string]float64{"calm": {"a": {"k": 1}}}
		return cfg
	}

	tests := []struct {
		name string
		mod  func(*config.Config)
		is   error
		kind dynamo.Kind
	}{
		{
			name: "stop before start",
			mod:  func(c *config.Config) { c.Time.Stop = -1 },
			is:   config.ErrInvalidTime,
			kind: dynamo.KindConfig,
		},
		{
			name: "no engines",
			mod:  func(c *config.Config) { c.Engines = nil },
			is:   config.ErrNoEngines,
			kind: dynamo.KindConfig,
		},
		{
			name: "missing reference",
			mod:  func(c *config.Config) { c.Engines[1].Reference = "" },
			is:   config.ErrEngineReference,
			kind: dynamo.KindConfig,
		},
		{
			name: "duplicate engine",
			mod:  func(c *config.Config) { c.Engines[1].Name = "a" },
			is:   config.ErrDuplicateEngine,
			kind: dynamo.KindConfig,
		},
		{
			name: "exchange unknown engine",
			mod: func(c *config.Config) {
				c.Exchange = []config.ExchangeRule{{FromName: "c.x", ToName: "a.force"}}
			},
			is:   dynamo.ErrUnknownEngine,
			kind: dynamo.KindConfig,
		},
		{
			name: "exchange ambiguous name",
			mod: func(c *config.Config) {
				c.Exchange = []config.ExchangeRule{{FromName: "x", ToName: "a.force"}}
			},
			is:   dynamo.ErrUnknownVar,
			kind: dynamo.KindUnknownVariable,
		},
		{
			name: "self exchange",
			mod: func(c *config.Config) {
				c.Exchange = []config.ExchangeRule{{FromName: "a.pos", ToName: "a.force"}}
			},
			is:   config.ErrSelfExchange,
			kind: dynamo.KindConfig,
		},
		{
			name: "unknown regime",
			mod:  func(c *config.Config) { c.Scenario = config.Scenario{config.At(0, "storm")} },
			is:   config.ErrUnknownRegime,
			kind: dynamo.KindConfig,
		},
		{
			name: "regime unknown engine",
			mod: func(c *config.Config) {
				c.Regimes["calm"]["zz"] = map[string]float64{"k": 1}
			},
			is:   dynamo.ErrUnknownEngine,
			kind: dynamo.KindConfig,
		},
		{
			name: "scenario starts late",
			mod:  func(c *config.Config) { c.Scenario = config.Scenario{config.At(5, "calm")} },
			is:   config.ErrScenarioStart,
			kind: dynamo.KindConfig,
		},
		{
			name: "scenario out of order",
			mod: func(c *config.Config) {
				c.Scenario = config.Scenario{config.At(0, "calm"), config.At(0, "calm")}
			},
			is:   config.ErrScenarioOrder,
			kind: dynamo.KindConfig,
		},
		{
			name: "scenario mixed",
			mod: func(c *config.Config) {
				c.Scenario = config.Scenario{config.At(0, "calm"), config.For(10, "calm")}
			},
			is:   config.ErrScenarioMixed,
			kind: dynamo.KindConfig,
		},
		{
			name: "checkpoint times unsorted",
			mod:  func(c *config.Config) { c.Restart.CheckpointTimes = []float64{50, 10} },
			is:   config.ErrCheckpointTimes,
			kind: dynamo.KindConfig,
		},
		{
			name: "restart variable unresolved",
			mod:  func(c *config.Config) { c.Restart.Variables = []string{"pos"} },
			is:   dynamo.ErrUnknownVar,
			kind: dynamo.KindUnknownVariable,
		},
		{
			name: "negative output interval",
			mod:  func(c *config.Config) { c.Output.Interval = -1 },
			is:   config.ErrOutputInterval,
			kind: dynamo.KindConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mod(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
			assert.Equal(t, tt.kind, dynamo.KindOf(err))
			assert.True(t, dynamo.IsFatal(err))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, dynamo.KindConfig, dynamo.KindOf(err))
}

func TestPresetsLoad(t *testing.T) {
	for _, name := range config.ListPresets() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path, err := config.WritePreset(name, dir)
			require.NoError(t, err)

			cfg, err := config.Load(path)
			require.NoError(t, err)

			p, _ := config.GetPreset(name)
			assert.Equal(t, p.Config().Engines.Names(), cfg.Engines.Names())
			for file := range p.Files {
				assert.FileExists(t, filepath.Join(dir, file))
			}
		})
	}

	_, err := config.WritePreset("nope", t.TempDir())
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	_, err := config.Parse([]byte("engines: [1, 2"))
	assert.Equal(t, dynamo.KindConfig, dynamo.KindOf(err))
}
