package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

var (
	ErrInvalidTime     = errors.New("time.stop must be greater than time.start")
	ErrNoEngines       = errors.New("no engines configured")
	ErrEngineReference = errors.New("engine reference is required")
	ErrDuplicateEngine = errors.New("duplicate engine")
	ErrSelfExchange    = errors.New("exchange rule copies an engine onto itself")
	ErrUnknownRegime   = errors.New("scenario references unknown regime")
	ErrScenarioMixed   = errors.New("scenario mixes absolute times and durations")
	ErrScenarioEntry   = errors.New("scenario entry needs a time or a duration")
	ErrScenarioOrder   = errors.New("scenario entries must be strictly increasing")
	ErrScenarioStart   = errors.New("first scenario entry must not start after time.start")
	ErrCheckpointTimes = errors.New("checkpoint times must be strictly increasing")
	ErrOutputInterval  = errors.New("output interval must not be negative")
)

// Validate checks the document and resolves every variable name crossing the
// coordinator boundary. It is called by Load; callers building a Config in
// code must call it themselves.
func (c *Config) Validate() error {
	c.normalize()

	if c.Time.Stop <= c.Time.Start {
		return configErrf("%w: start=%g stop=%g", ErrInvalidTime, c.Time.Start, c.Time.Stop)
	}
	if len(c.Engines) == 0 {
		return configErr(ErrNoEngines)
	}

	seen := make(map[string]bool, len(c.Engines))
	for _, e := range c.Engines {
		if e.Name == "" {
			return configErrf("engine with empty name")
		}
		if seen[e.Name] {
			return &dynamo.Error{Kind: dynamo.KindConfig, Engine: e.Name, Err: ErrDuplicateEngine}
		}
		seen[e.Name] = true
		if e.Reference == "" {
			return &dynamo.Error{Kind: dynamo.KindConfig, Engine: e.Name, Err: ErrEngineReference}
		}
	}

	resolver, err := dynamo.NewResolver(c.Engines.Names(), c.Defaults)
	if err != nil {
		return err
	}
	c.resolver = resolver

	for i := range c.Exchange {
		if err := c.resolveRule(&c.Exchange[i]); err != nil {
			return err
		}
	}

	if err := c.validateRegimes(seen); err != nil {
		return err
	}

	if err := c.validateRestart(); err != nil {
		return err
	}

	if c.Output.Interval < 0 {
		return configErrf("%w: %g", ErrOutputInterval, c.Output.Interval)
	}
	if c.Output.Resolved, err = resolver.ResolveAll(c.Output.Variables); err != nil {
		return err
	}

	return nil
}

func (c *Config) resolveRule(r *ExchangeRule) error {
	from, err := c.resolver.Resolve(r.fromText())
	if err != nil {
		return err
	}
	to, err := c.resolver.Resolve(r.toText())
	if err != nil {
		return err
	}
	if from.Engine == to.Engine {
		return &dynamo.Error{Kind: dynamo.KindConfig, Engine: from.Engine, Err: ErrSelfExchange}
	}
	r.From, r.To = from, to
	return nil
}

func (c *Config) validateRegimes(engines map[string]bool) error {
	for _, name := range c.RegimeNames() {
		for engine := range c.Regimes[name] {
			if !engines[engine] {
				return &dynamo.Error{
					Kind:   dynamo.KindConfig,
					Engine: engine,
					Err:    fmt.Errorf("%w in regime %q", dynamo.ErrUnknownEngine, name),
				}
			}
		}
	}

	spans, err := c.Scenario.Spans(c.Time.Start, c.Time.Stop)
	if err != nil {
		return configErr(err)
	}
	for _, s := range spans {
		if _, ok := c.Regimes[s.Regime]; !ok {
			return configErrf("%w: %q", ErrUnknownRegime, s.Regime)
		}
	}
	return nil
}

func (c *Config) validateRestart() error {
	times := c.Restart.CheckpointTimes
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return configErrf("%w: %v", ErrCheckpointTimes, times)
		}
	}
	resolved, err := c.resolver.ResolveAll(c.Restart.Variables)
	if err != nil {
		return err
	}
	c.Restart.Resolved = resolved
	return nil
}

// Spans returns the normalized scenario. Only valid after Validate.
func (c *Config) Spans() []Span {
	spans, _ := c.Scenario.Spans(c.Time.Start, c.Time.Stop)
	return spans
}

func (c *Config) RegimeNames() []string {
	names := make([]string, 0, len(c.Regimes))
	for name := range c.Regimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
