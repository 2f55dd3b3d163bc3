package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

// EngineSpec describes one engine. Reference selects the implementation.
type EngineSpec struct {
	Name       string `yaml:"-"`
	Reference  string `yaml:"engine"`
	EnginePath string `yaml:"engine_path,omitempty"`
	ConfigFile string `yaml:"configfile,omitempty"`
}

// EngineSet keeps engines in document order, which is the registration
// order used to break selection ties.
type EngineSet []EngineSpec

func (s *EngineSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: engines must be a mapping", node.Line)
	}
	out := make(EngineSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var spec struct {
			EngineSpec `yaml:",inline"`
			Alias      string `yaml:"engine_reference"`
		}
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return err
		}
		e := spec.EngineSpec
		if e.Reference == "" {
			e.Reference = spec.Alias
		}
		e.Name = node.Content[i].Value
		out = append(out, e)
	}
	*s = out
	return nil
}

func (s EngineSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range s {
		val := &yaml.Node{}
		if err := val.Encode(e); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Name}, val)
	}
	return node, nil
}

func (s EngineSet) Names() []string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.Name
	}
	return names
}

func (s EngineSet) Get(name string) (EngineSpec, bool) {
	for _, e := range s {
		if e.Name == name {
			return e, true
		}
	}
	return EngineSpec{}, false
}

// ExchangeRule copies From into To just before To's engine is stepped. The
// document may use the qualified form (from/to), the legacy var_from/var_to
// keys or the explicit four-field form.
type ExchangeRule struct {
	FromName   string `yaml:"from,omitempty"`
	ToName     string `yaml:"to,omitempty"`
	FromEngine string `yaml:"from_engine,omitempty"`
	FromVar    string `yaml:"from_var,omitempty"`
	ToEngine   string `yaml:"to_engine,omitempty"`
	ToVar      string `yaml:"to_var,omitempty"`
	VarFrom    string `yaml:"var_from,omitempty"`
	VarTo      string `yaml:"var_to,omitempty"`

	From dynamo.QualifiedName `yaml:"-"`
	To   dynamo.QualifiedName `yaml:"-"`
}

func (r ExchangeRule) fromText() string {
	switch {
	case r.FromEngine != "" || r.FromVar != "":
		return r.FromEngine + "." + r.FromVar
	case r.VarFrom != "":
		return r.VarFrom
	default:
		return r.FromName
	}
}

func (r ExchangeRule) toText() string {
	switch {
	case r.ToEngine != "" || r.ToVar != "":
		return r.ToEngine + "." + r.ToVar
	case r.VarTo != "":
		return r.VarTo
	default:
		return r.ToName
	}
}

func (r ExchangeRule) String() string {
	return r.From.String() + " -> " + r.To.String()
}

// ScenarioEntry assigns a regime from either an absolute start time or a
// duration following the previous entry.
type ScenarioEntry struct {
	Time     *float64 `yaml:"time,omitempty"`
	Duration *float64 `yaml:"duration,omitempty"`
	Regime   string   `yaml:"regime"`
}

// UnmarshalYAML also accepts the pair form [time, regime].
func (e *ScenarioEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: scenario pair must be [time, regime]", node.Line)
		}
		var t float64
		if err := node.Content[0].Decode(&t); err != nil {
			return err
		}
		e.Time = &t
		return node.Content[1].Decode(&e.Regime)
	}
	type plain ScenarioEntry
	return node.Decode((*plain)(e))
}

func At(t float64, regime string) ScenarioEntry {
	return ScenarioEntry{Time: &t, Regime: regime}
}

func For(d float64, regime string) ScenarioEntry {
	return ScenarioEntry{Duration: &d, Regime: regime}
}

type Scenario []ScenarioEntry

// Span is a normalized scenario entry: Regime is active on [Start, End).
type Span struct {
	Start  float64
	End    float64
	Regime string
}

// Spans normalizes the scenario into absolute spans. Absolute entries run
// until the next entry and the last one until stop; duration entries are
// laid end to end from start.
func (s Scenario) Spans(start, stop float64) ([]Span, error) {
	if len(s) == 0 {
		return nil, nil
	}
	absolute := s[0].Time != nil
	spans := make([]Span, len(s))

	cursor := start
	for i, e := range s {
		switch {
		case e.Time != nil && e.Duration != nil:
			return nil, fmt.Errorf("%w: entry %d sets both time and duration", ErrScenarioMixed, i)
		case e.Time == nil && e.Duration == nil:
			return nil, fmt.Errorf("%w: entry %d", ErrScenarioEntry, i)
		case (e.Time != nil) != absolute:
			return nil, fmt.Errorf("%w: entry %d", ErrScenarioMixed, i)
		}

		if absolute {
			spans[i].Start = *e.Time
			if i > 0 {
				if spans[i].Start <= spans[i-1].Start {
					return nil, fmt.Errorf("%w: entry %d at %g", ErrScenarioOrder, i, spans[i].Start)
				}
				spans[i-1].End = spans[i].Start
			}
		} else {
			if *e.Duration <= 0 {
				return nil, fmt.Errorf("%w: entry %d duration %g", ErrScenarioOrder, i, *e.Duration)
			}
			spans[i].Start = cursor
			cursor += *e.Duration
			spans[i].End = cursor
		}
		spans[i].Regime = e.Regime
	}

	if absolute {
		last := &spans[len(spans)-1]
		last.End = stop
		if last.End < last.Start {
			last.End = last.Start
		}
		if spans[0].Start > start {
			return nil, fmt.Errorf("%w: first entry at %g, start %g", ErrScenarioStart, spans[0].Start, start)
		}
	}
	return spans, nil
}
