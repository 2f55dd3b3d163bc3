package dynamo

import (
	"fmt"
	"strings"
)

// QualifiedName identifies a variable on one engine.
type QualifiedName struct {
	Engine string `json:"engine" yaml:"engine"`
	Var    string `json:"var" yaml:"var"`
}

func (q QualifiedName) String() string {
	return q.Engine + "." + q.Var
}

func (q QualifiedName) IsZero() bool {
	return q.Engine == "" && q.Var == ""
}

// SplitName separates "engine.var" at the first dot. Unqualified names come
// back with an empty engine.
func SplitName(name string) (QualifiedName, bool) {
	engine, v, ok := strings.Cut(name, ".")
	if !ok {
		return QualifiedName{Var: name}, false
	}
	return QualifiedName{Engine: engine, Var: v}, true
}

// Resolver maps variable names crossing the coordinator boundary onto
// engines. It is built once when the configuration is loaded.
type Resolver struct {
	engines  map[string]bool
	defaults map[string]string
}

func NewResolver(engines []string, defaults map[string]string) (*Resolver, error) {
	r := &Resolver{
		engines:  make(map[string]bool, len(engines)),
		defaults: make(map[string]string, len(defaults)),
	}
	for _, e := range engines {
		r.engines[e] = true
	}
	for v, e := range defaults {
		if !r.engines[e] {
			return nil, &Error{
				Kind:   KindConfig,
				Engine: e,
				Var:    v,
				Err:    fmt.Errorf("%w: default engine for %q", ErrUnknownEngine, v),
			}
		}
		r.defaults[v] = e
	}
	return r, nil
}

// Resolve qualifies name. A qualified name must reference a known engine; an
// unqualified one must be present in the default-engine table.
func (r *Resolver) Resolve(name string) (QualifiedName, error) {
	if name == "" {
		return QualifiedName{}, &Error{Kind: KindConfig, Err: ErrEmptyName}
	}
	q, qualified := SplitName(name)
	if qualified {
		if q.Var == "" {
			return q, &Error{Kind: KindConfig, Engine: q.Engine, Err: ErrEmptyName}
		}
		if r.engines[q.Engine] {
			return q, nil
		}
		// "a.b" may still be an unqualified name with a dot in it.
		if e, ok := r.defaults[name]; ok {
			return QualifiedName{Engine: e, Var: name}, nil
		}
		return q, &Error{Kind: KindConfig, Engine: q.Engine, Var: q.Var, Err: ErrUnknownEngine}
	}
	if e, ok := r.defaults[name]; ok {
		return QualifiedName{Engine: e, Var: name}, nil
	}
	return q, &Error{Kind: KindUnknownVariable, Var: name, Err: ErrUnknownVar}
}

func (r *Resolver) ResolveAll(names []string) ([]QualifiedName, error) {
	out := make([]QualifiedName, 0, len(names))
	for _, n := range names {
		q, err := r.Resolve(n)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
