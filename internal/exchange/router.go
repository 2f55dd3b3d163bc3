package exchange

import (
	"fmt"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

// Rule copies From into To just before To's engine is stepped.
type Rule struct {
	From dynamo.QualifiedName
	To   dynamo.QualifiedName
}

func (r Rule) String() string {
	return r.From.String() + " -> " + r.To.String()
}

// Endpoint is the variable access the router needs from an engine.
type Endpoint interface {
	GetVar(name string) (dynamo.Value, error)
	SetVar(name string, value dynamo.Value) error
}

// Router applies exchange rules per destination engine. Rules are indexed
// by destination once; declaration order is kept, so when several rules
// write the same variable the last one wins.
type Router struct {
	endpoints map[string]Endpoint
	byDest    map[string][]Rule
	count     int
}

func NewRouter(rules []Rule, endpoints map[string]Endpoint) (*Router, error) {
	r := &Router{
		endpoints: endpoints,
		byDest:    make(map[string][]Rule),
		count:     len(rules),
	}
	for _, rule := range rules {
		for _, q := range []dynamo.QualifiedName{rule.From, rule.To} {
			if _, ok := endpoints[q.Engine]; !ok {
				return nil, &dynamo.Error{
					Kind:   dynamo.KindConfig,
					Engine: q.Engine,
					Var:    q.Var,
					Err:    fmt.Errorf("%w in exchange rule %s", dynamo.ErrUnknownEngine, rule),
				}
			}
		}
		r.byDest[rule.To.Engine] = append(r.byDest[rule.To.Engine], rule)
	}
	return r, nil
}

// Rules returns the rules writing into dest in evaluation order.
func (r *Router) Rules(dest string) []Rule {
	return r.byDest[dest]
}

func (r *Router) Len() int { return r.count }

// Apply runs every rule targeting dest. A failing rule is skipped and
// reported; the remaining rules still run.
func (r *Router) Apply(dest string, t float64) []error {
	var errs []error
	for _, rule := range r.byDest[dest] {
		if err := r.copy(rule); err != nil {
			errs = append(errs, &dynamo.Error{
				Kind:   dynamo.KindExchange,
				Engine: rule.To.Engine,
				Var:    rule.To.Var,
				Time:   t,
				Err:    err,
			})
		}
	}
	return errs
}

func (r *Router) copy(rule Rule) error {
	v, err := r.endpoints[rule.From.Engine].GetVar(rule.From.Var)
	if err != nil {
		return fmt.Errorf("read %s: %w", rule.From, err)
	}
	if err := r.endpoints[rule.To.Engine].SetVar(rule.To.Var, v); err != nil {
		return fmt.Errorf("write %s: %w", rule.To, err)
	}
	return nil
}
