package regime

import (
	"log/slog"
	"sort"

	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/telemetry"
)

// Regimes maps regime -> engine -> parameter -> value.
type Regimes map[string]map[string]map[string]float64

// Setter is the parameter access the controller needs from an engine.
type Setter interface {
	SetVar(name string, value dynamo.Value) error
}

// Controller applies the parameter set of whichever regime the scenario
// makes active at a given time.
type Controller struct {
	spans    []config.Span
	regimes  Regimes
	engines  map[string]Setter
	logger   *slog.Logger
	active   string
	overrun  bool
	switches int
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(spans []config.Span, regimes Regimes, engines map[string]Setter, opts ...Option) *Controller {
	c := &Controller{
		spans:   spans,
		regimes: regimes,
		engines: engines,
		logger:  telemetry.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active is the regime applied by the last Update, or "" before the first.
func (c *Controller) Active() string { return c.active }

// Switches counts regime changes applied so far.
func (c *Controller) Switches() int { return c.switches }

// Resolve returns the regime active at t: the entry with the greatest start
// not after t. Before the first entry the first regime applies. past is set
// once t reaches the end of the last span.
func (c *Controller) Resolve(t float64) (name string, past bool) {
	if len(c.spans) == 0 {
		return "", false
	}
	i := sort.Search(len(c.spans), func(i int) bool { return c.spans[i].Start > t }) - 1
	if i < 0 {
		i = 0
	}
	last := c.spans[len(c.spans)-1]
	return c.spans[i].Regime, i == len(c.spans)-1 && t >= last.End
}

// Update switches to the regime active at t. Parameter writes that fail are
// returned tagged as regime errors; the rest are still applied.
func (c *Controller) Update(t float64) []error {
	name, past := c.Resolve(t)
	if name == "" {
		return nil
	}

	if past && !c.overrun {
		c.logger.Warn("simulation time beyond scenario, keeping last regime",
			telemetry.Regime(name), telemetry.Time(t))
	}
	c.overrun = past

	if name == c.active {
		return nil
	}

	c.logger.Info("regime change",
		telemetry.Regime(name), slog.String("previous", c.active), telemetry.Time(t))
	c.active = name
	c.switches++
	return c.apply(name, t)
}

func (c *Controller) apply(name string, t float64) []error {
	params := c.regimes[name]
	var errs []error
	for _, engine := range sortedKeys(params) {
		target, ok := c.engines[engine]
		if !ok {
			errs = append(errs, &dynamo.Error{
				Kind: dynamo.KindRegime, Engine: engine, Time: t, Err: dynamo.ErrUnknownEngine,
			})
			continue
		}
		values := params[engine]
		for _, p := range sortedKeys(values) {
			if err := target.SetVar(p, dynamo.Scalar(values[p])); err != nil {
				errs = append(errs, &dynamo.Error{
					Kind: dynamo.KindRegime, Engine: engine, Var: p, Time: t, Err: err,
				})
			}
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
