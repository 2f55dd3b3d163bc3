package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/dyncouple/internal/checkpoint"
	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/engine"
	"github.com/san-kum/dyncouple/internal/exchange"
	"github.com/san-kum/dyncouple/internal/regime"
	"github.com/san-kum/dyncouple/internal/storage"
	"github.com/san-kum/dyncouple/internal/telemetry"
)

var (
	ErrNotStarted    = errors.New("coordinator not started")
	ErrClosed        = errors.New("coordinator closed")
	ErrSubstepLimit  = errors.New("round exceeded max substeps")
	ErrAllEnginesOut = errors.New("every engine failed this round")
)

// Coordinator owns the engines of one coupled run and advances them in
// rounds. It is single-threaded: no method may be called concurrently.
type Coordinator struct {
	cfg     *config.Config
	handles []*engine.Handle
	byID    map[string]*engine.Handle

	router      *exchange.Router
	regimes     *regime.Controller
	checkpoints *checkpoint.Manager
	sink        storage.OutputSink
	observers   []Observer
	logger      *slog.Logger

	t           float64
	iteration   int
	outputIndex int
	lastOutput  float64
	hasOutput   bool
	sinkReady   bool
	stalled     int

	started bool
	closed  bool
}

// New creates the engines named in cfg through reg. Engines are not
// initialized until Start.
func New(cfg *config.Config, reg *engine.Registry, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		cfg:    cfg,
		byID:   make(map[string]*engine.Handle, len(cfg.Engines)),
		sink:   storage.Discard{},
		logger: telemetry.Discard(),
		t:      cfg.Time.Start,
	}
	for _, opt := range opts {
		opt(c)
	}

	for i, spec := range cfg.Engines {
		if !reg.Has(spec.Reference) {
			return nil, &dynamo.Error{
				Kind:   dynamo.KindConfig,
				Engine: spec.Name,
				Err:    fmt.Errorf("unknown engine reference %q (available: %v)", spec.Reference, reg.List()),
			}
		}
		eng, err := reg.Create(spec.Reference, spec.EnginePath)
		if err != nil {
			return nil, &dynamo.Error{Kind: dynamo.KindConfig, Engine: spec.Name, Err: err}
		}
		h := engine.NewHandle(spec.Name, i, eng, cfg.EngineConfigPath(spec))
		c.handles = append(c.handles, h)
		c.byID[spec.Name] = h
	}

	rules := make([]exchange.Rule, len(cfg.Exchange))
	for i, r := range cfg.Exchange {
		rules[i] = exchange.Rule{From: r.From, To: r.To}
	}
	router, err := exchange.NewRouter(rules, c.exchangeEndpoints())
	if err != nil {
		return nil, err
	}
	c.router = router

	setters := make(map[string]regime.Setter, len(c.handles))
	for _, h := range c.handles {
		setters[h.ID] = h
	}
	c.regimes = regime.New(cfg.Spans(), regime.Regimes(cfg.Regimes), setters,
		regime.WithLogger(c.logger))

	return c, nil
}

func (c *Coordinator) exchangeEndpoints() map[string]exchange.Endpoint {
	out := make(map[string]exchange.Endpoint, len(c.handles))
	for _, h := range c.handles {
		out[h.ID] = h
	}
	return out
}

func (c *Coordinator) checkpointEndpoints() map[string]checkpoint.Endpoint {
	out := make(map[string]checkpoint.Endpoint, len(c.handles))
	for _, h := range c.handles {
		out[h.ID] = h
	}
	return out
}

func (c *Coordinator) Time() float64 { return c.t }

func (c *Coordinator) Iteration() int { return c.iteration }

func (c *Coordinator) OutputIndex() int { return c.outputIndex }

// Done reports whether the coordinator clock reached time.stop.
func (c *Coordinator) Done() bool { return c.t >= c.cfg.Time.Stop }

// Handles returns the engines in registration order.
func (c *Coordinator) Handles() []*engine.Handle { return c.handles }

func (c *Coordinator) Handle(id string) (*engine.Handle, bool) {
	h, ok := c.byID[id]
	return h, ok
}

// Observe registers additional observers. It must be called before Run.
func (c *Coordinator) Observe(o ...Observer) {
	c.observers = append(c.observers, o...)
}

// Start initializes every engine in registration order. Engines that report
// a local time other than time.start are moved there when they can be.
// When an engine fails to initialize the ones already up are finalized.
func (c *Coordinator) Start() error {
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}

	for _, h := range c.handles {
		if err := h.Initialize(); err != nil {
			c.logger.Error("engine init failed", telemetry.Engine(h.ID), telemetry.Error(err))
			c.finalizeAll()
			return err
		}
		if h.Time() != c.cfg.Time.Start {
			ok, err := h.Resync(c.cfg.Time.Start)
			switch {
			case err != nil:
				c.finalizeAll()
				return &dynamo.Error{Kind: dynamo.KindEngineInit, Engine: h.ID, Err: err}
			case !ok:
				c.logger.Warn("engine starts off the coordinator clock",
					telemetry.Engine(h.ID), telemetry.Time(h.Time()))
			}
		}
		c.logger.Debug("engine initialized",
			telemetry.Engine(h.ID), telemetry.Time(h.Time()), slog.String("config", h.ConfigFile))
	}

	c.started = true
	c.t = c.cfg.Time.Start
	c.logger.Info("coupled run started",
		slog.Int("engines", len(c.handles)),
		slog.Int("exchange_rules", c.router.Len()),
		telemetry.Time(c.t))
	return nil
}

// Resume restores a checkpoint into the started engines and continues the
// coordinator counters from it. The output of the round that wrote the
// checkpoint is produced again here so the output matches an uninterrupted
// run.
func (c *Coordinator) Resume(rec *checkpoint.Record) error {
	if !c.started {
		return ErrNotStarted
	}
	if c.checkpoints == nil {
		return &dynamo.Error{Kind: dynamo.KindCheckpoint, Err: errors.New("checkpoints not configured")}
	}

	counters, err := c.checkpoints.Restore(rec, c.checkpointEndpoints())
	if err != nil {
		return err
	}
	for _, h := range c.handles {
		h.Refresh()
	}

	c.t = counters.Time
	c.iteration = counters.Iteration
	c.outputIndex = counters.OutputIndex
	c.lastOutput = counters.LastOutput
	c.hasOutput = counters.OutputIndex > 0
	c.stalled = 0

	var report RoundReport
	for _, err := range c.regimes.Update(c.t) {
		if err := c.settle(&report, err); err != nil {
			return err
		}
	}
	_, err = c.output()
	return c.settle(&report, err)
}

// Run executes rounds until time.stop, a fatal error or cancellation of ctx.
// Cancellation is only honoured between rounds. Run does not finalize the
// engines; call Close.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		return err
	}
	if !c.hasOutput {
		_, err := c.output()
		if err := c.settle(&RoundReport{}, err); err != nil {
			return err
		}
	}

	for !c.Done() {
		if err := ctx.Err(); err != nil {
			c.logger.Info("coupled run interrupted",
				telemetry.Time(c.t), telemetry.Round(c.iteration))
			return err
		}
		if _, err := c.Round(ctx); err != nil {
			return err
		}
	}

	c.logger.Info("coupled run finished",
		telemetry.Time(c.t), telemetry.Round(c.iteration), slog.Int("records", c.outputIndex))
	return nil
}

// Round advances every engine to a common horizon. Every failure goes through
// settle: isolated ones end up on the report, the returned error is always
// fatal.
func (c *Coordinator) Round(ctx context.Context) (RoundReport, error) {
	if c.closed {
		return RoundReport{}, ErrClosed
	}
	if !c.started {
		return RoundReport{}, ErrNotStarted
	}

	prev := c.t
	report := RoundReport{Iteration: c.iteration + 1, Stop: c.cfg.Time.Stop}

	for _, err := range c.regimes.Update(c.t) {
		if err := c.settle(&report, err); err != nil {
			return report, err
		}
	}
	report.Regime = c.regimes.Active()

	steps := make(map[string]int, len(c.handles))
	failed := make(map[string]bool)
	target, err := c.synchronize(&report, steps, failed)
	if err != nil {
		return report, err
	}

	sum := 0.0
	for _, h := range c.handles {
		sum += h.Time()
		lag := math.Max(0, target-h.Time())
		report.Engines = append(report.Engines, EngineReport{
			ID:     h.ID,
			Time:   h.Time(),
			Lag:    lag,
			Steps:  steps[h.ID],
			Failed: failed[h.ID],
		})
		if lag > 0 {
			c.logger.Warn("engine lags behind round target",
				telemetry.Engine(h.ID), telemetry.Time(h.Time()), slog.Float64("target", target))
		}
	}

	c.iteration++
	c.t = sum / float64(len(c.handles))
	report.Time = c.t
	report.Target = target

	if c.t > prev {
		c.stalled = 0
	} else {
		c.stalled++
		c.logger.Warn("coordinator time did not advance",
			telemetry.Time(c.t), slog.Int("stalled_rounds", c.stalled))
		if c.stalled >= c.cfg.Coordinator.MaxStalledRounds {
			err := fmt.Errorf("%w: no progress for %d rounds at t=%g", dynamo.ErrStalled, c.stalled, c.t)
			if err := c.settle(&report, err); err != nil {
				return report, err
			}
		}
	}

	if c.checkpoints != nil {
		recs, err := c.checkpoints.Step(ctx, prev, c.counters(), c.checkpointEndpoints())
		for _, r := range recs {
			report.Checkpoints = append(report.Checkpoints, r.Boundary)
		}
		if err := c.settle(&report, err); err != nil {
			return report, err
		}
	}

	wrote, err := c.output()
	if err := c.settle(&report, err); err != nil {
		return report, err
	}
	report.Output = wrote
	report.OutputIndex = c.outputIndex

	c.logger.Debug("round complete",
		telemetry.Round(c.iteration), telemetry.Time(c.t),
		slog.Float64("target", target), slog.Int("selections", len(report.Selections)))

	for _, o := range c.observers {
		o.OnRound(report)
	}
	return report, nil
}

// synchronize runs the selection loop of one round and returns the round
// target. The engine furthest behind is stepped next, ties going to the
// earliest registered. Exchange into an engine runs whenever the selection
// changes. The target is fixed once every engine has stepped. Engines whose
// step fails are left out for the rest of the round.
func (c *Coordinator) synchronize(report *RoundReport, steps map[string]int, failed map[string]bool) (float64, error) {
	stepped := make(map[string]bool, len(c.handles))
	target := math.Inf(1)
	fixed := false
	// last is per round: the first selection of every round exchanges, also
	// when it repeats the final selection of the previous round.
	var last *engine.Handle

	for n := 0; ; n++ {
		if !fixed && len(stepped) == len(c.handles) {
			target = c.maxTime()
			fixed = true
		}

		next := c.selectNext(failed)
		if next == nil {
			if !fixed {
				target = c.maxTime()
			}
			err := &dynamo.Error{Kind: dynamo.KindStep, Time: c.t, Err: ErrAllEnginesOut}
			return target, c.settle(report, err)
		}
		if fixed && next.Time() >= target {
			return target, nil
		}
		if n >= c.cfg.Coordinator.MaxSubsteps {
			if !fixed {
				target = c.maxTime()
			}
			err := &dynamo.Error{Kind: dynamo.KindStep, Time: next.Time(),
				Err: fmt.Errorf("%w (%d)", ErrSubstepLimit, n)}
			return target, c.settle(report, err)
		}

		if next != last {
			for _, err := range c.router.Apply(next.ID, next.Time()) {
				if err := c.settle(report, err); err != nil {
					return target, err
				}
			}
			last = next
		}

		report.Selections = append(report.Selections, next.ID)
		stepped[next.ID] = true
		if _, err := next.Step(dynamo.AutoStep); err != nil {
			failed[next.ID] = true
			if err := c.settle(report, err); err != nil {
				return target, err
			}
			continue
		}
		steps[next.ID]++
	}
}

// selectNext returns the live engine with the smallest local time.
func (c *Coordinator) selectNext(failed map[string]bool) *engine.Handle {
	var best *engine.Handle
	for _, h := range c.handles {
		if failed[h.ID] {
			continue
		}
		if best == nil || h.Time() < best.Time() {
			best = h
		}
	}
	return best
}

func (c *Coordinator) maxTime() float64 {
	m := math.Inf(-1)
	for _, h := range c.handles {
		m = math.Max(m, h.Time())
	}
	return m
}

func (c *Coordinator) counters() checkpoint.Counters {
	return checkpoint.Counters{
		Time:        c.t,
		OutputIndex: c.outputIndex,
		Iteration:   c.iteration,
		LastOutput:  c.lastOutput,
	}
}

// output appends a snapshot when the output interval has elapsed since the
// previous one.
func (c *Coordinator) output() (bool, error) {
	vars := c.cfg.Output.Resolved
	if len(vars) == 0 {
		return false, nil
	}
	if c.hasOutput && c.t-c.lastOutput < c.cfg.Output.Interval {
		return false, nil
	}

	snap := storage.Snapshot{Time: c.t, Values: make(map[dynamo.QualifiedName]dynamo.Value, len(vars))}
	for _, q := range vars {
		v, err := c.byID[q.Engine].GetVar(q.Var)
		if err != nil {
			return false, &dynamo.Error{Kind: dynamo.KindOutput, Engine: q.Engine, Var: q.Var, Time: c.t, Err: err}
		}
		snap.Values[q] = v
	}

	if !c.sinkReady {
		dims, descs := storage.Describe(vars, snap.Values)
		attrs := c.cfg.Output.Attributes
		if ref := c.cfg.Output.CoordinateReference; ref != "" {
			attrs = make(map[string]string, len(c.cfg.Output.Attributes)+1)
			for k, v := range c.cfg.Output.Attributes {
				attrs[k] = v
			}
			attrs["coordinate_reference"] = ref
		}
		if err := c.sink.Init(dims, descs, attrs); err != nil {
			return false, &dynamo.Error{Kind: dynamo.KindOutput, Time: c.t, Err: err}
		}
		c.sinkReady = true
	}

	if err := c.sink.Append(c.outputIndex, snap); err != nil {
		return false, &dynamo.Error{Kind: dynamo.KindOutput, Time: c.t, Err: err}
	}
	c.outputIndex++
	c.lastOutput = c.t
	c.hasOutput = true
	return true, nil
}

// settle applies the failure policy to err. Fatal errors, including any
// error not tagged with a dynamo.Kind, are logged and returned. Everything
// else is recorded on the report and nil is returned.
func (c *Coordinator) settle(report *RoundReport, err error) error {
	if err == nil {
		return nil
	}
	if dynamo.IsFatal(err) {
		return c.fatal(err)
	}
	c.isolate(report, err)
	return nil
}

// isolate records a non-fatal failure on the round report.
func (c *Coordinator) isolate(report *RoundReport, err error) {
	var de *dynamo.Error
	attrs := []any{telemetry.Kind(err), telemetry.Error(err)}
	if errors.As(err, &de) {
		if de.Engine != "" {
			attrs = append(attrs, telemetry.Engine(de.Engine))
		}
		attrs = append(attrs, telemetry.Time(de.Time))
	}
	c.logger.Warn("isolated failure", attrs...)
	report.Errors = append(report.Errors, err)
}

func (c *Coordinator) fatal(err error) error {
	c.logger.Error("fatal error", telemetry.Kind(err), telemetry.Error(err), telemetry.Time(c.t))
	return err
}

// Close finalizes every engine exactly once and closes the output sink.
func (c *Coordinator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.finalizeAll()
	if serr := c.sink.Close(); serr != nil {
		err = errors.Join(err, &dynamo.Error{Kind: dynamo.KindOutput, Err: serr})
	}
	return err
}

func (c *Coordinator) finalizeAll() error {
	var errs []error
	for _, h := range c.handles {
		if err := h.Finalize(); err != nil {
			c.logger.Error("engine finalize failed", telemetry.Engine(h.ID), telemetry.Error(err))
			errs = append(errs, fmt.Errorf("finalize %s: %w", h.ID, err))
		}
	}
	return errors.Join(errs...)
}
