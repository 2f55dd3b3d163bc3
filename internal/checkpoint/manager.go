package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/telemetry"
)

// Endpoint is the variable access the manager needs from an engine.
type Endpoint interface {
	GetVar(name string) (dynamo.Value, error)
	SetVar(name string, value dynamo.Value) error
	Time() float64
}

// Resyncer is implemented by endpoints able to adopt a restored local time.
type Resyncer interface {
	Resync(t float64) (bool, error)
}

// Backuper copies the output artifact aside before it is appended to again.
type Backuper interface {
	Backup(tag string) (string, error)
}

// Counters is the coordinator state stored alongside engine variables.
type Counters struct {
	Time        float64
	OutputIndex int
	Iteration   int
	LastOutput  float64
}

// Manager fires checkpoints when the coordinator clock crosses configured
// boundaries and restores runs from stored records.
type Manager struct {
	times  []float64
	vars   []dynamo.QualifiedName
	store  Store
	runID  string
	backup Backuper
	logger *slog.Logger
	fired  map[float64]bool
	now    func() time.Time
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithBackup copies the output artifact aside each time a checkpoint fires.
func WithBackup(b Backuper) Option {
	return func(m *Manager) { m.backup = b }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(
	runID string, times []float64, vars []dynamo.QualifiedName, store Store, opts ...Option,
) *Manager {
	m := &Manager{
		times:  times,
		vars:   vars,
		store:  store,
		runID:  runID,
		logger: telemetry.Discard(),
		fired:  make(map[float64]bool),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) RunID() string { return m.runID }

func (m *Manager) Store() Store { return m.store }

// Due returns the boundaries b with prev < b <= cur that have not fired yet.
func (m *Manager) Due(prev, cur float64) []float64 {
	var due []float64
	for _, b := range m.times {
		if b > prev && b <= cur && !m.fired[b] {
			due = append(due, b)
		}
	}
	return due
}

// Step writes a checkpoint for every boundary crossed between prev and the
// current coordinator time.
func (m *Manager) Step(
	ctx context.Context, prev float64, c Counters, engines map[string]Endpoint,
) ([]*Record, error) {
	var out []*Record
	for _, b := range m.Due(prev, c.Time) {
		m.fired[b] = true

		rec, err := m.Capture(b, c, engines)
		if err != nil {
			return out, err
		}
		if m.backup != nil {
			path, err := m.backup.Backup(formatTime(b))
			if err != nil {
				return out, m.fail(b, fmt.Errorf("backup output: %w", err))
			}
			m.logger.Info("output backed up", slog.String("path", path), telemetry.Time(b))
		}
		if err := m.store.Save(ctx, rec); err != nil {
			return out, m.fail(b, err)
		}
		m.logger.Info("checkpoint written",
			telemetry.RunID(m.runID), telemetry.Time(c.Time), slog.Float64("boundary", b))
		out = append(out, rec)
	}
	return out, nil
}

// Capture snapshots the configured restart variables.
func (m *Manager) Capture(boundary float64, c Counters, engines map[string]Endpoint) (*Record, error) {
	rec := &Record{
		RunID:       m.runID,
		Time:        c.Time,
		Boundary:    boundary,
		OutputIndex: c.OutputIndex,
		Iteration:   c.Iteration,
		LastOutput:  c.LastOutput,
		Engines:     make(map[string]map[string]dynamo.Value),
		EngineTimes: make(map[string]float64, len(engines)),
		CreatedAt:   m.now().UTC(),
	}
	for id, e := range engines {
		rec.EngineTimes[id] = e.Time()
	}
	for _, q := range m.vars {
		e, ok := engines[q.Engine]
		if !ok {
			return nil, m.varErr(q, c.Time, dynamo.ErrUnknownEngine)
		}
		v, err := e.GetVar(q.Var)
		if err != nil {
			return nil, m.varErr(q, c.Time, err)
		}
		if !v.IsValid() {
			return nil, m.varErr(q, c.Time, fmt.Errorf("%w: %v", dynamo.ErrInvalidValue, v))
		}
		rec.set(q, v.Clone())
	}
	return rec, nil
}

// Restore injects rec into the engines and resynchronizes their clocks where
// supported. Boundaries at or before the record time are marked as fired.
func (m *Manager) Restore(rec *Record, engines map[string]Endpoint) (Counters, error) {
	for _, q := range m.vars {
		v, ok := rec.Value(q)
		if !ok {
			return Counters{}, m.varErr(q, rec.Time, fmt.Errorf("%w in checkpoint", dynamo.ErrUnknownVar))
		}
		e, ok := engines[q.Engine]
		if !ok {
			return Counters{}, m.varErr(q, rec.Time, dynamo.ErrUnknownEngine)
		}
		if err := e.SetVar(q.Var, v); err != nil {
			return Counters{}, m.varErr(q, rec.Time, err)
		}
	}

	for id, e := range engines {
		rs, ok := e.(Resyncer)
		if !ok {
			continue
		}
		t, ok := rec.EngineTimes[id]
		if !ok {
			t = rec.Time
		}
		supported, err := rs.Resync(t)
		if err != nil {
			return Counters{}, &dynamo.Error{Kind: dynamo.KindCheckpoint, Engine: id, Time: t, Err: err}
		}
		if !supported {
			m.logger.Warn("engine cannot resynchronize time, keeping its own clock",
				telemetry.Engine(id), telemetry.Time(e.Time()))
		}
	}

	for _, b := range m.times {
		if b <= rec.Time {
			m.fired[b] = true
		}
	}
	m.logger.Info("checkpoint restored",
		telemetry.RunID(rec.RunID), telemetry.Time(rec.Time), slog.Int("iteration", rec.Iteration))

	return Counters{
		Time:        rec.Time,
		OutputIndex: rec.OutputIndex,
		Iteration:   rec.Iteration,
		LastOutput:  rec.LastOutput,
	}, nil
}

func (m *Manager) varErr(q dynamo.QualifiedName, t float64, err error) error {
	return &dynamo.Error{Kind: dynamo.KindCheckpoint, Engine: q.Engine, Var: q.Var, Time: t, Err: err}
}

func (m *Manager) fail(t float64, err error) error {
	return &dynamo.Error{Kind: dynamo.KindCheckpoint, Time: t, Err: err}
}
