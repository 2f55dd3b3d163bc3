package metrics

import (
	"github.com/san-kum/dyncouple/internal/coordinator"
	"github.com/san-kum/dyncouple/internal/dynamo"
)

// Metric accumulates one figure of merit over the rounds of a run.
type Metric interface {
	Name() string
	Observe(r coordinator.RoundReport)
	Value() float64
	Reset()
}

// MaxLag is the largest lag of any engine behind a round target.
type MaxLag struct {
	max float64
}

func NewMaxLag() *MaxLag { return &MaxLag{} }

func (m *MaxLag) Name() string { return "max_lag" }

func (m *MaxLag) Observe(r coordinator.RoundReport) {
	if lag := r.Lag(); lag > m.max {
		m.max = lag
	}
}

func (m *MaxLag) Value() float64 { return m.max }

func (m *MaxLag) Reset() { m.max = 0 }

// FailureRate is the share of engine selections whose step failed.
type FailureRate struct {
	failures   int
	selections int
}

func NewFailureRate() *FailureRate { return &FailureRate{} }

func (f *FailureRate) Name() string { return "step_failure_rate" }

func (f *FailureRate) Observe(r coordinator.RoundReport) {
	f.selections += len(r.Selections)
	for _, err := range r.Errors {
		if dynamo.KindOf(err) == dynamo.KindStep {
			f.failures++
		}
	}
}

func (f *FailureRate) Value() float64 {
	if f.selections == 0 {
		return 0
	}
	return float64(f.failures) / float64(f.selections)
}

func (f *FailureRate) Reset() {
	f.failures = 0
	f.selections = 0
}

// Substeps is the mean number of engine steps per round.
type Substeps struct {
	sum    int
	rounds int
}

func NewSubsteps() *Substeps { return &Substeps{} }

func (s *Substeps) Name() string { return "substeps_per_round" }

func (s *Substeps) Observe(r coordinator.RoundReport) {
	s.sum += len(r.Selections)
	s.rounds++
}

func (s *Substeps) Value() float64 {
	if s.rounds == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.rounds)
}

func (s *Substeps) Reset() {
	s.sum = 0
	s.rounds = 0
}

// Set feeds every round to a group of metrics.
type Set []Metric

func Default() Set {
	return Set{NewMaxLag(), NewFailureRate(), NewSubsteps()}
}

func (s Set) OnRound(r coordinator.RoundReport) {
	for _, m := range s {
		m.Observe(r)
	}
}

func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}
