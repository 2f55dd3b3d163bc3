package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/dyncouple/internal/coordinator"
	"github.com/san-kum/dyncouple/internal/dynamo"
)

func report(iter int, t float64, regime string, errs ...error) RoundMsg {
	return RoundMsg{
		Iteration: iter,
		Time:      t,
		Target:    t + 0.5,
		Stop:      10,
		Regime:    regime,
		Engines: []coordinator.EngineReport{
			{ID: "waves", Time: t + 0.5, Steps: 5},
			{ID: "dunes", Time: t - 0.5, Lag: 1, Steps: 1, Failed: len(errs) > 0},
		},
		Errors: errs,
	}
}

func TestModelTracksRounds(t *testing.T) {
	var m tea.Model = New("calm-storm", 0, 10, nil)

	m, _ = m.Update(report(1, 1, "calm"))
	m, _ = m.Update(report(2, 2, "storm"))
	m, _ = m.Update(report(3, 3, "storm", &dynamo.Error{Kind: dynamo.KindStep, Engine: "dunes", Err: errors.New("boom")}))

	lm := m.(Model)
	if lm.rounds != 3 {
		t.Errorf("expected 3 rounds, got %d", lm.rounds)
	}
	if lm.regimes != 1 {
		t.Errorf("expected 1 regime switch, got %d", lm.regimes)
	}
	if len(lm.engines) != 2 || lm.engines[0].id != "waves" {
		t.Fatalf("unexpected engine rows: %+v", lm.engines)
	}
	if lm.engines[0].steps != 15 {
		t.Errorf("expected 15 waves steps, got %d", lm.engines[0].steps)
	}
	if lm.engines[1].failures != 1 {
		t.Errorf("expected 1 dunes failure, got %d", lm.engines[1].failures)
	}

	view := lm.View()
	for _, want := range []string{"calm-storm", "storm", "waves", "dunes", "1 isolated errors", "boom"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelDone(t *testing.T) {
	var m tea.Model = New("run", 0, 10, nil)
	m, _ = m.Update(DoneMsg{Err: errors.New("stalled"), Iteration: 4})

	lm := m.(Model)
	if !lm.Done() || lm.Status().Iteration != 4 {
		t.Errorf("unexpected status: %+v", lm.Status())
	}
	if !strings.Contains(lm.View(), "failed") {
		t.Error("expected failed state in view")
	}
}

func TestQuitCancelsRun(t *testing.T) {
	cancelled := false
	var m tea.Model = New("run", 0, 10, func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !cancelled {
		t.Error("expected cancel to be called")
	}
}

func TestErrorLogIsBounded(t *testing.T) {
	m := New("run", 0, 10, nil)
	for i := 0; i < 20; i++ {
		m.observe(coordinator.RoundReport(report(i+1, float64(i), "", errors.New("x"))))
	}
	if len(m.errors) != maxErrors || m.nerrors != 20 {
		t.Errorf("expected %d kept of 20, got %d of %d", maxErrors, len(m.errors), m.nerrors)
	}
	if len(m.lag) != 20 {
		t.Errorf("expected 20 lag samples, got %d", len(m.lag))
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{0, 1}, 10); got != "▁█" {
		t.Errorf("got %q", got)
	}
	if got := []rune(sparkline(make([]float64, 40), 24)); len(got) != 24 {
		t.Errorf("expected width 24, got %d", len(got))
	}
}
