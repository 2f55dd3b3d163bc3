package engine

import (
	"errors"
	"fmt"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

// Handle wraps one engine for the coordinator. It tracks the engine's local
// time as last reported and guarantees Finalize runs exactly once.
type Handle struct {
	ID         string
	Order      int
	ConfigFile string

	engine      dynamo.Engine
	t           float64
	initialized bool
	finalized   bool

	steps    int
	failures int
}

func NewHandle(id string, order int, eng dynamo.Engine, configFile string) *Handle {
	return &Handle{
		ID:         id,
		Order:      order,
		ConfigFile: configFile,
		engine:     eng,
	}
}

func (h *Handle) Engine() dynamo.Engine { return h.engine }

// Time is the engine's local time as of its last successful operation.
func (h *Handle) Time() float64 { return h.t }

func (h *Handle) Initialized() bool { return h.initialized }

func (h *Handle) Steps() int    { return h.steps }
func (h *Handle) Failures() int { return h.failures }

func (h *Handle) Initialize() error {
	if err := h.engine.Initialize(h.ConfigFile); err != nil {
		return &dynamo.Error{Kind: dynamo.KindEngineInit, Engine: h.ID, Err: err}
	}
	h.initialized = true
	h.t = h.engine.CurrentTime()
	return nil
}

// Step advances the engine once. On failure the tracked time is left where
// it was and a step error is returned.
func (h *Handle) Step(dt float64) (float64, error) {
	if !h.initialized {
		return h.t, h.stepErr(dynamo.ErrNotInitialized)
	}
	if h.finalized {
		return h.t, h.stepErr(dynamo.ErrFinalized)
	}

	before := h.t
	if err := h.update(dt); err != nil {
		h.failures++
		return h.t, h.stepErr(err)
	}

	now := h.engine.CurrentTime()
	if !(now > before) {
		h.failures++
		return h.t, h.stepErr(fmt.Errorf("%w: t=%g", dynamo.ErrNoProgress, now))
	}
	h.t = now
	h.steps++
	return now, nil
}

// update converts an engine panic into an error so one misbehaving
// component cannot take the coordinator down.
func (h *Handle) update(dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panicked: %v", r)
		}
	}()
	return h.engine.Update(dt)
}

func (h *Handle) stepErr(err error) error {
	return &dynamo.Error{Kind: dynamo.KindStep, Engine: h.ID, Time: h.t, Err: err}
}

// GetVar returns a copy of the named variable.
func (h *Handle) GetVar(name string) (dynamo.Value, error) {
	if !h.initialized {
		return nil, dynamo.ErrNotInitialized
	}
	v, err := h.engine.GetVar(name)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

func (h *Handle) SetVar(name string, value dynamo.Value) error {
	if !h.initialized {
		return dynamo.ErrNotInitialized
	}
	return h.engine.SetVar(name, value.Clone())
}

// Resync asks the engine to adopt t as its local time. It reports false when
// the engine has no such capability.
func (h *Handle) Resync(t float64) (bool, error) {
	ts, ok := h.engine.(dynamo.TimeSetter)
	if !ok {
		return false, nil
	}
	if err := ts.SetCurrentTime(t); err != nil {
		return true, err
	}
	h.t = h.engine.CurrentTime()
	return true, nil
}

// Refresh re-reads the engine clock, e.g. after a restore.
func (h *Handle) Refresh() {
	if h.initialized {
		h.t = h.engine.CurrentTime()
	}
}

func (h *Handle) VarNames() []string {
	if l, ok := h.engine.(dynamo.VarLister); ok {
		return l.VarNames()
	}
	return nil
}

// Finalize calls the engine's Finalize the first time only.
func (h *Handle) Finalize() error {
	if h.finalized {
		return nil
	}
	h.finalized = true
	if !h.initialized {
		return nil
	}
	err := h.engine.Finalize()
	if errors.Is(err, dynamo.ErrFinalized) {
		return nil
	}
	return err
}
