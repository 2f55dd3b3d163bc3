package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for coupled-run operations.
var (
	// ErrUnknownEngine indicates a reference to an engine that is not configured.
	ErrUnknownEngine = errors.New("dynamo: unknown engine")

	// ErrUnknownVar indicates a variable name that cannot be resolved or is not exposed.
	ErrUnknownVar = errors.New("dynamo: unknown variable")

	// ErrEmptyName indicates an empty variable name.
	ErrEmptyName = errors.New("dynamo: empty variable name")

	// ErrNotInitialized indicates an engine used before Initialize succeeded.
	ErrNotInitialized = errors.New("dynamo: engine not initialized")

	// ErrFinalized indicates an engine used after Finalize.
	ErrFinalized = errors.New("dynamo: engine already finalized")

	// ErrNoProgress indicates a step that returned without advancing local time.
	ErrNoProgress = errors.New("dynamo: engine time did not advance")

	// ErrInvalidValue indicates a NaN/Inf or wrongly sized value.
	ErrInvalidValue = errors.New("dynamo: invalid value")

	// ErrStalled indicates the coordinator clock stopped advancing.
	ErrStalled = errors.New("dynamo: coordinator stalled")
)

// Kind classifies an error for the coordinator's central failure policy.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindEngineInit
	KindStep
	KindExchange
	KindUnknownVariable
	KindRegime
	KindCheckpoint
	KindOutput
)

var kindNames = map[Kind]string{
	KindConfig:          "config",
	KindEngineInit:      "engine-init",
	KindStep:            "step",
	KindExchange:        "exchange",
	KindUnknownVariable: "unknown-variable",
	KindRegime:          "regime",
	KindCheckpoint:      "checkpoint",
	KindOutput:          "output",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether errors of this kind abort the run. Step, exchange
// and regime failures are isolated to the engine involved.
func (k Kind) Fatal() bool {
	switch k {
	case KindStep, KindExchange, KindRegime:
		return false
	default:
		return true
	}
}

// Error wraps an error with the engine, variable and simulation time it
// occurred at.
type Error struct {
	Kind   Kind
	Engine string
	Var    string
	Time   float64
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	switch {
	case e.Engine != "" && e.Var != "":
		msg += " (" + e.Engine + "." + e.Var + ")"
	case e.Engine != "":
		msg += " (" + e.Engine + ")"
	case e.Var != "":
		msg += " (" + e.Var + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsFatal reports whether err must abort the run. Untagged errors are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k := KindOf(err)
	if k == 0 {
		return true
	}
	return k.Fatal()
}
