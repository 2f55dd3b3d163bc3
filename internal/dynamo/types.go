package dynamo

import (
	"math"
	"strconv"
	"strings"
)

// AutoStep asks an engine to advance by its own preferred increment.
const AutoStep = -1.0

type Value []float64

func Scalar(v float64) Value {
	return Value{v}
}

func (v Value) Clone() Value {
	c := make(Value, len(v))
	copy(c, v)
	return c
}

func (v Value) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Float returns the first element, or zero for an empty value.
func (v Value) Float() float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func (v Value) Equal(other Value) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if len(v) == 1 {
		return strconv.FormatFloat(v[0], 'g', -1, 64)
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Engine is the standard stepping contract. All calls block until the
// underlying component has finished.
type Engine interface {
	Initialize(configFile string) error
	Update(dt float64) error
	CurrentTime() float64
	GetVar(name string) (Value, error)
	SetVar(name string, value Value) error
	Finalize() error
}

// TimeSetter is implemented by engines that can resynchronize their local
// clock, which checkpoint restore uses when available.
type TimeSetter interface {
	SetCurrentTime(t float64) error
}

type VarLister interface {
	VarNames() []string
}
