package coordinator

// EngineReport is one engine's state at the end of a round.
type EngineReport struct {
	ID     string
	Time   float64
	Lag    float64
	Steps  int
	Failed bool
}

// RoundReport summarizes a completed round for observers.
type RoundReport struct {
	Iteration   int
	Time        float64
	Target      float64
	Stop        float64
	Regime      string
	Engines     []EngineReport
	Selections  []string
	Errors      []error
	Checkpoints []float64
	OutputIndex int
	Output      bool
}

// Lag returns the largest engine lag behind the round target.
func (r RoundReport) Lag() float64 {
	lag := 0.0
	for _, e := range r.Engines {
		if e.Lag > lag {
			lag = e.Lag
		}
	}
	return lag
}

// Observer is notified after every completed round.
type Observer interface {
	OnRound(r RoundReport)
}

type ObserverFunc func(r RoundReport)

func (f ObserverFunc) OnRound(r RoundReport) { f(r) }
