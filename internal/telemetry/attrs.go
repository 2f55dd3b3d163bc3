package telemetry

import (
	"log/slog"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

func Engine(id string) slog.Attr {
	return slog.String("engine", id)
}

func Var(name dynamo.QualifiedName) slog.Attr {
	return slog.String("var", name.String())
}

func Time(t float64) slog.Attr {
	return slog.Float64("time", t)
}

func Round(n int) slog.Attr {
	return slog.Int("round", n)
}

func Regime(name string) slog.Attr {
	return slog.String("regime", name)
}

func RunID(id string) slog.Attr {
	return slog.String("run_id", id)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

// Kind tags an attribute with the failure class of err.
func Kind(err error) slog.Attr {
	return slog.String("kind", dynamo.KindOf(err).String())
}
