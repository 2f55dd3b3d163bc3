package coordinator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/telemetry"
)

func TestSettle(t *testing.T) {
	errRaw := errors.New("disk full")

	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{name: "nil", err: nil},
		{name: "untagged", err: errRaw, fatal: true},
		{name: "wrapped untagged", err: fmt.Errorf("append row: %w", errRaw), fatal: true},
		{name: "stalled", err: fmt.Errorf("%w: t=3", dynamo.ErrStalled), fatal: true},
		{name: "step", err: &dynamo.Error{Kind: dynamo.KindStep, Engine: "a", Err: errRaw}},
		{name: "exchange", err: &dynamo.Error{Kind: dynamo.KindExchange, Engine: "b", Err: errRaw}},
		{name: "regime", err: &dynamo.Error{Kind: dynamo.KindRegime, Engine: "b", Err: errRaw}},
		{name: "checkpoint", err: &dynamo.Error{Kind: dynamo.KindCheckpoint, Err: errRaw}, fatal: true},
		{name: "output", err: &dynamo.Error{Kind: dynamo.KindOutput, Err: errRaw}, fatal: true},
		{name: "unknown variable", err: &dynamo.Error{Kind: dynamo.KindUnknownVariable, Var: "x", Err: dynamo.ErrUnknownVar}, fatal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Coordinator{logger: telemetry.Discard()}
			var report RoundReport

			got := c.settle(&report, tt.err)
			switch {
			case tt.err == nil:
				if got != nil || len(report.Errors) != 0 {
					t.Errorf("nil error produced %v, %v", got, report.Errors)
				}
			case tt.fatal:
				if !errors.Is(got, tt.err) {
					t.Errorf("expected %v returned, got %v", tt.err, got)
				}
				if len(report.Errors) != 0 {
					t.Errorf("fatal error recorded as isolated: %v", report.Errors)
				}
			default:
				if got != nil {
					t.Errorf("isolated error returned: %v", got)
				}
				if len(report.Errors) != 1 || report.Errors[0] != tt.err {
					t.Errorf("expected error on report, got %v", report.Errors)
				}
			}
		})
	}
}
