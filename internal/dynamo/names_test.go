package dynamo

import (
	"errors"
	"testing"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		in        string
		engine    string
		v         string
		qualified bool
	}{
		{"waves.pos", "waves", "pos", true},
		{"pos", "", "pos", false},
		{"a.b.c", "a", "b.c", true},
	}

	for _, tt := range tests {
		q, ok := SplitName(tt.in)
		if ok != tt.qualified || q.Engine != tt.engine || q.Var != tt.v {
			t.Errorf("SplitName(%q) = %+v, %v", tt.in, q, ok)
		}
	}
}

func TestResolver(t *testing.T) {
	r, err := NewResolver([]string{"waves", "dunes"}, map[string]string{"zb": "dunes", "h.mean": "waves"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		want QualifiedName
	}{
		{"waves.pos", QualifiedName{"waves", "pos"}},
		{"zb", QualifiedName{"dunes", "zb"}},
		{"h.mean", QualifiedName{"waves", "h.mean"}},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.name)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestResolverUnknownVariable(t *testing.T) {
	r, _ := NewResolver([]string{"waves", "dunes"}, nil)

	_, err := r.Resolve("zb")
	if !errors.Is(err, ErrUnknownVar) {
		t.Fatalf("expected ErrUnknownVar, got %v", err)
	}
	if KindOf(err) != KindUnknownVariable {
		t.Errorf("expected unknown-variable kind, got %v", KindOf(err))
	}
	if !IsFatal(err) {
		t.Error("unknown variable must be fatal")
	}

	_, err = r.Resolve("wind.speed")
	if !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestResolverSingleEngineNeedsDefault(t *testing.T) {
	r, _ := NewResolver([]string{"solo"}, nil)
	_, err := r.Resolve("x")
	if !errors.Is(err, ErrUnknownVar) || KindOf(err) != KindUnknownVariable {
		t.Errorf("expected unknown variable error, got %v", err)
	}

	r, _ = NewResolver([]string{"solo"}, map[string]string{"x": "solo"})
	got, err := r.Resolve("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Engine != "solo" {
		t.Errorf("expected solo, got %s", got.Engine)
	}
}

func TestResolverBadDefault(t *testing.T) {
	_, err := NewResolver([]string{"waves"}, map[string]string{"zb": "dunes"})
	if KindOf(err) != KindConfig {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestKindFatal(t *testing.T) {
	isolated := []Kind{KindStep, KindExchange, KindRegime}
	for _, k := range isolated {
		if k.Fatal() {
			t.Errorf("%s should be isolated", k)
		}
	}
	fatal := []Kind{KindConfig, KindEngineInit, KindUnknownVariable, KindCheckpoint, KindOutput}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%s should be fatal", k)
		}
	}
	if !IsFatal(errors.New("plain")) {
		t.Error("untagged errors are fatal")
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindExchange, Engine: "dunes", Var: "zb", Err: ErrUnknownVar}
	want := "exchange error (dunes.zb): dynamo: unknown variable"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
