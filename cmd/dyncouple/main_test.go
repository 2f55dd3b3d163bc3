package main

import (
	"testing"
	"time"

	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/storage"
)

func TestRestartRunLatest(t *testing.T) {
	st := storage.New(t.TempDir())
	if _, err := restartRun(st, "latest"); err == nil {
		t.Fatal("expected error without runs")
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		sink, err := st.Create(storage.RunMetadata{ID: id, Timestamp: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatal(err)
		}
		if err := sink.Close(); err != nil {
			t.Fatal(err)
		}
	}

	got, err := restartRun(st, "latest")
	if err != nil {
		t.Fatal(err)
	}
	if got != "new" {
		t.Errorf("expected newest run, got %s", got)
	}
	if got, _ := restartRun(st, "old"); got != "old" {
		t.Errorf("explicit id should pass through, got %s", got)
	}
}

func TestResolveDataDir(t *testing.T) {
	defer func() { dataDir = "" }()

	if got := resolveDataDir(nil); got != config.DefaultDataDir {
		t.Errorf("expected default, got %s", got)
	}

	cfg := config.DefaultConfig()
	cfg.Output.Target = "out"
	cfg.SetDir("/tmp/coupling")
	if got := resolveDataDir(cfg); got != "/tmp/coupling/out" {
		t.Errorf("expected output target, got %s", got)
	}

	dataDir = "elsewhere"
	if got := resolveDataDir(cfg); got != "elsewhere" {
		t.Errorf("flag should win, got %s", got)
	}
}

func TestSelectColumns(t *testing.T) {
	series := &storage.Series{
		Header:  []string{"time", "a.x", "b.y"},
		Times:   []float64{0, 1},
		Columns: [][]float64{{1, 2}, {3, 4}},
	}

	names, cols, err := selectColumns(series, nil)
	if err != nil || len(names) != 2 || len(cols) != 2 {
		t.Fatalf("expected all columns, got %v %v %v", names, cols, err)
	}

	names, cols, err = selectColumns(series, []string{"b.y"})
	if err != nil || names[0] != "b.y" || cols[0][1] != 4 {
		t.Fatalf("unexpected selection: %v %v %v", names, cols, err)
	}

	if _, _, err := selectColumns(series, []string{"c.z"}); err == nil {
		t.Error("expected error for unknown column")
	}
}
