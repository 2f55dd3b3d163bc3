package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/dyncouple/internal/analysis"
	"github.com/san-kum/dyncouple/internal/checkpoint"
	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/coordinator"
	"github.com/san-kum/dyncouple/internal/engine"
	"github.com/san-kum/dyncouple/internal/export"
	"github.com/san-kum/dyncouple/internal/storage"
)

var (
	bold  = lipgloss.NewStyle().Bold(true)
	dim   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

func validateCoupling(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	reg := engine.NewRegistry()
	for _, e := range cfg.Engines {
		if !reg.Has(e.Reference) {
			return fmt.Errorf("engine %s: unknown reference %q (available: %v)", e.Name, e.Reference, reg.List())
		}
	}

	fmt.Printf("%s %s\n", green.Render("valid"), args[0])
	fmt.Printf("  engines:     %s\n", strings.Join(cfg.Engines.Names(), ", "))
	fmt.Printf("  time:        %g → %g\n", cfg.Time.Start, cfg.Time.Stop)
	fmt.Printf("  exchange:    %d rules\n", len(cfg.Exchange))
	for _, r := range cfg.Exchange {
		fmt.Printf("               %s → %s\n", r.From, r.To)
	}
	if spans := cfg.Spans(); len(spans) > 0 {
		fmt.Printf("  scenario:\n")
		for _, s := range spans {
			fmt.Printf("               [%g, %g) %s\n", s.Start, s.End, s.Regime)
		}
	}
	if len(cfg.Restart.CheckpointTimes) > 0 {
		fmt.Printf("  checkpoints: %v → %s\n", cfg.Restart.CheckpointTimes, cfg.Restart.Store)
	}
	if len(cfg.Output.Resolved) > 0 {
		fmt.Printf("  output:      %d variables every %g\n", len(cfg.Output.Resolved), cfg.Output.Interval)
	}
	return nil
}

func describeCoupling(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	c, err := coordinator.New(cfg, engine.NewRegistry())
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Start(); err != nil {
		return err
	}

	for _, h := range c.Handles() {
		spec, _ := cfg.Engines.Get(h.ID)
		fmt.Printf("%s %s\n", bold.Render(h.ID), dim.Render(fmt.Sprintf("(%s, t=%g)", spec.Reference, h.Time())))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, name := range h.VarNames() {
			v, err := h.GetVar(name)
			if err != nil {
				fmt.Fprintf(w, "  %s\t%s\n", name, dim.Render(err.Error()))
				continue
			}
			fmt.Fprintf(w, "  %s\t%s\n", name, v)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func listEngines(cmd *cobra.Command, args []string) error {
	for _, name := range engine.NewRegistry().List() {
		fmt.Println(name)
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\n", name, p.Description)
	}
	return w.Flush()
}

func initPreset(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if len(args) > 1 {
		dir = args[1]
	}
	path, err := config.WritePreset(args[0], dir)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	fmt.Printf("run it with: dyncouple run %s\n", path)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(resolveDataDir(nil))
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tENGINES\tSPAN\tEND\tROWS\tSTATE")
	for _, run := range runs {
		state := "finished"
		switch {
		case run.Finished.IsZero():
			state = "incomplete"
		case run.ResumedFrom != nil:
			state = fmt.Sprintf("resumed@%g", *run.ResumedFrom)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g-%g\t%g\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			strings.Join(run.Engines, ","),
			run.Start, run.Stop,
			run.End,
			run.Rows,
			state,
		)
	}
	return w.Flush()
}

func loadSeries(runID string) (*storage.RunMetadata, *storage.Series, error) {
	st := storage.New(resolveDataDir(nil))
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(series.Times) == 0 {
		return nil, nil, fmt.Errorf("run %s has no output records", runID)
	}
	return meta, series, nil
}

// selectColumns returns the requested columns, or every column when names
// is empty.
func selectColumns(series *storage.Series, names []string) ([]string, [][]float64, error) {
	if len(names) == 0 {
		return series.Header[1:], series.Columns, nil
	}
	cols := make([][]float64, len(names))
	for i, name := range names {
		col, ok := series.Column(name)
		if !ok {
			return nil, nil, fmt.Errorf("no column %q (available: %v)", name, series.Header[1:])
		}
		cols[i] = col
	}
	return names, cols, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadSeries(args[0])
	if err != nil {
		return err
	}
	names, cols, err := selectColumns(series, plotVars)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("engines: %s\n", strings.Join(meta.Engines, ", "))
	fmt.Printf("samples: %d (t=%g..%g)\n\n", len(series.Times), series.Times[0], series.Times[len(series.Times)-1])

	for i, name := range names {
		graph := asciigraph.Plot(cols[i],
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(name),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	_, series, err := loadSeries(args[0])
	if err != nil {
		return err
	}
	names, cols, err := selectColumns(series, args[1:3])
	if err != nil {
		return err
	}
	portrait, err := analysis.NewPortrait(names[0], cols[0], names[1], cols[1])
	if err != nil {
		return err
	}
	fmt.Printf("%s vs %s\n\n", names[1], names[0])
	fmt.Print(analysis.PortraitToASCII(portrait, plotWidth, plotHeight))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadSeries(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("run: %s (%d samples)\n\n", meta.ID, len(series.Times))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tMIN\tMAX\tMEAN\tSTD\tFREQ")
	for i, name := range series.Header[1:] {
		s := analysis.Summarize(series.Columns[i])
		freq := "-"
		if f, _, err := analysis.DominantFrequency(series.Times, series.Columns[i]); err == nil {
			freq = fmt.Sprintf("%.4g", f)
		}
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\t%.4g\t%s\n", name, s.Min, s.Max, s.Mean, s.Std, freq)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(lagPair) == 0 {
		return nil
	}
	if len(lagPair) != 2 {
		return fmt.Errorf("--lag takes exactly two columns, got %v", lagPair)
	}
	names, cols, err := selectColumns(series, lagPair)
	if err != nil {
		return err
	}
	lag, coeff, err := analysis.CrossCorrelation(cols[0], cols[1], maxLag)
	if err != nil {
		return err
	}
	dt := 0.0
	if n := len(series.Times); n > 1 {
		dt = (series.Times[n-1] - series.Times[0]) / float64(n-1)
	}
	fmt.Printf("\n%s trails %s by %d samples (~%g), r=%.4f\n", names[1], names[0], lag, float64(lag)*dt, coeff)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	var w io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		return storage.New(resolveDataDir(nil)).ExportJSON(w, args[0])
	case "svg":
		_, series, err := loadSeries(args[0])
		if err != nil {
			return err
		}
		names, cols, err := selectColumns(series, plotVars)
		if err != nil {
			return err
		}
		lines := make([]export.Line, len(names))
		for i := range names {
			lines[i] = export.Line{Name: names[i], Values: cols[i]}
		}
		return export.SeriesToSVG(w, series.Times, lines, 800, 400)
	default:
		return fmt.Errorf("unknown format %q (json or svg)", format)
	}
}

func listCheckpoints(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := checkpoint.OpenStore(ctx, cfg.Restart.Store, cfg.Dir(), "")
	if err != nil {
		return err
	}
	defer store.Close()

	runs := args[1:]
	if len(runs) == 0 {
		if runs, err = store.Runs(ctx); err != nil {
			return err
		}
	}
	if len(runs) == 0 {
		fmt.Println("no checkpoints found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tBOUNDARY\tTIME\tROUND\tRECORDS\tCREATED")
	for _, id := range runs {
		times, err := store.List(ctx, id)
		if err != nil {
			return err
		}
		for _, b := range times {
			rec, err := store.Load(ctx, id, b)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%g\t%g\t%d\t%d\t%s\n", id, rec.Boundary, rec.Time, rec.Iteration, rec.OutputIndex,
				rec.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return w.Flush()
}
