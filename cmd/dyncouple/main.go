package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir   string
	logLevel  string
	logFormat string

	// run / live
	restart     string
	restartTime float64
	metricsAddr string
	runID       string

	// plot / export
	plotVars   []string
	plotHeight int
	plotWidth  int
	format     string
	outFile    string

	// analyze
	lagPair []string
	maxLag  int
)

// main registers the dyncouple commands and executes the root command,
// exiting with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "dyncouple",
		Short:         "coordinator for coupled multi-rate simulation engines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "run directory (default: output.target of the coupling document, or "+defaultDataDir+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json (env LOG_FORMAT)")

	runCmd := &cobra.Command{
		Use:   "run [coupling.yaml]",
		Short: "run a coupled simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoupling(cmd, args[0], false)
		},
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	liveCmd := &cobra.Command{
		Use:   "live [coupling.yaml]",
		Short: "run a coupled simulation with a live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoupling(cmd, args[0], true)
		},
	}
	addRunFlags(liveCmd)

	validateCmd := &cobra.Command{
		Use:   "validate [coupling.yaml]",
		Short: "check a coupling document without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  validateCoupling,
	}

	describeCmd := &cobra.Command{
		Use:   "describe [coupling.yaml]",
		Short: "initialize the engines and list their variables",
		Args:  cobra.ExactArgs(1),
		RunE:  describeCoupling,
	}

	enginesCmd := &cobra.Command{
		Use:   "engines",
		Short: "list registered engine references",
		RunE:  listEngines,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in coupling presets",
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init [preset] [dir]",
		Short: "write a preset coupling document and its engine files",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  initPreset,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot output variables of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotVars, "vars", nil, "columns to plot (default: all)")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id] [x-column] [y-column]",
		Short: "plot one output column against another",
		Args:  cobra.ExactArgs(3),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&plotHeight, "height", 20, "plot height")
	phaseCmd.Flags().IntVar(&plotWidth, "width", 60, "plot width")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "summary statistics and dominant frequencies of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringSliceVar(&lagPair, "lag", nil, "two columns to cross-correlate, e.g. --lag waves.pos,dunes.x")
	analyzeCmd.Flags().IntVar(&maxLag, "max-lag", 50, "largest shift in samples for --lag")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data as json or svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "json or svg")
	exportCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringSliceVar(&plotVars, "vars", nil, "columns to draw with --format svg (default: all)")

	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints [coupling.yaml] [run_id]",
		Short: "list checkpoints in the store of a coupling document",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  listCheckpoints,
	}

	rootCmd.AddCommand(runCmd, liveCmd, validateCmd, describeCmd, enginesCmd, presetsCmd, initCmd,
		listCmd, plotCmd, phaseCmd, analyzeCmd, exportCmd, checkpointsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&restart, "restart", "", "resume a run from its checkpoint (run id or \"latest\")")
	cmd.Flags().Float64Var(&restartTime, "restart-time", -1, "checkpoint boundary to resume from (default: latest)")
	cmd.Flags().StringVar(&runID, "id", "", "id for a new run (default: random uuid)")
}
