package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/dotbind/internal/chart"
	"github.com/copyleftdev/dotbind/internal/dot"
	"github.com/copyleftdev/dotbind/internal/errors"
	"github.com/copyleftdev/dotbind/internal/logging"
	"github.com/copyleftdev/dotbind/internal/problems"
	"github.com/copyleftdev/dotbind/internal/server"
	"github.com/copyleftdev/dotbind/internal/store"
)

var (
	problemName string
	methods     []int
	minMax      int32
	startX      []float64
	backend     string
	libraryPath string
	plotDir     string
	traceDir    string
	dpi         int
	describe    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a problem once per method and print the reports",
	Long: `Runs the named problem through DOT once for every requested method, one
after another, printing a text report for each run. With --plot-dir a chart
of each run's history is written; with --trace-dir every evaluation is
appended to a JSONL trace.`,
	RunE: runProblem,
}

func init() {
	runCmd.Flags().StringVar(&problemName, "problem", "box", "Problem to run")
	runCmd.Flags().IntSliceVar(&methods, "methods", []int{1, 2, 3}, "DOT methods to run in order (0 default, 1 MMFD, 2 SLP, 3 SQP)")
	runCmd.Flags().Int32Var(&minMax, "minmax", 0, "Direction (0 or -1 minimize, 1 maximize); overrides DOT_MINMAX")
	runCmd.Flags().Float64SliceVar(&startX, "x", nil, "Starting design; defaults to the problem's")
	runCmd.Flags().StringVar(&backend, "backend", "", "Backend (native, emulated); overrides DOT_BACKEND")
	runCmd.Flags().StringVar(&libraryPath, "library", "", "Path to the DOT library; overrides DOT_LIBRARY_PATH")
	runCmd.Flags().StringVar(&plotDir, "plot-dir", "", "Directory for history charts; overrides DOT_PLOT_DIR")
	runCmd.Flags().StringVar(&traceDir, "trace-dir", "", "Directory for evaluation traces; overrides DOT_TRACE_DIR")
	runCmd.Flags().IntVar(&dpi, "dpi", 0, "Chart resolution; overrides DOT_PLOT_DPI")
	runCmd.Flags().BoolVar(&describe, "describe", false, "Print the solver configuration before each run")

	rootCmd.AddCommand(runCmd)
}

func runProblem(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)

	def, err := problems.Lookup(problemName)
	if err != nil {
		return errors.Wrapf(err, "problem %q", problemName)
	}
	if len(startX) > 0 && len(startX) != def.Variables {
		return errors.Errorf("--x has %d values, problem %s has %d variables", len(startX), def.Name, def.Variables)
	}
	factory, err := solverFactory(cfg.DOT.Backend, cfg.DOT.LibraryPath)
	if err != nil {
		return errors.Wrap(err, "backend")
	}

	out := cmd.OutOrStdout()
	for _, m := range methods {
		sc := cfg.Solver()
		sc.Method = dot.Method(m)
		if describe {
			sc.Describe(out)
		}

		res, err := runOnce(cmd.Context(), factory, sc, def)
		if err != nil {
			return errors.Wrapf(err, "method %d", m)
		}
		if err := dot.Report(out, res); err != nil {
			return errors.Wrap(err, "report")
		}

		if cfg.Output.PlotDir != "" {
			path, err := chart.Save(cfg.Output.PlotDir, res, cfg.Output.PlotDPI)
			if err != nil {
				return errors.Wrapf(err, "method %d: chart", m)
			}
			logger.Info("Chart written", map[string]interface{}{"path": path})
		}
	}
	return nil
}

// applyRunFlags lets explicitly set flags override the environment.
func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("minmax") {
		cfg.DOT.MinMax = minMax
	}
	if flags.Changed("backend") {
		cfg.DOT.Backend = backend
	}
	if flags.Changed("library") {
		cfg.DOT.LibraryPath = libraryPath
	}
	if flags.Changed("plot-dir") {
		cfg.Output.PlotDir = plotDir
	}
	if flags.Changed("trace-dir") {
		cfg.Output.TraceDir = traceDir
	}
	if flags.Changed("dpi") {
		cfg.Output.PlotDPI = dpi
	}
}

func runOnce(ctx context.Context, factory server.SolverFactory, sc dot.Config, def problems.Definition) (*dot.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runID := fmt.Sprintf("%s_nMinMax_%d_nMethod_%d", def.Name, sc.MinMax, sc.Method)
	runLogger := logger.WithFields(map[string]interface{}{"run_id": runID})

	opts := []dot.Option{dot.WithLogger(logging.NewZapLogger(runLogger))}
	var trace *store.TraceWriter
	if cfg.Output.TraceDir != "" {
		var err error
		trace, err = store.NewTraceWriter(cfg.Output.TraceDir, runID, false)
		if err != nil {
			return nil, err
		}
		// Close is idempotent; the deferred call covers the failure paths.
		defer trace.Close()
		opts = append(opts, dot.WithObserver(trace))
	}

	solver, err := factory(sc, opts...)
	if err != nil {
		return nil, err
	}
	defer solver.Close()

	p := def.Problem()
	if len(startX) > 0 {
		p = def.ProblemFrom(startX)
	}

	start := time.Now()
	res, err := solver.Fit(ctx, p)
	if err != nil {
		return nil, err
	}
	if trace != nil {
		if err := trace.Close(); err != nil {
			return nil, errors.Wrapf(err, "trace %s", trace.Path())
		}
	}

	runLogger.Info("Run complete", map[string]interface{}{
		"problem":     def.Name,
		"method":      sc.Method.String(),
		"evaluations": res.Evaluations,
		"objective":   res.Objective,
		"elapsed":     time.Since(start).String(),
	})
	return res, nil
}
