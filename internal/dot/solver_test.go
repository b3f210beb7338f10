package dot_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/dotbind/internal/dot"
	"github.com/copyleftdev/dotbind/internal/dot/dottest"
)

// paraboloid is sum((x_i - c)^2) with optional constraints x_i - limit <= 0.
func paraboloid(c, limit float64, ncon int) dot.EvaluatorFunc {
	return func(x []float64, obj *float64, g []float64, _ []float64) {
		sum := 0.0
		for _, v := range x {
			sum += (v - c) * (v - c)
		}
		*obj = sum
		for i := 0; i < ncon; i++ {
			g[i] = x[i%len(x)] - limit
		}
	}
}

func constant(x []float64, obj *float64, g []float64, _ []float64) {
	*obj = 3
	for i := range g {
		g[i] = -1
	}
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newSolver(t *testing.T, lib dot.Library, mutate ...func(*dot.Config)) *dot.Solver {
	t.Helper()
	cfg := dot.DefaultConfig()
	cfg.Method = dot.MethodMMFD
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := dot.NewWithLibrary(lib, cfg)
	require.NoError(t, err)
	return s
}

func TestNewForPlatformUnsupported(t *testing.T) {
	for _, goos := range []string{"darwin", "freebsd", "plan9", "js", ""} {
		t.Run(goos, func(t *testing.T) {
			s, err := dot.NewForPlatform(goos, dot.DefaultConfig())
			assert.Nil(t, s)
			assert.ErrorIs(t, err, dot.ErrUnsupportedPlatform)
		})
	}
}

func TestNewMissingLibrary(t *testing.T) {
	if _, err := dot.HostPlatform(); err != nil {
		t.Skipf("no DOT artifact for this host: %v", err)
	}
	path := filepath.Join(t.TempDir(), "missing.so")
	s, err := dot.New(dot.DefaultConfig(), dot.WithLibraryPath(path))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, dot.ErrLibraryLoad)
}

func TestNewWithLibrary(t *testing.T) {
	s, err := dot.NewWithLibrary(dottest.New(), dot.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, dot.DefaultConfig().MaxInt, s.Config().MaxInt)

	_, err = dot.NewWithLibrary(nil, dot.DefaultConfig())
	assert.Error(t, err)

	bad := dot.DefaultConfig()
	bad.Method = 9
	_, err = dot.NewWithLibrary(dottest.New(), bad)
	assert.Error(t, err)
}

func TestSizingFailureIsFatal(t *testing.T) {
	lib := &dottest.Library{SizeError: 7}
	s := newSolver(t, lib)

	called := 0
	res, err := s.Fit(context.Background(), dot.Problem{
		X:           []float64{1, 1},
		Lower:       []float64{0, 0},
		Upper:       []float64{2, 2},
		Constraints: 1,
		Eval: dot.EvaluatorFunc(func(x []float64, obj *float64, g []float64, _ []float64) {
			called++
		}),
	})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, dot.ErrWorkspaceSizing)

	var se *dot.SizingError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int32(7), se.Code)

	assert.Equal(t, 1, lib.SizeCalls)
	assert.Equal(t, 0, lib.SolveCalls, "DOT must not be called after a sizing failure")
	assert.Equal(t, 0, called)
}

func TestSizingRejectsInvertedBounds(t *testing.T) {
	s := newSolver(t, dottest.New())
	_, err := s.Size(dot.Problem{
		X:     []float64{1},
		Lower: []float64{2},
		Upper: []float64{0},
		Eval:  dot.EvaluatorFunc(constant),
	})
	assert.ErrorIs(t, err, dot.ErrWorkspaceSizing)
}

func TestWorkspaceLargeEnoughForAllDimensions(t *testing.T) {
	for ndv := 1; ndv <= 5; ndv++ {
		for ncon := 0; ncon <= 3; ncon++ {
			t.Run(fmt.Sprintf("ndv=%d/ncon=%d", ndv, ncon), func(t *testing.T) {
				s := newSolver(t, &dottest.Library{MaxEvaluations: 200})
				p := dot.Problem{
					X:           uniform(ndv, 0.5),
					Lower:       uniform(ndv, -2),
					Upper:       uniform(ndv, 2),
					Constraints: ncon,
					Eval:        paraboloid(1, 0.8, ncon),
				}

				run, err := s.Start(p)
				require.NoError(t, err)
				defer run.Close()

				sz, err := s.Size(p)
				require.NoError(t, err)
				assert.Len(t, run.Frame().WK, int(sz.NRWKMX))
				assert.Len(t, run.Frame().IWK, int(sz.NRIWK))
				assert.Len(t, run.Frame().G, ncon)

				for {
					state, err := run.Step()
					require.NoError(t, err)
					if state == dot.Done {
						break
					}
				}
			})
		}
	}
}

func TestStepEvaluatesOncePerContinue(t *testing.T) {
	lib := dottest.New()
	s := newSolver(t, lib)

	evals := 0
	run, err := s.Start(dot.Problem{
		X:           []float64{0, 0},
		Lower:       []float64{-5, -5},
		Upper:       []float64{5, 5},
		Constraints: 1,
		Eval: dot.EvaluatorFunc(func(x []float64, obj *float64, g []float64, p []float64) {
			evals++
			paraboloid(2, 1, 1)(x, obj, g, p)
		}),
	})
	require.NoError(t, err)
	defer run.Close()

	assert.Equal(t, dot.Continue, run.State())

	doneSteps := 0
	for steps := 1; ; steps++ {
		before := evals
		state, err := run.Step()
		require.NoError(t, err)
		if state == dot.Done {
			doneSteps++
			assert.Equal(t, before, evals, "no evaluation on the terminating call")
			assert.Equal(t, steps, run.Calls())
			break
		}
		assert.Equal(t, before+1, evals)
	}

	assert.Equal(t, 1, doneSteps)
	assert.Equal(t, evals+1, run.Calls())
	assert.Equal(t, evals+1, lib.SolveCalls)

	state, err := run.Step()
	assert.Equal(t, dot.Done, state)
	assert.ErrorIs(t, err, dot.ErrRunClosed)

	res := run.Result()
	require.NotNil(t, res)
	assert.Equal(t, evals, res.Evaluations)
}

func TestHistoryLengths(t *testing.T) {
	tests := []struct {
		name string
		ncon int
	}{
		{name: "constrained", ncon: 2},
		{name: "unconstrained", ncon: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSolver(t, dottest.New())
			res, err := s.Fit(context.Background(), dot.Problem{
				X:           []float64{0.2, 0.4, 0.6},
				Lower:       uniform(3, -1),
				Upper:       uniform(3, 3),
				Constraints: tt.ncon,
				Eval:        paraboloid(1, 0.9, tt.ncon),
			})
			require.NoError(t, err)

			h := res.History
			assert.Equal(t, res.Evaluations, h.Count)
			assert.Len(t, h.Objective, h.Count)
			assert.Len(t, h.X, h.Count)
			if tt.ncon > 0 {
				assert.Len(t, h.MaxConstraint, h.Count)
				assert.True(t, h.Constrained())
			} else {
				assert.Empty(t, h.MaxConstraint)
				assert.False(t, h.Constrained())
			}

			m := h.Matrix()
			require.NotNil(t, m)
			r, c := m.Dims()
			assert.Equal(t, h.Count, r)
			assert.Equal(t, 3, c)
			assert.Equal(t, h.X[0][1], m.At(0, 1))
			assert.Equal(t, h.Variable(2), mat.Col(nil, 2, m))
		})
	}
}

func TestFinalVectorLength(t *testing.T) {
	for n := 1; n <= 6; n++ {
		s := newSolver(t, dottest.New())
		res, err := s.Fit(context.Background(), dot.Problem{
			X:     uniform(n, 1),
			Lower: uniform(n, 0),
			Upper: uniform(n, 4),
			Eval:  paraboloid(2, 0, 0),
		})
		require.NoError(t, err)
		assert.Len(t, res.X, n)
		assert.Empty(t, res.Constraints)
	}
}

func TestConstantObjectiveStopsWithoutMoving(t *testing.T) {
	s := newSolver(t, dottest.New())
	x0 := []float64{0}
	res, err := s.Fit(context.Background(), dot.Problem{
		X:     x0,
		Lower: []float64{-10},
		Upper: []float64{10},
		Eval:  dot.EvaluatorFunc(constant),
	})
	require.NoError(t, err)

	// one base point, then both directions at each of ten step sizes
	assert.Equal(t, 21, res.Evaluations)
	assert.Equal(t, x0, res.X)
	assert.Equal(t, []float64{0}, x0, "the starting design must not be modified")
	assert.Equal(t, 3.0, res.Objective)
}

func TestMaximize(t *testing.T) {
	s := newSolver(t, dottest.New(), func(c *dot.Config) { c.MinMax = dot.Maximize })
	res, err := s.Fit(context.Background(), dot.Problem{
		X:     []float64{0},
		Lower: []float64{-4},
		Upper: []float64{4},
		Eval: dot.EvaluatorFunc(func(x []float64, obj *float64, _ []float64, _ []float64) {
			*obj = -(x[0] - 1) * (x[0] - 1)
		}),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X[0], 1e-2)
	assert.Equal(t, dot.Maximize, res.MinMax)
}

func TestParamIsPassedThrough(t *testing.T) {
	s := newSolver(t, &dottest.Library{MaxEvaluations: 5}, func(c *dot.Config) {
		c.Param = []float64{4, 2}
	})

	var seen [][]float64
	_, err := s.Fit(context.Background(), dot.Problem{
		X:     []float64{1},
		Lower: []float64{0},
		Upper: []float64{2},
		Eval: dot.EvaluatorFunc(func(x []float64, obj *float64, _ []float64, p []float64) {
			seen = append(seen, append([]float64(nil), p...))
			*obj = p[0] * x[0]
		}),
	})
	require.NoError(t, err)
	require.Len(t, seen, 5)
	for _, p := range seen {
		assert.Equal(t, []float64{4, 2}, p)
	}
}

func TestInvalidProblem(t *testing.T) {
	s := newSolver(t, dottest.New())
	tests := []struct {
		name string
		p    dot.Problem
	}{
		{"no variables", dot.Problem{Eval: dot.EvaluatorFunc(constant)}},
		{"short lower", dot.Problem{X: []float64{1, 2}, Lower: []float64{0}, Upper: []float64{3, 3}, Eval: dot.EvaluatorFunc(constant)}},
		{"short upper", dot.Problem{X: []float64{1}, Lower: []float64{0}, Upper: nil, Eval: dot.EvaluatorFunc(constant)}},
		{"negative constraints", dot.Problem{X: []float64{1}, Lower: []float64{0}, Upper: []float64{2}, Constraints: -1, Eval: dot.EvaluatorFunc(constant)}},
		{"no evaluator", dot.Problem{X: []float64{1}, Lower: []float64{0}, Upper: []float64{2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Fit(context.Background(), tt.p)
			assert.ErrorIs(t, err, dot.ErrInvalidProblem)
			_, ok := dot.IsDotError(err)
			assert.True(t, ok)
		})
	}
}

func TestFitHonoursCancelledContextBeforeStart(t *testing.T) {
	lib := dottest.New()
	s := newSolver(t, lib)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fit(ctx, dot.Problem{X: []float64{1}, Lower: []float64{0}, Upper: []float64{2}, Eval: dot.EvaluatorFunc(constant)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, lib.SizeCalls)
}

type recorder struct {
	started  []dot.RunInfo
	evals    []dot.Evaluation
	finished []*dot.Result
}

func (r *recorder) RunStarted(info dot.RunInfo) { r.started = append(r.started, info) }
func (r *recorder) Evaluated(ev dot.Evaluation) { r.evals = append(r.evals, ev) }
func (r *recorder) RunFinished(res *dot.Result) { r.finished = append(r.finished, res) }

func TestObserver(t *testing.T) {
	rec := &recorder{}
	cfg := dot.DefaultConfig()
	cfg.Method = dot.MethodSQP
	s, err := dot.NewWithLibrary(&dottest.Library{MaxEvaluations: 30}, cfg, dot.WithObserver(rec))
	require.NoError(t, err)

	res, err := s.Fit(context.Background(), dot.Problem{
		X:           []float64{1, 1},
		Lower:       []float64{0, 0},
		Upper:       []float64{3, 3},
		Constraints: 1,
		Eval:        paraboloid(2, 1.5, 1),
	})
	require.NoError(t, err)

	require.Len(t, rec.started, 1)
	assert.Equal(t, dot.MethodSQP, rec.started[0].Method)
	assert.Equal(t, 2, rec.started[0].Variables)
	assert.Equal(t, 1, rec.started[0].Constraints)

	require.Len(t, rec.evals, res.Evaluations)
	for i, ev := range rec.evals {
		assert.Equal(t, i+1, ev.Index)
		assert.True(t, ev.Constrained)
		assert.Equal(t, res.History.MaxConstraint[i], ev.MaxConstraint)
	}

	require.Len(t, rec.finished, 1)
	assert.Same(t, res, rec.finished[0])
}

func TestSequentialRunsAreIndependent(t *testing.T) {
	p := dot.Problem{
		X:           []float64{1, 1, 1},
		Lower:       uniform(3, 0.001),
		Upper:       uniform(3, 100),
		Constraints: 1,
		Eval:        paraboloid(3, 2.5, 1),
	}

	var results []*dot.Result
	for _, m := range []dot.Method{dot.MethodMMFD, dot.MethodSLP, dot.MethodSQP} {
		s := newSolver(t, dottest.New(), func(c *dot.Config) { c.Method = m })
		res, err := s.Fit(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, m, res.Method)
		results = append(results, res)
	}

	// the stand-in ignores the method, so identical inputs give identical runs
	assert.Equal(t, results[0].X, results[1].X)
	assert.Equal(t, results[1].Evaluations, results[2].Evaluations)
	assert.Equal(t, []float64{1, 1, 1}, p.X)
}

func TestReport(t *testing.T) {
	s := newSolver(t, dottest.New())
	res, err := s.Fit(context.Background(), dot.Problem{
		X:           []float64{1, 1},
		Lower:       []float64{0, 0},
		Upper:       []float64{4, 4},
		Constraints: 1,
		Eval:        paraboloid(2, 1.5, 1),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dot.Report(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "-----nMinMax = 0 , nMethod = 1-----")
	assert.Contains(t, out, fmt.Sprintf("Function calls = %d\n", res.Evaluations))
	assert.Contains(t, out, "Initial Objective Function = 2.00000e+00")
	assert.Contains(t, out, "Initial MAX G = -5.00000e-01")
	assert.Contains(t, out, "Optimum MAX G = ")
	assert.Contains(t, out, "Initial X\nX[0] = 1.00000e+00\nX[1] = 1.00000e+00\n")
	assert.Contains(t, out, "--------------E N D-----------------")
	assert.NotContains(t, out, "Unconstrained")
}

func TestReportUnconstrained(t *testing.T) {
	s := newSolver(t, dottest.New())
	res, err := s.Fit(context.Background(), dot.Problem{
		X:     []float64{1},
		Lower: []float64{-3},
		Upper: []float64{3},
		Eval:  paraboloid(0, 0, 0),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.X[0], 1e-2)
	assert.False(t, math.IsNaN(res.Objective))

	var buf bytes.Buffer
	require.NoError(t, dot.Report(&buf, res))
	assert.Contains(t, buf.String(), "Unconstrained Problem(nCons=0)")
	assert.NotContains(t, buf.String(), "MAX G")
}

func TestReportWithoutResult(t *testing.T) {
	assert.Error(t, dot.Report(&bytes.Buffer{}, nil))
}
