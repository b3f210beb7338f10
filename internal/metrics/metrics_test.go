package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/dotbind/internal/dot"
	"github.com/copyleftdev/dotbind/internal/dot/dottest"
	"github.com/copyleftdev/dotbind/internal/problems"
)

func TestCollectorObservesRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	d, err := problems.Lookup("box")
	require.NoError(t, err)

	for _, m := range []dot.Method{dot.MethodMMFD, dot.MethodSLP} {
		cfg := dot.DefaultConfig()
		cfg.Method = m
		s, err := dot.NewWithLibrary(&dottest.Library{MaxEvaluations: 30}, cfg, dot.WithObserver(c))
		require.NoError(t, err)

		res, err := s.Fit(context.Background(), d.Problem())
		require.NoError(t, err)

		assert.Equal(t, 1.0, testutil.ToFloat64(c.runsStarted.WithLabelValues(m.String())))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues(m.String())))
		assert.Equal(t, float64(res.Evaluations), testutil.ToFloat64(c.evaluations.WithLabelValues(m.String())))
		assert.Equal(t, res.Objective, testutil.ToFloat64(c.objective.WithLabelValues(m.String())))
		assert.Equal(t, float64(res.Sizing.NRWKMX), testutil.ToFloat64(c.workspace.WithLabelValues(m.String(), "real")))
	}

	assert.Equal(t, 0.0, testutil.ToFloat64(c.active))
	assert.Equal(t, 2, testutil.CollectAndCount(c.perRun))
}

func TestCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestRunAborted(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.RunStarted(dot.RunInfo{Method: dot.MethodSQP})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.active))
	c.RunAborted()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.active))
}
