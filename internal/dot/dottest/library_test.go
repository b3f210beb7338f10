package dottest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/dotbind/internal/dot"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name string
		lib  *Library
		req  dot.SizeRequest
		ierr int32
	}{
		{"ok", New(), dot.SizeRequest{NDV: 3, NCON: 1, Method: dot.MethodSQP, XL: []float64{0, 0, 0}, XU: []float64{1, 1, 1}}, 0},
		{"no variables", New(), dot.SizeRequest{NDV: 0}, 1},
		{"negative constraints", New(), dot.SizeRequest{NDV: 1, NCON: -1, XL: []float64{0}, XU: []float64{1}}, 2},
		{"short bounds", New(), dot.SizeRequest{NDV: 2, XL: []float64{0}, XU: []float64{1}}, 3},
		{"bad method", New(), dot.SizeRequest{NDV: 1, Method: 5, XL: []float64{0}, XU: []float64{1}}, 4},
		{"inverted bounds", New(), dot.SizeRequest{NDV: 1, XL: []float64{2}, XU: []float64{1}}, 5},
		{"forced", &Library{SizeError: -3}, dot.SizeRequest{NDV: 1, XL: []float64{0}, XU: []float64{1}}, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.lib.Size(&tt.req)
			assert.Equal(t, tt.ierr, s.IERR)
			if tt.ierr == 0 {
				assert.Equal(t, RealSize(3, 1), s.NRWK)
				assert.GreaterOrEqual(t, s.NRWKMX, s.NRWK)
				assert.Equal(t, IntSize(), s.NRIWK)
			}
			assert.Equal(t, 1, tt.lib.SizeCalls)
		})
	}
}

func frame(ndv, ncon int) *dot.Frame {
	return &dot.Frame{
		NDV:   int32(ndv),
		NCON:  int32(ncon),
		X:     make([]float64, ndv),
		XL:    make([]float64, ndv),
		XU:    make([]float64, ndv),
		G:     make([]float64, ncon),
		RPRM:  make([]float64, dot.ControlSize),
		IPRM:  make([]int32, dot.ControlSize),
		WK:    make([]float64, RealSize(ndv, ncon)),
		NRWK:  RealSize(ndv, ncon),
		IWK:   make([]int32, IntSize()),
		NRIWK: IntSize(),
	}
}

func TestSolveRejectsSmallWorkspace(t *testing.T) {
	lib := New()

	f := frame(2, 1)
	f.WK = f.WK[:2]
	assert.Error(t, lib.Solve(f))

	f = frame(2, 1)
	f.NRIWK = 1
	assert.Error(t, lib.Solve(f))

	f = frame(2, 1)
	f.G = nil
	assert.Error(t, lib.Solve(f))
}

func TestSolveProtocol(t *testing.T) {
	lib := &Library{MaxEvaluations: 3}
	f := frame(1, 0)
	f.X[0] = 5
	f.XL[0] = -1
	f.XU[0] = 1

	require.NoError(t, lib.Solve(f))
	assert.Equal(t, int32(1), f.Info, "first call asks for the base point")
	assert.Equal(t, 1.0, f.X[0], "start is clamped into bounds")

	evals := 0
	for f.Info != 0 {
		evals++
		f.Obj = f.X[0] * f.X[0]
		require.NoError(t, lib.Solve(f))
	}

	assert.Equal(t, 3, evals)
	assert.Equal(t, 4, lib.SolveCalls)
	assert.InDelta(t, 0.8, f.X[0], 1e-12)
	assert.InDelta(t, 0.64, f.Obj, 1e-12)
}
