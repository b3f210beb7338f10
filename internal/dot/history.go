package dot

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// History is the per-evaluation record of a run.
type History struct {
	// Objective holds the objective value of every evaluation.
	Objective []float64
	// MaxConstraint holds max(G) of every evaluation; empty when the
	// problem has no constraints.
	MaxConstraint []float64
	// X holds a copy of the design vector of every evaluation.
	X [][]float64
	// Count is the number of evaluations.
	Count int
}

func newHistory(capacity int) *History {
	return &History{
		Objective: make([]float64, 0, capacity),
		X:         make([][]float64, 0, capacity),
	}
}

// record appends one evaluation.
func (h *History) record(x []float64, obj float64, g []float64) {
	h.Objective = append(h.Objective, obj)
	if len(g) > 0 {
		h.MaxConstraint = append(h.MaxConstraint, floats.Max(g))
	}
	h.X = append(h.X, append([]float64(nil), x...))
	h.Count++
}

// Constrained reports whether constraint values were recorded.
func (h *History) Constrained() bool {
	return len(h.MaxConstraint) > 0
}

// Matrix returns the design snapshots as an evaluations x variables matrix,
// or nil when nothing was evaluated.
func (h *History) Matrix() *mat.Dense {
	if len(h.X) == 0 {
		return nil
	}
	rows, cols := len(h.X), len(h.X[0])
	m := mat.NewDense(rows, cols, nil)
	for i, x := range h.X {
		m.SetRow(i, x)
	}
	return m
}

// Variable returns the trace of design variable i across evaluations.
func (h *History) Variable(i int) []float64 {
	out := make([]float64, len(h.X))
	for k, x := range h.X {
		out[k] = x[i]
	}
	return out
}
