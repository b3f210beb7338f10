package dot

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
)

// Report writes a text summary of a finished run: evaluation count, initial
// and optimum objective, initial and optimum maximum constraint (or a note
// that the problem is unconstrained) and the initial and optimum designs.
func Report(w io.Writer, res *Result) error {
	if res == nil || res.History == nil {
		return NewErrorf("no result to report").WithOperation("report")
	}
	h := res.History
	pw := &printer{w: w}

	pw.printf("-----nMinMax = %d , nMethod = %d-----\n", res.MinMax, res.Method)
	pw.printf("Function calls = %d\n", res.Evaluations)
	if h.Count > 0 {
		pw.printf("Initial Objective Function = %1.5e\n", h.Objective[0])
	}
	pw.printf("Optimum Objective function = %1.5e\n", res.Objective)

	if h.Constrained() {
		pw.printf("Initial MAX G = %1.5e\n", h.MaxConstraint[0])
		pw.printf("Optimum MAX G = %1.5e\n", floats.Max(res.Constraints))
	} else {
		pw.printf("Unconstrained Problem(nCons=0)\n")
	}

	if h.Count > 0 {
		pw.printf("Initial X\n")
		for i, v := range h.X[0] {
			pw.printf("X[%d] = %1.5e\n", i, v)
		}
	}
	pw.printf("Optimum X\n")
	for i, v := range res.X {
		pw.printf("X[%d] = %1.5e\n", i, v)
	}
	pw.printf("--------------E N D-----------------\n\n")
	return pw.err
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
