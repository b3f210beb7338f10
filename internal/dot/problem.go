package dot

import "fmt"

// Evaluator computes the objective and constraints at x. It writes the
// objective into *obj and the constraint values into g, which has exactly
// NCON entries. param is the configured user parameter vector.
type Evaluator interface {
	Evaluate(x []float64, obj *float64, g []float64, param []float64)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(x []float64, obj *float64, g []float64, param []float64)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(x []float64, obj *float64, g []float64, param []float64) {
	f(x, obj, g, param)
}

// Problem is the design space and evaluator for one run. Feasibility is
// g[i] <= 0 for every constraint.
type Problem struct {
	// X is the starting design; it is copied and never modified.
	X           []float64
	Lower       []float64
	Upper       []float64
	Constraints int
	Eval        Evaluator
}

// Validate checks the vector lengths agree.
func (p Problem) Validate() error {
	n := len(p.X)
	switch {
	case n < 1:
		return p.invalid("at least one design variable is required")
	case len(p.Lower) != n:
		return p.invalid(fmt.Sprintf("lower bounds have %d entries, want %d", len(p.Lower), n))
	case len(p.Upper) != n:
		return p.invalid(fmt.Sprintf("upper bounds have %d entries, want %d", len(p.Upper), n))
	case p.Constraints < 0:
		return p.invalid(fmt.Sprintf("constraint count must not be negative, got %d", p.Constraints))
	case p.Eval == nil:
		return p.invalid("evaluator is required")
	}
	return nil
}

func (p Problem) invalid(msg string) error {
	return &Error{Message: msg, Op: "validate", Component: "problem", Err: ErrInvalidProblem}
}
