package dot

import (
	"go.uber.org/zap"
)

// Evaluation is one evaluator call as seen by observers.
type Evaluation struct {
	// Index counts evaluations from 1.
	Index         int
	X             []float64
	Objective     float64
	MaxConstraint float64
	Constrained   bool
}

// Result is the outcome of a finished run.
type Result struct {
	Method Method
	MinMax Direction
	Sizing Sizing
	// X is the design DOT left in the buffer when it stopped.
	X []float64
	// Objective and Constraints are the values last written by the evaluator.
	Objective   float64
	Constraints []float64
	// Evaluations counts evaluator calls; Calls counts DOT calls.
	Evaluations int
	Calls       int
	History     *History
}

// Run is one optimization in progress: a frame, its workspace, and the
// history built while stepping. A run is not safe for concurrent use.
type Run struct {
	solver    *Solver
	frame     Frame
	workspace *Workspace
	eval      Evaluator
	param     []float64
	history   *History
	state     State
	calls     int
	result    *Result
	closed    bool
	unlock    func()
}

// State returns the state after the last Step. A fresh run is in Continue.
func (r *Run) State() State { return r.state }

// Calls returns the number of DOT calls made so far.
func (r *Run) Calls() int { return r.calls }

// History returns the evaluations recorded so far.
func (r *Run) History() *History { return r.history }

// Frame exposes the live parameter list. Callers must not resize its slices.
func (r *Run) Frame() *Frame { return &r.frame }

// Step calls DOT once. When DOT asks for an evaluation the evaluator is run
// against the candidate in X and Continue is returned; when DOT stops the run
// is finished and Done is returned.
func (r *Run) Step() (State, error) {
	if r.closed || r.state == Done {
		return r.state, &Error{Message: "step after completion", Op: "step", Component: "run", Err: ErrRunClosed}
	}

	if err := r.solver.lib.Solve(&r.frame); err != nil {
		return r.state, WrapError(err, "DOT call failed").WithOperation("step").WithComponent("run")
	}
	r.calls++

	r.state = Transition(r.frame.Info)
	if r.state == Done {
		r.finish()
		return Done, nil
	}

	r.eval.Evaluate(r.frame.X, &r.frame.Obj, r.frame.G, r.param)
	r.history.record(r.frame.X, r.frame.Obj, r.frame.G)

	ev := Evaluation{
		Index:       r.history.Count,
		X:           r.history.X[len(r.history.X)-1],
		Objective:   r.frame.Obj,
		Constrained: len(r.frame.G) > 0,
	}
	if ev.Constrained {
		ev.MaxConstraint = r.history.MaxConstraint[len(r.history.MaxConstraint)-1]
	}
	r.solver.logger.Debug("evaluation",
		zap.Int("index", ev.Index),
		zap.Float64("objective", ev.Objective),
		zap.Float64("max_constraint", ev.MaxConstraint),
		zap.Float64s("x", ev.X),
	)
	for _, o := range r.solver.observers {
		o.Evaluated(ev)
	}
	return Continue, nil
}

// Result returns the outcome once the run is Done, nil before.
func (r *Run) Result() *Result {
	return r.result
}

// Close frees the workspace. It is safe to call more than once.
func (r *Run) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.workspace.release()
	r.frame.WK = nil
	r.frame.IWK = nil
	if r.unlock != nil {
		r.unlock()
		r.unlock = nil
	}
	return nil
}

func (r *Run) finish() {
	r.result = &Result{
		Method:      r.frame.Method,
		MinMax:      r.frame.MinMax,
		Sizing:      r.workspace.Sizing,
		X:           append([]float64(nil), r.frame.X...),
		Objective:   r.frame.Obj,
		Constraints: append([]float64(nil), r.frame.G...),
		Evaluations: r.history.Count,
		Calls:       r.calls,
		History:     r.history,
	}
	r.solver.logger.Info("run finished",
		zap.Stringer("method", r.frame.Method),
		zap.Int("evaluations", r.result.Evaluations),
		zap.Int("calls", r.result.Calls),
		zap.Float64("objective", r.result.Objective),
	)
	for _, o := range r.solver.observers {
		o.RunFinished(r.result)
	}
}
