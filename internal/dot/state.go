package dot

// State is where a run stands after a DOT call.
type State int

const (
	// Continue means DOT wrote a candidate into X and waits for OBJ and G.
	Continue State = iota
	// Done means DOT stopped and X holds the final design. DOT does not say
	// whether it converged or ran out of iterations.
	Done
)

func (s State) String() string {
	switch s {
	case Continue:
		return "CONTINUE"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Transition maps the INFO field DOT left behind to the next state.
func Transition(info int32) State {
	if info == 0 {
		return Done
	}
	return Continue
}
