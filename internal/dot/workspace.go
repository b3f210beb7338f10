package dot

// Workspace is the scratch memory DOT keeps its state in between calls. It is
// owned by exactly one run.
type Workspace struct {
	Sizing Sizing
	Real   []float64
	Int    []int32
}

// NewWorkspace allocates zeroed buffers of exactly the sizes DOT510 reported.
func NewWorkspace(s Sizing) (*Workspace, error) {
	if s.IERR != 0 {
		return nil, &Error{
			Message:   "DOT rejected the problem dimensions",
			Op:        "size",
			Component: "workspace",
			Err:       &SizingError{Code: s.IERR},
		}
	}
	if s.NRWKMX <= 0 || s.NRIWK <= 0 {
		return nil, &Error{
			Message:   "DOT reported an empty workspace",
			Op:        "size",
			Component: "workspace",
			Err:       ErrWorkspaceSizing,
		}
	}
	return &Workspace{
		Sizing: s,
		Real:   make([]float64, s.NRWKMX),
		Int:    make([]int32, s.NRIWK),
	}, nil
}

// release drops the buffers so a closed run cannot hand them to DOT again.
func (w *Workspace) release() {
	w.Real = nil
	w.Int = nil
}
