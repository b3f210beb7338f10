package dot

import "unsafe"

// SizeRequest is the input half of the DOT510 parameter list.
type SizeRequest struct {
	NDV    int32
	NCON   int32
	Method Method
	XL     []float64
	XU     []float64
	MaxInt int32
}

// Sizing is the output half of the DOT510 parameter list.
type Sizing struct {
	// NRWK is the real workspace DOT needs for this problem.
	NRWK int32
	// NRWKMN is the smallest real workspace DOT can run with.
	NRWKMN int32
	NRIWD  int32
	// NRWKMX is the real workspace the binding allocates.
	NRWKMX int32
	// NRIWK is the integer workspace the binding allocates.
	NRIWK  int32
	NSTORE int32
	// NGMAX is the largest constraint group DOT keeps active.
	NGMAX int32
	// IERR is nonzero when DOT rejects the problem dimensions.
	IERR int32
}

// Frame is the full DOT parameter list for one call. Every field is passed by
// address and the solver writes into Info, X, Obj, G and both workspaces.
type Frame struct {
	Info   int32
	Method Method
	Print  int32
	NDV    int32
	NCON   int32
	X      []float64
	XL     []float64
	XU     []float64
	Obj    float64
	MinMax Direction
	// G has NCON entries; its backing array always holds at least one so the
	// address is valid for unconstrained problems.
	G     []float64
	RPRM  []float64
	IPRM  []int32
	WK    []float64
	NRWK  int32
	IWK   []int32
	NRIWK int32
}

// Library is a loaded DOT artifact. Implementations are not safe for
// concurrent use: DOT keeps state between calls.
type Library interface {
	// Size runs the DOT510 workspace query.
	Size(req *SizeRequest) Sizing
	// Solve runs one DOT call against the frame.
	Solve(f *Frame) error
	// Close releases the artifact.
	Close() error
}

// floatPtr returns the address of the backing array of s, which must have
// capacity for at least one element.
func floatPtr(s []float64) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(s))
}

func intPtr(s []int32) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(s))
}
