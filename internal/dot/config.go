package dot

import (
	"fmt"
	"io"
)

// ControlSize is the length of the RPRM and IPRM control arrays.
const ControlSize = 20

// DefaultMaxInt is the largest integer DOT may use internally unless told otherwise.
const DefaultMaxInt = 20000000

// Method selects the optimization algorithm DOT runs.
type Method int32

const (
	// MethodDefault lets DOT choose; it behaves like MethodMMFD.
	MethodDefault Method = 0
	// MethodMMFD is the modified method of feasible directions.
	MethodMMFD Method = 1
	// MethodSLP is sequential linear programming.
	MethodSLP Method = 2
	// MethodSQP is sequential quadratic programming.
	MethodSQP Method = 3
)

func (m Method) String() string {
	switch m {
	case MethodDefault:
		return "default"
	case MethodMMFD:
		return "MMFD"
	case MethodSLP:
		return "SLP"
	case MethodSQP:
		return "SQP"
	default:
		return fmt.Sprintf("Method(%d)", int32(m))
	}
}

// Direction selects minimization or maximization.
type Direction int32

const (
	// Minimize the objective. DOT also accepts -1 for this.
	Minimize Direction = 0
	// Maximize the objective.
	Maximize Direction = 1
)

// Config is the solver configuration for one run. Zero entries in RPRM and
// IPRM tell DOT to use its own defaults.
type Config struct {
	// Info is the initial value of the INFO status field; 0 starts a new run.
	Info int32
	// Method is the algorithm selector.
	Method Method
	// Print is the DOT print level (0-7); DOT writes its own output.
	Print int32
	// MinMax selects minimization or maximization.
	MinMax Direction
	// MaxInt caps the integer values DOT uses for sizing.
	MaxInt int32
	// Param is handed unchanged to the evaluator on every call.
	Param []float64
	// RPRM holds real-valued control parameters.
	RPRM [ControlSize]float64
	// IPRM holds integer-valued control parameters.
	IPRM [ControlSize]int32
}

// DefaultConfig returns the configuration DOT runs with when nothing is tuned.
func DefaultConfig() Config {
	return Config{
		MaxInt: DefaultMaxInt,
		Param:  make([]float64, 1),
	}
}

// Validate checks the fields the binding itself depends on.
func (c Config) Validate() error {
	switch c.Method {
	case MethodDefault, MethodMMFD, MethodSLP, MethodSQP:
	default:
		return NewErrorf("unknown method %d", int32(c.Method)).WithOperation("validate")
	}
	if c.MinMax != Minimize && c.MinMax != Maximize && c.MinMax != -1 {
		return NewErrorf("minmax must be -1, 0 or 1, got %d", int32(c.MinMax)).WithOperation("validate")
	}
	if c.Print < 0 || c.Print > 7 {
		return NewErrorf("print level must be within 0..7, got %d", c.Print).WithOperation("validate")
	}
	if c.MaxInt <= 0 {
		return NewErrorf("maxint must be positive, got %d", c.MaxInt).WithOperation("validate")
	}
	return nil
}

// Describe writes every configuration field with its Go type.
func (c Config) Describe(w io.Writer) {
	fmt.Fprintf(w, "Info = %d, type = %T\n", c.Info, c.Info)
	fmt.Fprintf(w, "Method = %d (%s), type = %T\n", c.Method, c.Method, c.Method)
	fmt.Fprintf(w, "Print = %d, type = %T\n", c.Print, c.Print)
	fmt.Fprintf(w, "MinMax = %d, type = %T\n", c.MinMax, c.MinMax)
	fmt.Fprintf(w, "MaxInt = %d, type = %T\n", c.MaxInt, c.MaxInt)
	fmt.Fprintf(w, "Param = %v, type = %T\n", c.Param, c.Param)
	fmt.Fprintf(w, "RPRM = %v, type = %T\n", c.RPRM, c.RPRM)
	fmt.Fprintf(w, "IPRM = %v, type = %T\n", c.IPRM, c.IPRM)
}
