// Package problems holds the named example problems the CLI and server run.
package problems

import (
	"errors"
	"fmt"
	"sort"

	"github.com/copyleftdev/dotbind/internal/dot"
)

// ErrUnknownProblem is returned by Lookup for a name that is not registered.
var ErrUnknownProblem = errors.New("unknown problem")

// Definition describes a problem independently of any run.
type Definition struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Variables   int               `json:"variables"`
	Constraints int               `json:"constraints"`
	Start       []float64         `json:"start"`
	Lower       []float64         `json:"lower"`
	Upper       []float64         `json:"upper"`
	Eval        dot.EvaluatorFunc `json:"-"`
}

// Problem returns a dot.Problem starting from the default design.
func (d Definition) Problem() dot.Problem {
	return d.ProblemFrom(d.Start)
}

// ProblemFrom returns a dot.Problem starting from x. The vectors are copied so
// the definition is never modified by a run.
func (d Definition) ProblemFrom(x []float64) dot.Problem {
	return dot.Problem{
		X:           append([]float64(nil), x...),
		Lower:       append([]float64(nil), d.Lower...),
		Upper:       append([]float64(nil), d.Upper...),
		Constraints: d.Constraints,
		Eval:        d.Eval,
	}
}

var registry = map[string]Definition{}

func register(d Definition) {
	if _, dup := registry[d.Name]; dup {
		panic("problems: duplicate registration of " + d.Name)
	}
	d.Variables = len(d.Start)
	registry[d.Name] = d
}

// Lookup returns the problem registered under name.
func Lookup(name string) (Definition, error) {
	d, ok := registry[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownProblem, name)
	}
	return d, nil
}

// Names lists the registered problems in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered problem sorted by name.
func All() []Definition {
	out := make([]Definition, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
