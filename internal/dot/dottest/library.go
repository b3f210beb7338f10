// Package dottest provides an in-process DOT library.
//
// Library answers DOT510 and DOT calls with the same reverse-communication
// protocol as the native artifact, keeping all of its state in the caller's
// workspace. It runs a bounded compass search on a quadratic exterior
// penalty, which is enough to exercise the binding end to end without the
// compiled solver.
package dottest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/dotbind/internal/dot"
)

// Real workspace layout.
const (
	wkStep = iota
	wkMerit
	wkObj
	wkHeader
)

// Integer workspace layout.
const (
	iwkPhase = iota
	iwkDirection
	iwkEvaluations
	iwkMoves
	iwkHeader
)

const (
	phaseIdle = iota
	phaseBase
	phaseTrial
)

// Library is a deterministic stand-in for the native DOT artifact.
type Library struct {
	// InitialStep is the first compass step as a fraction of each
	// variable's range. Zero means 0.1.
	InitialStep float64
	// Tolerance stops the search once the step fraction drops below it.
	// Zero means 1e-4.
	Tolerance float64
	// MaxEvaluations caps evaluator requests per run. Zero means 5000.
	MaxEvaluations int
	// Penalty weights squared constraint violations. Zero means 1e3.
	Penalty float64
	// SizeError, when nonzero, is returned as IERR from every sizing query.
	SizeError int32

	// SizeCalls and SolveCalls count calls into the library.
	SizeCalls  int
	SolveCalls int
}

// New returns a Library with default settings.
func New() *Library {
	return &Library{}
}

var _ dot.Library = (*Library)(nil)

// RealSize is the real workspace the search needs for a problem.
func RealSize(ndv, ncon int) int32 {
	return int32(wkHeader + ndv + ncon)
}

// IntSize is the integer workspace the search needs.
func IntSize() int32 {
	return iwkHeader
}

// Size answers the DOT510 query.
func (l *Library) Size(req *dot.SizeRequest) dot.Sizing {
	l.SizeCalls++

	var s dot.Sizing
	switch {
	case l.SizeError != 0:
		s.IERR = l.SizeError
	case req.NDV < 1:
		s.IERR = 1
	case req.NCON < 0:
		s.IERR = 2
	case len(req.XL) < int(req.NDV) || len(req.XU) < int(req.NDV):
		s.IERR = 3
	case req.Method < dot.MethodDefault || req.Method > dot.MethodSQP:
		s.IERR = 4
	}
	if s.IERR == 0 {
		for i := 0; i < int(req.NDV); i++ {
			if req.XL[i] > req.XU[i] {
				s.IERR = 5
				break
			}
		}
	}
	if s.IERR != 0 {
		return s
	}

	ndv, ncon := int(req.NDV), int(req.NCON)
	s.NRWK = RealSize(ndv, ncon)
	s.NRWKMN = s.NRWK
	s.NRWKMX = s.NRWK + req.NDV
	s.NRIWK = IntSize()
	s.NRIWD = s.NRIWK
	s.NGMAX = req.NCON
	return s
}

// Solve answers one DOT call.
func (l *Library) Solve(f *dot.Frame) error {
	l.SolveCalls++
	if err := l.check(f); err != nil {
		return err
	}

	switch f.IWK[iwkPhase] {
	case phaseBase:
		f.WK[wkMerit] = l.merit(f)
		f.WK[wkObj] = f.Obj
		copy(baseG(f), f.G)
		l.next(f, 0)
	case phaseTrial:
		m := l.merit(f)
		base := f.WK[wkMerit]
		if m < base-1e-12*math.Max(1, math.Abs(base)) {
			copy(baseX(f), f.X)
			copy(baseG(f), f.G)
			f.WK[wkMerit] = m
			f.WK[wkObj] = f.Obj
			f.IWK[iwkMoves]++
			l.next(f, 0)
		} else {
			l.next(f, int(f.IWK[iwkDirection])+1)
		}
	default:
		l.start(f)
	}
	return nil
}

// Close is a no-op.
func (l *Library) Close() error { return nil }

func (l *Library) check(f *dot.Frame) error {
	ndv, ncon := int(f.NDV), int(f.NCON)
	switch {
	case len(f.X) != ndv || len(f.XL) != ndv || len(f.XU) != ndv:
		return fmt.Errorf("dottest: design vectors do not have NDV=%d entries", ndv)
	case len(f.G) != ncon:
		return fmt.Errorf("dottest: constraint vector has %d entries, NCON=%d", len(f.G), ncon)
	case f.NRWK < RealSize(ndv, ncon) || len(f.WK) < int(f.NRWK):
		return fmt.Errorf("dottest: real workspace too small: NRWK=%d len=%d need %d", f.NRWK, len(f.WK), RealSize(ndv, ncon))
	case f.NRIWK < IntSize() || len(f.IWK) < int(f.NRIWK):
		return fmt.Errorf("dottest: integer workspace too small: NRIWK=%d len=%d need %d", f.NRIWK, len(f.IWK), IntSize())
	case len(f.RPRM) != dot.ControlSize || len(f.IPRM) != dot.ControlSize:
		return fmt.Errorf("dottest: control arrays must have %d entries", dot.ControlSize)
	}
	return nil
}

func (l *Library) start(f *dot.Frame) {
	for i := range f.X {
		f.X[i] = clamp(f.X[i], f.XL[i], f.XU[i])
	}
	copy(baseX(f), f.X)
	f.WK[wkStep] = l.initialStep()
	f.IWK[iwkDirection] = 0
	f.IWK[iwkEvaluations] = 0
	f.IWK[iwkMoves] = 0
	l.request(f, phaseBase)
}

// next proposes the first trial point from direction dir onward, shrinking
// the step whenever every direction has been tried.
func (l *Library) next(f *dot.Frame, dir int) {
	n := int(f.NDV)
	bx := baseX(f)
	for {
		if int(f.IWK[iwkEvaluations]) >= l.maxEvaluations() {
			l.finish(f)
			return
		}
		step := f.WK[wkStep]
		for d := dir; d < 2*n; d++ {
			k := d / 2
			sign := 1.0
			if d%2 == 1 {
				sign = -1
			}
			trial := clamp(bx[k]+sign*step*(f.XU[k]-f.XL[k]), f.XL[k], f.XU[k])
			if trial == bx[k] {
				continue
			}
			copy(f.X, bx)
			f.X[k] = trial
			f.IWK[iwkDirection] = int32(d)
			l.request(f, phaseTrial)
			return
		}
		f.WK[wkStep] = step / 2
		if f.WK[wkStep] < l.tolerance() {
			l.finish(f)
			return
		}
		dir = 0
	}
}

func (l *Library) request(f *dot.Frame, phase int32) {
	f.IWK[iwkPhase] = phase
	f.IWK[iwkEvaluations]++
	f.Info = 1
}

func (l *Library) finish(f *dot.Frame) {
	copy(f.X, baseX(f))
	copy(f.G, baseG(f))
	f.Obj = f.WK[wkObj]
	f.IWK[iwkPhase] = phaseIdle
	f.Info = 0
}

func (l *Library) merit(f *dot.Frame) float64 {
	v := f.Obj
	if f.MinMax > 0 {
		v = -v
	}
	if len(f.G) == 0 {
		return v
	}
	viol := make([]float64, len(f.G))
	for i, g := range f.G {
		viol[i] = math.Max(g, 0)
	}
	return v + l.penalty()*floats.Dot(viol, viol)
}

func baseX(f *dot.Frame) []float64 {
	return f.WK[wkHeader : wkHeader+int(f.NDV)]
}

func baseG(f *dot.Frame) []float64 {
	start := wkHeader + int(f.NDV)
	return f.WK[start : start+int(f.NCON)]
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func (l *Library) initialStep() float64 {
	if l.InitialStep > 0 {
		return l.InitialStep
	}
	return 0.1
}

func (l *Library) tolerance() float64 {
	if l.Tolerance > 0 {
		return l.Tolerance
	}
	return 1e-4
}

func (l *Library) maxEvaluations() int {
	if l.MaxEvaluations > 0 {
		return l.MaxEvaluations
	}
	return 5000
}

func (l *Library) penalty() float64 {
	if l.Penalty > 0 {
		return l.Penalty
	}
	return 1e3
}
