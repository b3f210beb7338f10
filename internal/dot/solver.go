// Package dot binds the DOT constrained optimization library.
//
// DOT is driven by reverse communication: the caller calls it repeatedly and
// whenever it returns with INFO != 0 the caller evaluates the objective and
// constraints at the design DOT left in X, then calls again. A Run models
// this as a two-state machine (Continue, Done) stepped one DOT call at a time;
// Solver.Fit steps a run to completion.
package dot

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Observer is notified as runs progress. Calls happen on the goroutine that
// steps the run.
type Observer interface {
	RunStarted(info RunInfo)
	Evaluated(ev Evaluation)
	RunFinished(res *Result)
}

// RunInfo describes a run that has been sized and is about to start.
type RunInfo struct {
	Method      Method
	MinMax      Direction
	Variables   int
	Constraints int
	Sizing      Sizing
}

// exclusive is implemented by libraries whose state is process-wide.
type exclusive interface {
	Exclusive() bool
}

// exclusiveMu serializes runs against libraries that keep global state.
var exclusiveMu sync.Mutex

// Option configures a Solver.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	observers   []Observer
	libraryPath string
}

// WithLogger sets the logger used for sizing and run events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers an observer for every run.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithLibraryPath loads the artifact from path instead of the platform default.
func WithLibraryPath(path string) Option {
	return func(o *options) { o.libraryPath = path }
}

// Solver is a configured binding to a DOT library.
type Solver struct {
	lib       Library
	cfg       Config
	logger    *zap.Logger
	observers []Observer
	ownsLib   bool
}

// New loads the DOT artifact for the host platform.
func New(cfg Config, opts ...Option) (*Solver, error) {
	p, err := HostPlatform()
	if err != nil {
		return nil, err
	}
	return newForPlatform(p, cfg, opts...)
}

// NewForPlatform loads the DOT artifact for goos. It fails with
// ErrUnsupportedPlatform for an OS without an artifact.
func NewForPlatform(goos string, cfg Config, opts ...Option) (*Solver, error) {
	p, err := ResolvePlatform(goos)
	if err != nil {
		return nil, err
	}
	return newForPlatform(p, cfg, opts...)
}

func newForPlatform(p Platform, cfg Config, opts ...Option) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	lib, err := openLibrary(p, o.libraryPath)
	if err != nil {
		return nil, err
	}
	o.logger.Info("DOT library loaded",
		zap.String("os", p.OS),
		zap.String("library", p.LibraryName),
		zap.String("path", o.libraryPath),
	)
	s := newSolver(lib, cfg, o)
	s.ownsLib = true
	return s, nil
}

// NewWithLibrary builds a Solver around an already loaded library.
func NewWithLibrary(lib Library, cfg Config, opts ...Option) (*Solver, error) {
	if lib == nil {
		return nil, NewErrorf("library is required").WithOperation("new")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newSolver(lib, cfg, applyOptions(opts)), nil
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

func newSolver(lib Library, cfg Config, o options) *Solver {
	return &Solver{
		lib:       lib,
		cfg:       cfg,
		logger:    o.logger.With(zap.Stringer("method", cfg.Method), zap.Int32("minmax", int32(cfg.MinMax))),
		observers: o.observers,
	}
}

// Config returns the solver configuration.
func (s *Solver) Config() Config { return s.cfg }

// Close releases the library if the solver loaded it.
func (s *Solver) Close() error {
	if !s.ownsLib {
		return nil
	}
	return s.lib.Close()
}

// Size asks DOT how much workspace the problem needs. A nonzero IERR is
// returned as an error wrapping ErrWorkspaceSizing.
func (s *Solver) Size(p Problem) (Sizing, error) {
	if err := p.Validate(); err != nil {
		return Sizing{}, err
	}
	req := SizeRequest{
		NDV:    int32(len(p.X)),
		NCON:   int32(p.Constraints),
		Method: s.cfg.Method,
		XL:     append([]float64(nil), p.Lower...),
		XU:     append([]float64(nil), p.Upper...),
		MaxInt: s.cfg.MaxInt,
	}
	sz := s.lib.Size(&req)
	s.logger.Debug("workspace sized",
		zap.Int32("ndv", req.NDV),
		zap.Int32("ncon", req.NCON),
		zap.Int32("nrwk", sz.NRWK),
		zap.Int32("nrwkmn", sz.NRWKMN),
		zap.Int32("nrwkmx", sz.NRWKMX),
		zap.Int32("nriwk", sz.NRIWK),
		zap.Int32("nstore", sz.NSTORE),
		zap.Int32("ngmax", sz.NGMAX),
		zap.Int32("ierr", sz.IERR),
	)
	if sz.IERR != 0 {
		s.logger.Error("workspace sizing failed", zap.Int32("ierr", sz.IERR))
		return sz, &Error{
			Message:   "DOT rejected the problem dimensions",
			Op:        "size",
			Component: "solver",
			Err:       &SizingError{Code: sz.IERR},
		}
	}
	return sz, nil
}

// Start sizes and allocates the workspace and returns a run ready to step.
// The caller must Close the run.
func (s *Solver) Start(p Problem) (*Run, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var unlock func()
	if ex, ok := s.lib.(exclusive); ok && ex.Exclusive() {
		exclusiveMu.Lock()
		unlock = exclusiveMu.Unlock
	}

	sz, err := s.Size(p)
	if err == nil {
		var ws *Workspace
		ws, err = NewWorkspace(sz)
		if err == nil {
			return s.newRun(p, ws, unlock), nil
		}
	}
	if unlock != nil {
		unlock()
	}
	return nil, err
}

func (s *Solver) newRun(p Problem, ws *Workspace, unlock func()) *Run {
	ndv, ncon := len(p.X), p.Constraints
	g := make([]float64, max(ncon, 1))

	r := &Run{
		solver:    s,
		workspace: ws,
		eval:      p.Eval,
		param:     s.cfg.Param,
		history:   newHistory(64),
		state:     Continue,
		unlock:    unlock,
		frame: Frame{
			Info:   s.cfg.Info,
			Method: s.cfg.Method,
			Print:  s.cfg.Print,
			NDV:    int32(ndv),
			NCON:   int32(ncon),
			X:      append([]float64(nil), p.X...),
			XL:     append([]float64(nil), p.Lower...),
			XU:     append([]float64(nil), p.Upper...),
			MinMax: s.cfg.MinMax,
			G:      g[:ncon],
			RPRM:   append([]float64(nil), s.cfg.RPRM[:]...),
			IPRM:   append([]int32(nil), s.cfg.IPRM[:]...),
			WK:     ws.Real,
			NRWK:   int32(len(ws.Real)),
			IWK:    ws.Int,
			NRIWK:  int32(len(ws.Int)),
		},
	}

	info := RunInfo{
		Method:      s.cfg.Method,
		MinMax:      s.cfg.MinMax,
		Variables:   ndv,
		Constraints: ncon,
		Sizing:      ws.Sizing,
	}
	s.logger.Info("run started",
		zap.Int("variables", ndv),
		zap.Int("constraints", ncon),
		zap.Int32("nrwkmx", ws.Sizing.NRWKMX),
		zap.Int32("nriwk", ws.Sizing.NRIWK),
	)
	for _, o := range s.observers {
		o.RunStarted(info)
	}
	return r
}

// Fit runs the problem until DOT stops. ctx is only checked before the run
// starts; once DOT holds state the run is driven to completion.
func (s *Solver) Fit(ctx context.Context, p Problem) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run, err := s.Start(p)
	if err != nil {
		return nil, err
	}
	defer run.Close()

	for {
		state, err := run.Step()
		if err != nil {
			return nil, err
		}
		if state == Done {
			return run.Result(), nil
		}
	}
}
