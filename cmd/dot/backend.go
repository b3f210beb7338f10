package main

import (
	"fmt"

	"github.com/copyleftdev/dotbind/internal/config"
	"github.com/copyleftdev/dotbind/internal/dot"
	"github.com/copyleftdev/dotbind/internal/dot/dottest"
	"github.com/copyleftdev/dotbind/internal/server"
)

// solverFactory returns the constructor for the configured backend. The
// emulated backend runs the in-process search for hosts without the
// compiled library.
func solverFactory(backend, libraryPath string) (server.SolverFactory, error) {
	switch backend {
	case config.BackendNative:
		return func(c dot.Config, opts ...dot.Option) (*dot.Solver, error) {
			if libraryPath != "" {
				opts = append(opts, dot.WithLibraryPath(libraryPath))
			}
			return dot.New(c, opts...)
		}, nil
	case config.BackendEmulated:
		return func(c dot.Config, opts ...dot.Option) (*dot.Solver, error) {
			return dot.NewWithLibrary(dottest.New(), c, opts...)
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", backend, config.BackendNative, config.BackendEmulated)
	}
}
