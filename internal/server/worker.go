package server

import (
	"context"
	"fmt"
	"time"

	"github.com/copyleftdev/dotbind/internal/dot"
	"github.com/copyleftdev/dotbind/internal/logging"
	"github.com/copyleftdev/dotbind/internal/problems"
	"github.com/copyleftdev/dotbind/internal/store"
)

// aborter is implemented by observers that track runs left unfinished.
type aborter interface {
	RunAborted()
}

// progress keeps the job's evaluation count current while it runs.
type progress struct {
	jm *JobManager
	id string
}

func (p progress) RunStarted(dot.RunInfo) {}

func (p progress) Evaluated(ev dot.Evaluation) {
	p.jm.UpdateJob(p.id, func(j *Job) { j.Evaluations = ev.Index })
}

func (p progress) RunFinished(*dot.Result) {}

// work runs queued jobs one at a time until the queue is closed or ctx is
// cancelled. DOT keeps state in process-wide memory, so runs never overlap.
func (s *Server) work(ctx context.Context) {
	defer close(s.done)
	for id := range s.queue {
		if ctx.Err() != nil {
			s.markCancelled(id)
			continue
		}
		if err := s.runJob(id); err != nil {
			s.logger.Error("Run failed", map[string]interface{}{
				"run_id": id,
				"error":  err.Error(),
			})
		}
		s.prune()
	}
}

// prune drops the oldest finished runs beyond the retention limit. Their
// summaries stay readable through the store.
func (s *Server) prune() {
	if s.retention <= 0 {
		return
	}
	if n := s.jobs.Prune(s.retention); n > 0 {
		s.logger.Debug("Finished runs evicted", map[string]interface{}{"count": n})
	}
}

func (s *Server) runJob(id string) error {
	job, ok := s.jobs.GetJob(id)
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	def, err := problems.Lookup(job.Request.Problem)
	if err != nil {
		s.markFailed(id, err)
		return err
	}
	cfg, err := s.solverConfig(job.Request)
	if err != nil {
		s.markFailed(id, err)
		return err
	}

	started := time.Now()
	s.jobs.UpdateJob(id, func(j *Job) {
		j.State = StateRunning
		j.StartTime = &started
	})

	runLogger := s.logger.WithFields(map[string]interface{}{"run_id": id})
	opts := []dot.Option{
		dot.WithLogger(logging.NewZapLogger(runLogger)),
		dot.WithObserver(progress{jm: s.jobs, id: id}),
	}
	for _, o := range s.observers {
		opts = append(opts, dot.WithObserver(o))
	}

	var trace *store.TraceWriter
	if s.traceDir != "" {
		trace, err = store.NewTraceWriter(s.traceDir, id, false)
		if err != nil {
			s.markFailed(id, err)
			return err
		}
		opts = append(opts, dot.WithObserver(trace))
	}

	res, err := s.solve(cfg, def, job.Request.X, opts)
	if trace != nil {
		if cerr := trace.Close(); cerr != nil && err == nil {
			runLogger.Warn("Trace incomplete", map[string]interface{}{"error": cerr.Error()})
		}
	}
	if err != nil {
		s.markFailed(id, err)
		return err
	}

	ended := time.Now()
	s.jobs.UpdateJob(id, func(j *Job) {
		obj := res.Objective
		j.State = StateCompleted
		j.Evaluations = res.Evaluations
		j.Calls = res.Calls
		j.Objective = &obj
		j.X = res.X
		j.Constraints = res.Constraints
		j.EndTime = &ended
		j.result = res
	})

	if s.store != nil {
		summary, err := store.NewSummary(id, def.Name, res, ended)
		if err == nil {
			err = s.store.SaveSummary(summary)
		}
		if err != nil {
			runLogger.Warn("Summary not saved", map[string]interface{}{"error": err.Error()})
		}
	}

	runLogger.Info("Run completed", map[string]interface{}{
		"problem":     def.Name,
		"method":      cfg.Method.String(),
		"evaluations": res.Evaluations,
		"objective":   res.Objective,
		"elapsed":     ended.Sub(started).String(),
	})
	return nil
}

// solve builds a solver, runs the problem and releases the solver.
func (s *Server) solve(cfg dot.Config, def problems.Definition, x []float64, opts []dot.Option) (*dot.Result, error) {
	solver, err := s.factory(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer solver.Close()

	p := def.Problem()
	if len(x) > 0 {
		p = def.ProblemFrom(x)
	}

	res, err := solver.Fit(context.Background(), p)
	if err != nil {
		// A failed DOT call leaves a started run unfinished for observers.
		if e, ok := dot.IsDotError(err); ok && e.Op == "step" {
			for _, o := range s.observers {
				if a, ok := o.(aborter); ok {
					a.RunAborted()
				}
			}
		}
		return nil, err
	}
	return res, nil
}

func (s *Server) markFailed(id string, err error) {
	now := time.Now()
	s.jobs.UpdateJob(id, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &now
	})
}

func (s *Server) markCancelled(id string) {
	now := time.Now()
	s.jobs.UpdateJob(id, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &now
	})
}
