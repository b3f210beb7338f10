// Package server exposes DOT runs over HTTP: a REST API and a JSON-RPC 2.0
// endpoint, both feeding one sequential worker.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/dotbind/internal/chart"
	"github.com/copyleftdev/dotbind/internal/config"
	"github.com/copyleftdev/dotbind/internal/dot"
	"github.com/copyleftdev/dotbind/internal/logging"
	"github.com/copyleftdev/dotbind/internal/problems"
	"github.com/copyleftdev/dotbind/internal/store"
)

// ErrUnavailable is returned when a run cannot be queued.
var ErrUnavailable = errors.New("server is not accepting runs")

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// SolverFactory builds the solver for one run. The server closes it when
// the run ends.
type SolverFactory func(cfg dot.Config, opts ...dot.Option) (*dot.Solver, error)

// Option configures a Server.
type Option func(*Server)

// WithStore persists a summary of every completed run.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithObservers attaches observers, such as metrics, to every run.
func WithObservers(obs ...dot.Observer) Option {
	return func(s *Server) { s.observers = append(s.observers, obs...) }
}

// WithTraceDir writes an evaluation trace of every run under dir.
func WithTraceDir(dir string) Option {
	return func(s *Server) { s.traceDir = dir }
}

// WithRetention keeps at most n runs in memory, evicting the oldest finished
// ones. Zero or less keeps every run.
func WithRetention(n int) Option {
	return func(s *Server) { s.retention = n }
}

// WithQueueSize bounds the number of runs waiting for the worker.
func WithQueueSize(n int) Option {
	return func(s *Server) { s.queueSize = n }
}

// Server implements the HTTP and JSON-RPC server for DOT runs.
// Submitted runs are queued and executed one at a time by a single worker.
type Server struct {
	cfg     *config.Config
	logger  Logger
	factory SolverFactory

	jobs      *JobManager
	store     store.Store
	observers []dot.Observer
	traceDir  string
	retention int

	queueSize int
	queue     chan string
	done      chan struct{}
	cancel    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewServer creates a server and starts its worker.
func NewServer(cfg *config.Config, logger Logger, factory SolverFactory, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		factory:   factory,
		jobs:      NewJobManager(),
		queueSize: 64,
		retention: 256,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = make(chan string, s.queueSize)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.work(ctx)
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/report", s.handleReport)
		r.Get("/runs/{id}/chart", s.handleChart)
		r.Get("/problems", s.handleProblems)
		r.Get("/summaries", s.handleListSummaries)
		r.Get("/summaries/{id}", s.handleGetSummary)
		r.Delete("/summaries/{id}", s.handleDeleteSummary)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Submit validates req and queues it.
func (s *Server) Submit(req RunRequest) (*Job, error) {
	def, err := problems.Lookup(req.Problem)
	if err != nil {
		return nil, err
	}
	if len(req.X) > 0 && len(req.X) != def.Variables {
		return nil, fmt.Errorf("%w: x has %d entries, problem %s has %d variables",
			dot.ErrInvalidProblem, len(req.X), def.Name, def.Variables)
	}
	if _, err := s.solverConfig(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: shutting down", ErrUnavailable)
	}

	job := s.jobs.CreateJob(req)
	select {
	case s.queue <- job.ID:
	default:
		s.markFailed(job.ID, fmt.Errorf("%w: queue full", ErrUnavailable))
		return nil, fmt.Errorf("%w: queue full", ErrUnavailable)
	}

	s.logger.Info("Run queued", map[string]interface{}{
		"run_id":  job.ID,
		"problem": def.Name,
	})
	return job, nil
}

// Job returns the current state of a run.
func (s *Server) Job(id string) (*Job, bool) {
	return s.jobs.GetJob(id)
}

// solverConfig merges the request overrides into the configured defaults.
func (s *Server) solverConfig(req RunRequest) (dot.Config, error) {
	cfg := s.cfg.Solver()
	if req.Method != nil {
		cfg.Method = dot.Method(*req.Method)
	}
	if req.MinMax != nil {
		cfg.MinMax = dot.Direction(*req.MinMax)
	}
	if req.Print != nil {
		cfg.Print = *req.Print
	}
	if req.MaxInt != nil {
		cfg.MaxInt = *req.MaxInt
	}
	if len(req.Param) > 0 {
		cfg.Param = append([]float64(nil), req.Param...)
	}
	return cfg, cfg.Validate()
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "run.start":
		var req RunRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.Submit(req)
		}
	case "run.status":
		var p struct {
			ID string `json:"id"`
		}
		if err = decodeParams(request.Params, &p); err == nil {
			job, ok := s.lookup(p.ID)
			if !ok {
				err = fmt.Errorf("run not found: %q", p.ID)
			}
			result = job
		}
	case "run.list":
		result = s.jobs.ListJobs()
	case "problem.list":
		result = problems.All()
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := -32602
		if errors.Is(err, ErrUnavailable) {
			code = -32000
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// decodeParams accepts either a params object or a one-element array
// holding it.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("invalid parameters: %w", err)
		}
		if len(list) != 1 {
			return fmt.Errorf("expected one parameter object, got %d", len(list))
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Close stops accepting runs, cancels the ones still queued and waits for
// the run in progress to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}

// handleCreateRun handles POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	job, err := s.Submit(req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.ListJobs())
}

// handleGetRun handles GET /api/v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.lookup(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// lookup finds a run in memory, then among stored summaries, so finished
// runs survive eviction and restarts.
func (s *Server) lookup(id string) (*Job, bool) {
	if job, ok := s.jobs.GetJob(id); ok {
		return job, true
	}
	if s.store == nil {
		return nil, false
	}
	sum, err := s.store.LoadSummary(id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidRunID) {
			s.logger.Warn("Summary unreadable", map[string]interface{}{
				"run_id": id,
				"error":  err.Error(),
			})
		}
		return nil, false
	}
	return jobFromSummary(sum), true
}

// jobFromSummary rebuilds the view of a run known only from its summary.
func jobFromSummary(sum *store.Summary) *Job {
	method, minMax := sum.Method, sum.MinMax
	obj := sum.Objective
	ended := sum.Timestamp
	return &Job{
		ID:    sum.RunID,
		State: StateCompleted,
		Request: RunRequest{
			Problem: sum.Problem,
			Method:  &method,
			MinMax:  &minMax,
		},
		Evaluations: sum.Evaluations,
		Calls:       sum.Calls,
		Objective:   &obj,
		X:           append([]float64(nil), sum.X...),
		CreatedAt:   sum.Timestamp,
		EndTime:     &ended,
	}
}

// handleListSummaries handles GET /api/v1/summaries
func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []store.SummaryInfo{})
		return
	}
	infos, err := s.store.ListSummaries()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetSummary handles GET /api/v1/summaries/{id}
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	sum, err := s.store.LoadSummary(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, storeStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleDeleteSummary handles DELETE /api/v1/summaries/{id}
func (s *Server) handleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err := s.store.DeleteSummary(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, storeStatus(err), map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func storeStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidRunID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleReport handles GET /api/v1/runs/{id}/report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.finished(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := dot.Report(&buf, res); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleChart handles GET /api/v1/runs/{id}/chart
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	res, ok := s.finished(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf, chart.Title(res), res.History, s.cfg.Output.PlotDPI); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleProblems handles GET /api/v1/problems
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, problems.All())
}

// finished returns the result of a completed run or writes the error
// response.
func (s *Server) finished(w http.ResponseWriter, id string) (*dot.Result, bool) {
	job, ok := s.jobs.GetJob(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return nil, false
	}
	res, ok := s.jobs.Result(id)
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run is " + string(job.State)})
		return nil, false
	}
	return res, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
