package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/dotbind/internal/dot"
)

// RunState is the lifecycle state of a queued run.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// Terminal reports whether no further transitions happen from s.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// RunRequest is the body of a run submission. Nil fields fall back to the
// server configuration.
type RunRequest struct {
	Problem string    `json:"problem"`
	Method  *int32    `json:"method,omitempty"`
	MinMax  *int32    `json:"minMax,omitempty"`
	Print   *int32    `json:"print,omitempty"`
	MaxInt  *int32    `json:"maxInt,omitempty"`
	X       []float64 `json:"x,omitempty"`
	Param   []float64 `json:"param,omitempty"`
}

// Job is one submitted run.
type Job struct {
	ID          string     `json:"id"`
	State       RunState   `json:"state"`
	Request     RunRequest `json:"request"`
	Evaluations int        `json:"evaluations"`
	Calls       int        `json:"calls,omitempty"`
	Objective   *float64   `json:"objective,omitempty"`
	X           []float64  `json:"x,omitempty"`
	Constraints []float64  `json:"constraints,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       string     `json:"error,omitempty"`

	result *dot.Result
}

// JobManager tracks submitted runs.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobManager creates an empty JobManager.
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// CreateJob registers a pending run.
func (jm *JobManager) CreateJob(req RunRequest) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Request:   req,
		CreatedAt: time.Now(),
	}
	job.Request.X = append([]float64(nil), req.X...)
	job.Request.Param = append([]float64(nil), req.Param...)
	jm.jobs[job.ID] = job
	return job.snapshot()
}

// GetJob returns a copy of the job.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok {
		return nil, false
	}
	return job.snapshot(), true
}

// ListJobs returns copies of every job in submission order.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	out := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		out = append(out, job.snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateJob applies fn to the job under the lock.
func (jm *JobManager) UpdateJob(id string, fn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	fn(job)
	return nil
}

// Result returns the finished result of a completed job.
func (jm *JobManager) Result(id string) (*dot.Result, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, ok := jm.jobs[id]
	if !ok || job.result == nil {
		return nil, false
	}
	return job.result, true
}

// Prune drops the oldest finished jobs until at most keep remain, and
// returns how many were dropped. Pending and running jobs are never dropped.
func (jm *JobManager) Prune(keep int) int {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	excess := len(jm.jobs) - keep
	if keep < 0 || excess <= 0 {
		return 0
	}
	finished := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		if job.State.Terminal() {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})

	dropped := 0
	for _, job := range finished {
		if dropped == excess {
			break
		}
		delete(jm.jobs, job.ID)
		dropped++
	}
	return dropped
}

func (j *Job) snapshot() *Job {
	c := *j
	c.X = append([]float64(nil), j.X...)
	c.Constraints = append([]float64(nil), j.Constraints...)
	c.Request.X = append([]float64(nil), j.Request.X...)
	c.Request.Param = append([]float64(nil), j.Request.Param...)
	return &c
}
