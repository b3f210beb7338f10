package store

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/dotbind/internal/dot"
)

// Summary is the persisted outcome of one run.
type Summary struct {
	RunID       string `json:"runId"`
	Problem     string `json:"problem"`
	Method      int32  `json:"method"`
	MinMax      int32  `json:"minMax"`
	Variables   int    `json:"variables"`
	Constraints int    `json:"constraints"`
	Evaluations int    `json:"evaluations"`
	Calls       int    `json:"calls"`

	InitialObjective float64   `json:"initialObjective"`
	Objective        float64   `json:"objective"`
	InitialX         []float64 `json:"initialX"`
	X                []float64 `json:"x"`
	// MaxConstraint is nil for unconstrained problems.
	InitialMaxConstraint *float64 `json:"initialMaxConstraint,omitempty"`
	MaxConstraint        *float64 `json:"maxConstraint,omitempty"`

	Sizing    dot.Sizing `json:"sizing"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewSummary builds the summary of a finished run.
func NewSummary(runID, problem string, res *dot.Result, at time.Time) (*Summary, error) {
	if res == nil || res.History == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}
	h := res.History
	s := &Summary{
		RunID:       runID,
		Problem:     problem,
		Method:      int32(res.Method),
		MinMax:      int32(res.MinMax),
		Variables:   len(res.X),
		Constraints: len(res.Constraints),
		Evaluations: res.Evaluations,
		Calls:       res.Calls,
		Objective:   res.Objective,
		X:           append([]float64(nil), res.X...),
		Sizing:      res.Sizing,
		Timestamp:   at,
	}
	if h.Count > 0 {
		s.InitialObjective = h.Objective[0]
		s.InitialX = append([]float64(nil), h.X[0]...)
	}
	if h.Constrained() {
		initial := h.MaxConstraint[0]
		final := floats.Max(res.Constraints)
		s.InitialMaxConstraint = &initial
		s.MaxConstraint = &final
	}
	return s, nil
}

// Validate checks the summary is complete enough to store.
func (s *Summary) Validate() error {
	if err := checkRunID(s.RunID); err != nil {
		return err
	}
	if len(s.X) != s.Variables {
		return fmt.Errorf("x has %d entries, want %d", len(s.X), s.Variables)
	}
	if s.Evaluations < 0 {
		return fmt.Errorf("evaluations must be non-negative, got %d", s.Evaluations)
	}
	return nil
}

// SummaryInfo is the listing metadata of a stored run.
type SummaryInfo struct {
	RunID       string    `json:"runId"`
	Problem     string    `json:"problem"`
	Method      int32     `json:"method"`
	Objective   float64   `json:"objective"`
	Evaluations int       `json:"evaluations"`
	Timestamp   time.Time `json:"timestamp"`
}

// ToInfo extracts listing metadata.
func (s *Summary) ToInfo() SummaryInfo {
	return SummaryInfo{
		RunID:       s.RunID,
		Problem:     s.Problem,
		Method:      s.Method,
		Objective:   s.Objective,
		Evaluations: s.Evaluations,
		Timestamp:   s.Timestamp,
	}
}
