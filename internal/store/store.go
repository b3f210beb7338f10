// Package store persists run summaries and evaluation traces on disk under
// <baseDir>/runs/<runID>/.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// Store persists run summaries.
//
// Load and Delete return an error matching ErrNotFound (errors.Is) when the
// run has no summary.
type Store interface {
	// SaveSummary atomically writes the summary of a finished run,
	// overwriting any previous one.
	SaveSummary(summary *Summary) error
	LoadSummary(runID string) (*Summary, error)
	// ListSummaries returns the metadata of every stored run. Unreadable
	// summaries are skipped.
	ListSummaries() ([]SummaryInfo, error)
	// DeleteSummary removes the run directory with its summary and trace.
	DeleteSummary(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ErrInvalidRunID is returned for run IDs that would escape the runs directory.
var ErrInvalidRunID = errors.New("invalid run ID")

// checkRunID rejects IDs that are empty or are not a single path element.
func checkRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}
