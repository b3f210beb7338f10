package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/copyleftdev/dotbind/internal/dot"
)

// TraceEntry is one evaluation, written as a JSON line to trace.jsonl.
type TraceEntry struct {
	Evaluation int       `json:"evaluation"`
	Objective  float64   `json:"objective"`
	X          []float64 `json:"x"`
	// MaxConstraint is omitted for unconstrained problems.
	MaxConstraint *float64  `json:"maxConstraint,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// TraceWriter appends evaluations to a run's trace file. It implements
// dot.Observer so it can be attached to a solver directly; errors raised
// while observing are kept and reported by Err and Close.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	err    error
}

var _ dot.Observer = (*TraceWriter)(nil)

// NewTraceWriter creates <baseDir>/runs/<runID>/trace.jsonl. With append set,
// entries are added to an existing file instead of replacing it.
func NewTraceWriter(baseDir, runID string, append bool) (*TraceWriter, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	dir := runDir(baseDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, "trace.jsonl")
	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends an entry. Entries are buffered until Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.write(entry)
}

func (tw *TraceWriter) write(entry TraceEntry) error {
	if tw.file == nil {
		return fmt.Errorf("failed to write trace entry: %w", os.ErrClosed)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Flush writes buffered entries and syncs the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.flush()
}

func (tw *TraceWriter) flush() error {
	if tw.file == nil {
		return fmt.Errorf("failed to flush trace writer: %w", os.ErrClosed)
	}
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes and closes the file. It returns the first error seen while
// observing, if any. Closing again is a no-op returning the same error.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.file == nil {
		return tw.err
	}
	file := tw.file
	tw.file = nil

	if err := tw.writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return tw.err
}

// Err returns the first error raised while observing.
func (tw *TraceWriter) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.err
}

// Path returns the trace file path.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// RunStarted is a no-op.
func (tw *TraceWriter) RunStarted(dot.RunInfo) {}

// Evaluated appends the evaluation.
func (tw *TraceWriter) Evaluated(ev dot.Evaluation) {
	entry := TraceEntry{
		Evaluation: ev.Index,
		Objective:  ev.Objective,
		X:          ev.X,
		Timestamp:  time.Now().UTC(),
	}
	if ev.Constrained {
		g := ev.MaxConstraint
		entry.MaxConstraint = &g
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.err == nil {
		tw.err = tw.write(entry)
	}
}

// RunFinished flushes the trace.
func (tw *TraceWriter) RunFinished(*dot.Result) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.err == nil {
		tw.err = tw.flush()
	}
}

// TraceReader reads a run's trace file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader opens the trace of runID.
func NewTraceReader(baseDir, runID string) (*TraceReader, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	path := filepath.Join(runDir(baseDir, runID), "trace.jsonl")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	// Design vectors can make long lines.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &TraceReader{file: file, scanner: scanner}, nil
}

// Read returns the next entry, or io.EOF.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads every remaining entry.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the trace file.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}
