package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// FSStore implements Store on the filesystem. Summaries are written with a
// temp file and rename, so concurrent readers never see a partial file.
type FSStore struct {
	baseDir string
	logger  *zap.Logger
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates a filesystem store rooted at baseDir, creating it if
// needed. A nil logger disables logging.
func NewFSStore(baseDir string, logger *zap.Logger) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSStore{baseDir: baseDir, logger: logger}, nil
}

// BaseDir returns the store root.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) runDir(runID string) string {
	return runDir(fs.baseDir, runID)
}

func (fs *FSStore) summaryPath(runID string) string {
	return filepath.Join(fs.runDir(runID), "summary.json")
}

// SaveSummary atomically saves the summary of a run.
func (fs *FSStore) SaveSummary(summary *Summary) error {
	if summary == nil {
		return fmt.Errorf("summary cannot be nil")
	}
	if err := summary.Validate(); err != nil {
		return fmt.Errorf("invalid summary: %w", err)
	}

	dir := fs.runDir(summary.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	finalPath := fs.summaryPath(summary.RunID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp summary file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename summary file: %w", err)
	}

	fs.logger.Debug("summary saved", zap.String("run_id", summary.RunID), zap.String("path", finalPath))
	return nil
}

// LoadSummary reads the summary of a run.
func (fs *FSStore) LoadSummary(runID string) (*Summary, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}

	path := fs.summaryPath(runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to deserialize summary: %w", err)
	}
	return &summary, nil
}

// ListSummaries returns metadata for every stored run, oldest first.
func (fs *FSStore) ListSummaries() ([]SummaryInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []SummaryInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []SummaryInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID := entry.Name()
		if _, err := os.Stat(fs.summaryPath(runID)); os.IsNotExist(err) {
			continue
		}
		summary, err := fs.LoadSummary(runID)
		if err != nil {
			fs.logger.Warn("skipping unreadable summary", zap.String("run_id", runID), zap.Error(err))
			continue
		}
		infos = append(infos, summary.ToInfo())
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})
	return infos, nil
}

// DeleteSummary removes the run directory and everything in it.
func (fs *FSStore) DeleteSummary(runID string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}

	dir := fs.runDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	fs.logger.Debug("run deleted", zap.String("run_id", runID))
	return nil
}

func runDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID)
}
