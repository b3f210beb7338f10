package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/dotbind/internal/dot"
	"github.com/copyleftdev/dotbind/internal/dot/dottest"
	"github.com/copyleftdev/dotbind/internal/problems"
)

func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFSStore(dir, nil)
	require.NoError(t, err)
	return fs, dir
}

func solve(t *testing.T, name string, obs ...dot.Observer) *dot.Result {
	t.Helper()
	d, err := problems.Lookup(name)
	require.NoError(t, err)

	var opts []dot.Option
	for _, o := range obs {
		opts = append(opts, dot.WithObserver(o))
	}
	s, err := dot.NewWithLibrary(&dottest.Library{MaxEvaluations: 40}, dot.DefaultConfig(), opts...)
	require.NoError(t, err)

	res, err := s.Fit(context.Background(), d.Problem())
	require.NoError(t, err)
	return res
}

func TestNewSummary(t *testing.T) {
	res := solve(t, "box")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := NewSummary("run-1", "box", res, at)
	require.NoError(t, err)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 3, s.Variables)
	assert.Equal(t, 1, s.Constraints)
	assert.Equal(t, res.Evaluations, s.Evaluations)
	assert.Equal(t, []float64{1, 1, 1}, s.InitialX)
	require.NotNil(t, s.InitialMaxConstraint)
	require.NotNil(t, s.MaxConstraint)
	assert.InDelta(t, 0.5, *s.InitialMaxConstraint, 1e-12)
	assert.Equal(t, res.Constraints[0], *s.MaxConstraint)

	_, err = NewSummary("run-1", "box", nil, at)
	assert.Error(t, err)
}

func TestNewSummaryUnconstrained(t *testing.T) {
	s, err := NewSummary("run-2", "paraboloid", solve(t, "paraboloid"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, s.InitialMaxConstraint)
	assert.Nil(t, s.MaxConstraint)
}

func TestSaveAndLoadSummary(t *testing.T) {
	fs, dir := setupTestStore(t)
	s, err := NewSummary("run-1", "box", solve(t, "box"), time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, fs.SaveSummary(s))
	assert.FileExists(t, filepath.Join(dir, "runs", "run-1", "summary.json"))
	assert.NoFileExists(t, filepath.Join(dir, "runs", "run-1", "summary.json.tmp"))

	loaded, err := fs.LoadSummary("run-1")
	require.NoError(t, err)
	assert.Equal(t, s.X, loaded.X)
	assert.Equal(t, s.Objective, loaded.Objective)
	assert.Equal(t, *s.MaxConstraint, *loaded.MaxConstraint)
	assert.Equal(t, s.Sizing, loaded.Sizing)
	assert.True(t, s.Timestamp.Equal(loaded.Timestamp))
}

func TestSaveSummaryValidation(t *testing.T) {
	fs, _ := setupTestStore(t)
	assert.Error(t, fs.SaveSummary(nil))
	assert.Error(t, fs.SaveSummary(&Summary{}))
	assert.Error(t, fs.SaveSummary(&Summary{RunID: "x", Variables: 2, X: []float64{1}}))
}

func TestLoadSummaryNotFound(t *testing.T) {
	fs, _ := setupTestStore(t)
	_, err := fs.LoadSummary("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = fs.LoadSummary("")
	assert.Error(t, err)
}

func TestListSummaries(t *testing.T) {
	fs, dir := setupTestStore(t)

	infos, err := fs.ListSummaries()
	require.NoError(t, err)
	assert.Empty(t, infos)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	res := solve(t, "paraboloid")
	for i, id := range []string{"b", "a", "c"} {
		s, err := NewSummary(id, "paraboloid", res, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, fs.SaveSummary(s))
	}

	// A directory without a summary and a corrupt summary are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "runs", "empty"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "runs", "bad"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runs", "bad", "summary.json"), []byte("{"), 0644))

	infos, err = fs.ListSummaries()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "b", infos[0].RunID)
	assert.Equal(t, "a", infos[1].RunID)
	assert.Equal(t, "c", infos[2].RunID)
}

func TestDeleteSummary(t *testing.T) {
	fs, dir := setupTestStore(t)
	s, err := NewSummary("run-1", "box", solve(t, "box"), time.Now())
	require.NoError(t, err)
	require.NoError(t, fs.SaveSummary(s))

	require.NoError(t, fs.DeleteSummary("run-1"))
	assert.NoDirExists(t, filepath.Join(dir, "runs", "run-1"))
	assert.True(t, errors.Is(fs.DeleteSummary("run-1"), ErrNotFound))
}

func TestRunIDsStayInsideRunsDir(t *testing.T) {
	fs, dir := setupTestStore(t)
	for _, id := range []string{"", ".", "..", "../x", "a/b", `a\b`} {
		t.Run(id, func(t *testing.T) {
			_, err := fs.LoadSummary(id)
			assert.True(t, errors.Is(err, ErrInvalidRunID))
			assert.True(t, errors.Is(fs.DeleteSummary(id), ErrInvalidRunID))
			_, err = NewTraceWriter(dir, id, false)
			assert.True(t, errors.Is(err, ErrInvalidRunID))
		})
	}
	assert.DirExists(t, dir)
}
