package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migdalzone/tracecap/internal/suite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, startedAt time.Time) (Run, []suite.TestResult) {
	results := []suite.TestResult{
		{
			Question:   "כמה משימות יש לי?",
			Response:   "יש לך 5 משימות",
			Expected:   "Number of tasks",
			Duration:   1200 * time.Millisecond,
			Success:    true,
			Similarity: 42.5,
			Quality:    suite.QualityFair,
			Timestamp:  startedAt,
		},
		{
			Question:     "אילו פוליסות הן כשרות?",
			Duration:     800 * time.Millisecond,
			Success:      false,
			ErrorMessage: "agent invocation: throttled",
			Timestamp:    startedAt.Add(4 * time.Second),
		},
	}
	run := Run{
		ID:        id,
		Suite:     "default",
		AgentID:   "AGENT123",
		StartedAt: startedAt,
		Summary:   suite.Summarize(results),
	}
	return run, results
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	run, results := sampleRun("run-1", started)

	require.NoError(t, s.WriteRun(ctx, run, results))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "default", got.Suite)
	assert.Equal(t, "AGENT123", got.AgentID)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, 2, got.Summary.Total)
	assert.Equal(t, 1, got.Summary.Passed)
	assert.Equal(t, 50.0, got.Summary.SuccessRate)
	assert.Equal(t, time.Second, got.Summary.AverageDuration)
}

func TestReadResults_PreservesOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run, results := sampleRun("run-1", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.WriteRun(ctx, run, results))

	got, err := s.ReadResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "כמה משימות יש לי?", got[0].Question)
	assert.True(t, got[0].Success)
	assert.Equal(t, 42.5, got[0].Similarity)
	assert.Equal(t, suite.QualityFair, got[0].Quality)
	assert.Equal(t, 1200*time.Millisecond, got[0].Duration)

	assert.False(t, got[1].Success)
	assert.Equal(t, "agent invocation: throttled", got[1].ErrorMessage)
	assert.Empty(t, got[1].Response)
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run, results := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.WriteRun(ctx, run, results))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestWriteRun_DuplicateIDFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run, results := sampleRun("run-1", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.WriteRun(ctx, run, results))
	require.Error(t, s.WriteRun(ctx, run, results))
}

func TestReadResults_UnknownRunIsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ReadResults(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
