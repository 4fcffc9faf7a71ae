package journal

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flashqual/internal/tester"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "qual.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func newRun(t *testing.T, startedAt time.Time) Run {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return Run{
		ID:        id,
		StartedAt: startedAt,
		ChipKind:  "host",
		ChipName:  "W25Q64.V",
		OSRelease: "TestOS 1.0",
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run := newRun(t, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	require.NoError(t, j.RecordRun(ctx, run))

	results := []tester.Result{
		{Name: "Toggle WP", Outcome: tester.Pass},
		{Name: "Read", Outcome: tester.Pass},
		{Name: "Erase/Write", Outcome: tester.UnexpectedFail, Err: errors.New("erase refused")},
	}
	require.NoError(t, j.RecordResults(ctx, run.ID, results))

	got, rows, err := j.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.StartedAt, got.StartedAt)
	assert.Equal(t, "host", got.ChipKind)
	assert.Equal(t, "W25Q64.V", got.ChipName)
	assert.Equal(t, "TestOS 1.0", got.OSRelease)

	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, i, row.Seq)
		assert.Equal(t, results[i].Name, row.Name)
		assert.Equal(t, results[i].Outcome.String(), row.Outcome)
	}
	assert.Empty(t, rows[0].Detail)
	assert.Equal(t, "erase refused", rows[2].Detail)
}

func TestJournal_LatestPicksMostRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	older := newRun(t, time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC))
	newer := newRun(t, time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	require.NoError(t, j.RecordRun(ctx, older))
	require.NoError(t, j.RecordRun(ctx, newer))
	require.NoError(t, j.RecordResults(ctx, newer.ID, []tester.Result{
		{Name: "Read", Outcome: tester.Pass},
	}))

	got, rows, err := j.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Read", rows[0].Name)
}

func TestJournal_Empty(t *testing.T) {
	j := openTestJournal(t)

	_, _, err := j.LatestRun(context.Background())
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestJournal_ResultsRequireRun(t *testing.T) {
	j := openTestJournal(t)

	id, err := uuid.NewV7()
	require.NoError(t, err)

	// Foreign keys are on; orphan results must be refused.
	err = j.RecordResults(context.Background(), id, []tester.Result{
		{Name: "Read", Outcome: tester.Pass},
	})
	assert.Error(t, err)
}

func TestJournal_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qual.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())
}
