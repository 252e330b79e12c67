package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/pipeline"
	"map_shortcuts/pkg/shortcut"
)

var _ pipeline.Checkpointer = (*Store)(nil)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRows(n int) []shortcut.Shortcut {
	rows := make([]shortcut.Shortcut, n)
	for i := range rows {
		rows[i] = shortcut.Shortcut{From: 1, To: graph.EdgeID(i + 2), Cost: float64(i) + 0.5, Via: graph.EdgeID(i + 2)}
	}
	return rows
}

func TestLoadEmpty(t *testing.T) {
	s := openStore(t, t.TempDir())
	_, _, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoad(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx := context.Background()

	steps := []pipeline.StepRecord{
		{Phase: pipeline.Forward, Resolution: 15, Active: 4, Generated: 12, Solver: "join",
			Merge: shortcut.MergeStats{Inserted: 8, Unchanged: 4}, StoreSize: 12, Duration: time.Millisecond},
	}
	rows := sampleRows(10)
	require.NoError(t, s.Save(ctx, rows, steps))

	gotRows, gotSteps, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rows, gotRows)
	assert.Equal(t, steps, gotSteps)
}

func TestSaveReplacesPreviousGeneration(t *testing.T) {
	s := openStore(t, t.TempDir())
	s.chunkSize = 64 // force several chunks
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleRows(20), nil))
	second := sampleRows(3)
	steps := []pipeline.StepRecord{{Phase: pipeline.Backward, Resolution: 2}}
	require.NoError(t, s.Save(ctx, second, steps))

	rows, gotSteps, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, rows)
	assert.Equal(t, steps, gotSteps)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleRows(5), []pipeline.StepRecord{{Phase: pipeline.Forward}}))
	require.NoError(t, s.Close())

	s2 := openStore(t, dir)
	rows, _, ok, err := s2.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rows, 5)
}

func TestSaveEmptyStore(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.Save(context.Background(), nil, []pipeline.StepRecord{{Phase: pipeline.Forward}}))

	rows, steps, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, rows)
	assert.Len(t, steps, 1)
}

func TestClear(t *testing.T) {
	s := openStore(t, t.TempDir())
	require.NoError(t, s.Save(context.Background(), sampleRows(2), nil))
	require.NoError(t, s.Clear())
	_, _, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveCancelled(t *testing.T) {
	s := openStore(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Save(ctx, sampleRows(1), nil), context.Canceled)
}
