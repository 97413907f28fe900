package tasks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmate/checkmate/internal/database"
)

type fakeStore struct {
	database.Store

	stats      database.Stats
	compaction database.Compaction
	err        error
	compacted  int
}

func (s *fakeStore) GetStats(context.Context) (database.Stats, error) {
	return s.stats, s.err
}

func (s *fakeStore) Compact(context.Context) (database.Compaction, error) {
	s.compacted++
	return s.compaction, s.err
}

func testDeps(store database.Store, buf *bytes.Buffer) TaskDeps {
	return TaskDeps{
		Logger: slog.New(slog.NewTextHandler(buf, nil)),
		Store:  store,
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tasks := RegisterAllTasks(testDeps(&fakeStore{}, &buf))

	assert.Len(t, tasks, 2)
	assert.Contains(t, tasks, TaskCompaction)
	assert.Contains(t, tasks, TaskClaimStats)
}

func TestCompactionTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantLog string
	}{
		{name: "success", wantLog: "reclaimed_bytes=8192"},
		{name: "failure", err: errors.New("locked")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			store := &fakeStore{
				err:        tt.err,
				compaction: database.Compaction{PageSize: 4096, PagesBefore: 10, PagesAfter: 8},
			}
			err := newCompactionTask(testDeps(store, &buf))(context.Background())

			assert.Equal(t, 1, store.compacted)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.NotContains(t, buf.String(), "Database compacted")
				return
			}
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.wantLog)
		})
	}
}

func TestClaimStatsTask(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	store := &fakeStore{stats: database.Stats{Claims: 3, Instances: 7, Unassessed: 2}}
	require.NoError(t, newClaimStatsTask(testDeps(store, &buf))(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "claims=3")
	assert.Contains(t, out, "instances=7")
	assert.Contains(t, out, "unassessed=2")

	store.err = errors.New("closed")
	assert.Error(t, newClaimStatsTask(testDeps(store, &buf))(context.Background()))
}
