package orchestrator

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transcode-orchestrator/internal/platform/logger"
)

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store, err := NewGormStore(db, logger.Discard())
	require.NoError(t, err)
	return store
}

func TestGormStore_roundTrip(t *testing.T) {
	store := newTestGormStore(t)

	_, ok := store.GetJob(JobID("missing"))
	require.False(t, ok)

	j := &Job{
		ID:         JobID("j1"),
		State:      JobRunning,
		SourcePath: "/in.bin",
		DestPath:   "/out.bin",
		TrackCount: 2,
	}
	require.NoError(t, store.SetJob(j))

	got, ok := store.GetJob(JobID("j1"))
	require.True(t, ok)
	require.Equal(t, JobRunning, got.State)
	require.Equal(t, "/in.bin", got.SourcePath)
	require.Equal(t, 2, got.TrackCount)
}

func TestGormStore_SetJob_upserts(t *testing.T) {
	store := newTestGormStore(t)

	require.NoError(t, store.SetJob(&Job{ID: JobID("j1"), State: JobRunning}))
	require.NoError(t, store.SetJob(&Job{ID: JobID("j1"), State: JobFailed, Error: "boom", Progress: 30}))

	got, ok := store.GetJob(JobID("j1"))
	require.True(t, ok)
	require.Equal(t, JobFailed, got.State)
	require.Equal(t, "boom", got.Error)
	require.Equal(t, 30, got.Progress)

	require.Len(t, store.ListJobIDs(), 1)
}

func TestGormStore_behind_repository(t *testing.T) {
	repo := NewJobRepository(newTestGormStore(t))

	require.NoError(t, repo.CreateJob(&Job{ID: JobID("j1"), State: JobRunning}))
	require.NoError(t, repo.CreateJob(&Job{ID: JobID("j2"), State: JobRunning}))

	changed, err := repo.Transition(JobID("j1"), JobCancelled, "")
	require.NoError(t, err)
	require.True(t, changed)

	require.Equal(t, 1, repo.ActiveJobCount())

	got, ok := repo.GetJob(JobID("j1"))
	require.True(t, ok)
	require.Equal(t, JobCancelled, got.State)
}
