package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/repo"
	"github.com/xxxsen/mcatalog/internal/testutil"
)

func TestStaleImportJobFinishesStuckTasks(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	tasks := repo.NewImportTaskRepo(conn)
	entries := repo.NewStagingEntryRepo(conn)
	ctx := context.Background()
	now := time.Unix(10_000, 0)

	require.NoError(t, tasks.Create(ctx, &model.ImportTask{ID: "stuck", CreatorID: "u", Status: model.ImportTaskStatusProcessing, FileKey: "k", TotalEntries: 3, Ctime: 100, Mtime: 100}))
	require.NoError(t, tasks.Create(ctx, &model.ImportTask{ID: "fresh", CreatorID: "u", Status: model.ImportTaskStatusProcessing, FileKey: "k", TotalEntries: 1, Ctime: 9_990, Mtime: 9_990}))
	require.NoError(t, tasks.Create(ctx, &model.ImportTask{ID: "queued", CreatorID: "u", Status: model.ImportTaskStatusCreated, FileKey: "k", TotalEntries: 1, Ctime: 100, Mtime: 100}))
	require.NoError(t, entries.InsertBatch(ctx, []model.StagingEntry{
		{ID: "e1", BatchID: "b1", TaskID: "stuck", PlaylistID: "p", Position: 0, Status: model.StagingStatusPending},
		{ID: "e2", BatchID: "b1", TaskID: "stuck", PlaylistID: "p", Position: 1, Status: model.StagingStatusPending},
		{ID: "e3", BatchID: "b1", TaskID: "fresh", PlaylistID: "p", Position: 0, Status: model.StagingStatusPending},
	}))
	_, err := entries.MarkMatched(ctx, []repo.MatchedEntry{{EntryID: "e1", SongID: "s", Score: 0.5}})
	require.NoError(t, err)
	require.NoError(t, tasks.IncrementProcessed(ctx, "stuck", 1, 100))

	job := NewStaleImportJob(conn, time.Hour)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(ctx))

	stuck, err := tasks.Get(ctx, "stuck")
	require.NoError(t, err)
	require.Equal(t, model.ImportTaskStatusFinished, stuck.Status)
	require.Equal(t, 2, stuck.ProcessedEntries)

	counts, err := entries.CountByTasks(ctx, []string{"stuck", "fresh"})
	require.NoError(t, err)
	require.Equal(t, model.StagingCounts{Matched: 1, Failed: 1}, counts["stuck"])
	require.Equal(t, model.StagingCounts{Pending: 1}, counts["fresh"])

	fresh, err := tasks.Get(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, model.ImportTaskStatusProcessing, fresh.Status)
	queued, err := tasks.Get(ctx, "queued")
	require.NoError(t, err)
	require.Equal(t, model.ImportTaskStatusCreated, queued.Status)

	// a second pass has nothing left to do
	require.NoError(t, job.Run(ctx))
	stuck, err = tasks.Get(ctx, "stuck")
	require.NoError(t, err)
	require.Equal(t, 2, stuck.ProcessedEntries)
}

func TestStaleImportJobDisabled(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	tasks := repo.NewImportTaskRepo(conn)
	ctx := context.Background()
	require.NoError(t, tasks.Create(ctx, &model.ImportTask{ID: "stuck", CreatorID: "u", Status: model.ImportTaskStatusProcessing, FileKey: "k", Ctime: 1, Mtime: 1}))

	require.NoError(t, NewStaleImportJob(conn, 0).Run(ctx))
	stuck, err := tasks.Get(ctx, "stuck")
	require.NoError(t, err)
	require.Equal(t, model.ImportTaskStatusProcessing, stuck.Status)
}
